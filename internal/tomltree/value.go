// Package tomltree holds the typed, read-only value tree produced by parsing
// a TOML document.
//
// The tree is a closed union: every Value is one of String, Integer, Float,
// Boolean, Datetime, *Array or *Table. Tables remember the order in which
// their keys appeared in the source, although lookups never depend on it.
package tomltree

import (
	"fmt"
	"slices"
)

// Kind identifies the concrete type of a Value.
type Kind uint8

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindDatetime
	KindArray
	KindTable
)

var kindNames = [...]string{
	KindString:   "string",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindBoolean:  "boolean",
	KindDatetime: "datetime",
	KindArray:    "array",
	KindTable:    "table",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a node in the tree.
type Value interface {
	Kind() Kind
}

type (
	String  string
	Integer int64
	Float   float64
	Boolean bool
)

func (String) Kind() Kind  { return KindString }
func (Integer) Kind() Kind { return KindInteger }
func (Float) Kind() Kind   { return KindFloat }
func (Boolean) Kind() Kind { return KindBoolean }

// Date is a calendar date as written in the source.
type Date struct {
	Year  int32
	Month int32
	Day   int32
}

// Time is a time of day as written in the source.
type Time struct {
	Hour       int32
	Minute     int32
	Second     int32
	Nanosecond int32
}

// Offset is the UTC offset of an offset date-time. Custom is false for "Z".
type Offset struct {
	Custom  bool
	Minutes int32
}

// Datetime is a TOML date, time, local date-time or offset date-time.
// Absent components are nil.
type Datetime struct {
	Date   *Date
	Time   *Time
	Offset *Offset
}

func (Datetime) Kind() Kind { return KindDatetime }

// Array is an ordered sequence of values.
type Array struct {
	elems []Value
}

// NewArray returns an array holding elems. The slice is not copied.
func NewArray(elems ...Value) *Array {
	return &Array{elems: elems}
}

func (*Array) Kind() Kind { return KindArray }

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.elems)
}

// Index returns the element at i, or false when i is out of bounds.
func (a *Array) Index(i int) (Value, bool) {
	if a == nil || i < 0 || i >= len(a.elems) {
		return nil, false
	}
	return a.elems[i], true
}

// Table maps unique string keys to values.
type Table struct {
	keys    []string
	entries map[string]Value
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Value)}
}

func (*Table) Kind() Kind { return KindTable }

// Set stores v under key. A new key is appended to the key order; an
// existing key keeps its position.
func (t *Table) Set(key string, v Value) {
	if _, ok := t.entries[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.entries[key] = v
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (Value, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the keys in source order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.keys)
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v Value) Value {
	switch v := v.(type) {
	case *Table:
		return v.Clone()
	case *Array:
		return v.Clone()
	case Datetime:
		return v.Clone()
	default:
		return v
	}
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		keys:    slices.Clone(t.keys),
		entries: make(map[string]Value, len(t.entries)),
	}
	for k, v := range t.entries {
		out.entries[k] = Clone(v)
	}
	return out
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	if a == nil {
		return nil
	}
	out := &Array{elems: make([]Value, len(a.elems))}
	for i, v := range a.elems {
		out.elems[i] = Clone(v)
	}
	return out
}

// Clone returns a copy of d that shares no components with it.
func (d Datetime) Clone() Datetime {
	var out Datetime
	if d.Date != nil {
		date := *d.Date
		out.Date = &date
	}
	if d.Time != nil {
		tm := *d.Time
		out.Time = &tm
	}
	if d.Offset != nil {
		off := *d.Offset
		out.Offset = &off
	}
	return out
}

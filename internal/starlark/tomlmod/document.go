package tomlmod

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/skytoml/internal/tomltree"
)

// Document is the handle returned by a successful parse.
// The zero value is an unset document whose root is None.
type Document struct {
	root *Table
}

// Table is a read-only view of a TOML table. It owns a private copy of the
// subtree it was built from. The zero value behaves as an empty table.
type Table struct {
	table *tomltree.Table
}

// Array is a read-only view of a TOML array. It owns a private copy of the
// subtree it was built from. The zero value behaves as an empty array.
type Array struct {
	array *tomltree.Array
}

var (
	_ starlark.HasAttrs  = (*Document)(nil)
	_ starlark.HasAttrs  = (*Table)(nil)
	_ starlark.Sequence  = (*Table)(nil)
	_ starlark.HasAttrs  = (*Array)(nil)
	_ starlark.Indexable = (*Array)(nil)
	_ starlark.Sequence  = (*Array)(nil)
)

// NewTable returns a wrapper over a deep copy of t.
func NewTable(t *tomltree.Table) *Table {
	return &Table{table: t.Clone()}
}

// NewArray returns a wrapper over a deep copy of a.
func NewArray(a *tomltree.Array) *Array {
	return &Array{array: a.Clone()}
}

// Root returns the root table, or nil if the document is unset.
func (d *Document) Root() *Table {
	return d.root
}

// Get returns the converted value stored under key, or None.
func (t *Table) Get(key string) starlark.Value {
	v, ok := t.table.Get(key)
	if !ok {
		return starlark.None
	}
	return Convert(v)
}

// ToDict converts every entry eagerly. Each call returns a new dict.
func (t *Table) ToDict() *starlark.Dict {
	if t.table == nil {
		return starlark.NewDict(0)
	}
	return tableToDict(t.table)
}

// Keys returns the table keys in source order.
func (t *Table) Keys() []string {
	return t.table.Keys()
}

// Get returns the converted element at index, or None when index is out of
// bounds.
func (a *Array) Get(index int64) starlark.Value {
	if index < 0 || index >= int64(a.array.Len()) {
		return starlark.None
	}
	v, _ := a.array.Index(int(index))
	return Convert(v)
}

// ToArray converts every element eagerly. Each call returns a new list.
func (a *Array) ToArray() *starlark.List {
	if a.array == nil {
		return starlark.NewList(nil)
	}
	return arrayToList(a.array)
}

// starlark.Value implementations.

func (d *Document) String() string {
	if d.root == nil {
		return "<toml.document unset>"
	}
	return fmt.Sprintf("<toml.document %d keys>", d.root.Len())
}
func (d *Document) Type() string          { return "toml.document" }
func (d *Document) Freeze()               {}
func (d *Document) Truth() starlark.Bool  { return starlark.True }
func (d *Document) Hash() (uint32, error) { return 0, unhashable(d) }

func (t *Table) String() string         { return fmt.Sprintf("<toml.table %d keys>", t.Len()) }
func (t *Table) Type() string           { return "toml.table" }
func (t *Table) Freeze()                {}
func (t *Table) Truth() starlark.Bool   { return t.Len() > 0 }
func (t *Table) Hash() (uint32, error)  { return 0, unhashable(t) }
func (t *Table) Len() int               { return t.table.Len() }
func (t *Table) Iterate() starlark.Iterator {
	return &keyIterator{keys: t.table.Keys()}
}

func (a *Array) String() string        { return fmt.Sprintf("<toml.array %d elements>", a.Len()) }
func (a *Array) Type() string          { return "toml.array" }
func (a *Array) Freeze()               {}
func (a *Array) Truth() starlark.Bool  { return a.Len() > 0 }
func (a *Array) Hash() (uint32, error) { return 0, unhashable(a) }
func (a *Array) Len() int              { return a.array.Len() }

// Index implements starlark.Indexable; the interpreter bounds-checks i.
func (a *Array) Index(i int) starlark.Value { return a.Get(int64(i)) }

func (a *Array) Iterate() starlark.Iterator {
	return &arrayIterator{array: a}
}

func unhashable(v starlark.Value) error {
	return fmt.Errorf("unhashable type: %s", v.Type())
}

type keyIterator struct {
	keys []string
}

func (it *keyIterator) Next(p *starlark.Value) bool {
	if len(it.keys) == 0 {
		return false
	}
	*p = starlark.String(it.keys[0])
	it.keys = it.keys[1:]
	return true
}

func (it *keyIterator) Done() {}

type arrayIterator struct {
	array *Array
	i     int
}

func (it *arrayIterator) Next(p *starlark.Value) bool {
	if it.i >= it.array.Len() {
		return false
	}
	*p = it.array.Get(int64(it.i))
	it.i++
	return true
}

func (it *arrayIterator) Done() {}

// Methods exposed to scripts.

var (
	documentMethods = map[string]*starlark.Builtin{
		"get_root": starlark.NewBuiltin("get_root", documentGetRoot),
	}
	tableMethods = map[string]*starlark.Builtin{
		"get":     starlark.NewBuiltin("get", tableGet),
		"keys":    starlark.NewBuiltin("keys", tableKeys),
		"to_dict": starlark.NewBuiltin("to_dict", tableToDictMethod),
	}
	arrayMethods = map[string]*starlark.Builtin{
		"get":      starlark.NewBuiltin("get", arrayGet),
		"to_array": starlark.NewBuiltin("to_array", arrayToArrayMethod),
	}
)

func (d *Document) Attr(name string) (starlark.Value, error) { return builtinAttr(d, name, documentMethods) }
func (d *Document) AttrNames() []string                     { return builtinAttrNames(documentMethods) }
func (t *Table) Attr(name string) (starlark.Value, error)    { return builtinAttr(t, name, tableMethods) }
func (t *Table) AttrNames() []string                        { return builtinAttrNames(tableMethods) }
func (a *Array) Attr(name string) (starlark.Value, error)    { return builtinAttr(a, name, arrayMethods) }
func (a *Array) AttrNames() []string                        { return builtinAttrNames(arrayMethods) }

func builtinAttr(recv starlark.Value, name string, methods map[string]*starlark.Builtin) (starlark.Value, error) {
	b := methods[name]
	if b == nil {
		return nil, nil // no such method
	}
	return b.BindReceiver(recv), nil
}

func builtinAttrNames(methods map[string]*starlark.Builtin) []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func documentGetRoot(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	root := b.Receiver().(*Document).Root()
	if root == nil {
		return starlark.None, nil
	}
	return root, nil
}

func tableGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key); err != nil {
		return nil, err
	}
	return b.Receiver().(*Table).Get(key), nil
}

func tableKeys(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	keys := b.Receiver().(*Table).Keys()
	elems := make([]starlark.Value, len(keys))
	for i, k := range keys {
		elems[i] = starlark.String(k)
	}
	return starlark.NewList(elems), nil
}

func tableToDictMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return b.Receiver().(*Table).ToDict(), nil
}

func arrayGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var index int64
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &index); err != nil {
		return nil, err
	}
	return b.Receiver().(*Array).Get(index), nil
}

func arrayToArrayMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return b.Receiver().(*Array).ToArray(), nil
}

package tomltree

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Location names BurntSushi/toml assigns to values without a UTC offset.
const (
	zoneLocalDatetime = "datetime-local"
	zoneLocalDate     = "date-local"
	zoneLocalTime     = "time-local"
)

// ParseError is returned by Parse when the input is not valid TOML.
type ParseError struct {
	// Line is the 1-based line of the error, or 0 if unknown.
	Line int
	// Column is the 1-based column of the error, or 0 if unknown.
	Column int
	// Message is the parser's description of the problem.
	Message string

	err error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("toml: line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return "toml: " + e.Message
}

func (e *ParseError) Unwrap() error { return e.err }

// Parse parses a TOML document into its root table.
func Parse(text string) (*Table, error) {
	var raw map[string]any
	md, err := toml.Decode(text, &raw)
	if err != nil {
		return nil, newParseError(text, err)
	}

	b := builder{order: keyOrder(md.Keys())}
	return b.table(raw, nil)
}

func newParseError(text string, err error) *ParseError {
	var perr toml.ParseError
	if !errors.As(err, &perr) {
		return &ParseError{Message: err.Error(), err: err}
	}

	pe := &ParseError{
		Line:    perr.Position.Line,
		Column:  column(text, perr.Position.Start),
		Message: parserMessage(perr),
		err:     err,
	}
	if pe.Line == 0 {
		pe.Line = perr.Line
	}
	// Lexer errors raised at end of input carry no position.
	if pe.Line == 0 {
		end := strings.TrimRight(text, "\r\n")
		pe.Line = strings.Count(end, "\n") + 1
		pe.Column = column(text, len(end))
	}
	return pe
}

// parserMessage returns the parser's description without the position
// prefix that toml.ParseError.Error adds. Lexer errors leave Message empty
// and only carry the text in the wrapped error.
func parserMessage(perr toml.ParseError) string {
	if perr.Message != "" {
		return perr.Message
	}
	full := perr.Error()
	prefix := fmt.Sprintf("toml: line %d: ", perr.Position.Line)
	if perr.LastKey != "" {
		prefix = fmt.Sprintf("toml: line %d (last key %q): ", perr.Position.Line, perr.LastKey)
	}
	if msg := strings.TrimPrefix(full, prefix); msg != "" {
		return msg
	}
	return full
}

// column converts a byte offset into a 1-based column on its line.
func column(text string, offset int) int {
	if offset < 0 || offset > len(text) {
		return 0
	}
	return offset - strings.LastIndexByte(text[:offset], '\n')
}

// keyOrder maps each key path, and every prefix of it, to the position of
// its first appearance in the document. Prefixes cover tables that only
// exist implicitly through dotted keys.
func keyOrder(keys []toml.Key) map[string]int {
	order := make(map[string]int, len(keys))
	for i, k := range keys {
		for n := 1; n <= len(k); n++ {
			path := joinPath(k[:n])
			if _, ok := order[path]; !ok {
				order[path] = i
			}
		}
	}
	return order
}

func joinPath(parts []string) string {
	return strings.Join(parts, "\x00")
}

type builder struct {
	order map[string]int
}

func (b *builder) table(m map[string]any, path []string) (*Table, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	b.sortKeys(keys, path)

	t := NewTable()
	for _, k := range keys {
		v, err := b.value(m[k], append(path[:len(path):len(path)], k))
		if err != nil {
			return nil, err
		}
		t.Set(k, v)
	}
	return t, nil
}

// sortKeys orders keys by their first appearance in the source. Keys the
// decoder did not report (e.g. inside inline tables nested in arrays) sort
// after the known ones, lexically.
func (b *builder) sortKeys(keys []string, path []string) {
	pos := func(k string) int {
		if i, ok := b.order[joinPath(append(path[:len(path):len(path)], k))]; ok {
			return i
		}
		return math.MaxInt
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := pos(keys[i]), pos(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
}

func (b *builder) value(v any, path []string) (Value, error) {
	switch v := v.(type) {
	case string:
		return String(v), nil
	case int64:
		return Integer(v), nil
	case float64:
		return Float(v), nil
	case bool:
		return Boolean(v), nil
	case time.Time:
		return datetimeFromTime(v), nil
	case map[string]any:
		return b.table(v, path)
	case []map[string]any:
		elems := make([]Value, 0, len(v))
		for _, m := range v {
			t, err := b.table(m, path)
			if err != nil {
				return nil, err
			}
			elems = append(elems, t)
		}
		return NewArray(elems...), nil
	case []any:
		elems := make([]Value, 0, len(v))
		for _, e := range v {
			ev, err := b.value(e, path)
			if err != nil {
				return nil, err
			}
			elems = append(elems, ev)
		}
		return NewArray(elems...), nil
	default:
		return nil, fmt.Errorf("toml: unsupported value of type %T at %q", v, strings.Join(path, "."))
	}
}

// datetimeFromTime recovers which components the source specified from the
// location the decoder attached to t.
func datetimeFromTime(t time.Time) Datetime {
	var d Datetime
	zone := t.Location().String()

	if zone != zoneLocalTime {
		d.Date = &Date{
			Year:  int32(t.Year()),
			Month: int32(t.Month()),
			Day:   int32(t.Day()),
		}
	}
	if zone != zoneLocalDate {
		d.Time = &Time{
			Hour:       int32(t.Hour()),
			Minute:     int32(t.Minute()),
			Second:     int32(t.Second()),
			Nanosecond: int32(t.Nanosecond()),
		}
	}

	switch zone {
	case zoneLocalDatetime, zoneLocalDate, zoneLocalTime:
	default:
		if t.Location() == time.UTC {
			d.Offset = &Offset{}
		} else {
			_, secs := t.Zone()
			d.Offset = &Offset{Custom: true, Minutes: int32(secs / 60)}
		}
	}
	return d
}

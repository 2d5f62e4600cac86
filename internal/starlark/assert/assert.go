// Package assert provides the assert module available to skytoml scripts.
package assert

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// NewModule creates the assert module.
//
// Available functions:
//   - assert.eq(a, b, msg=None) - Assert a == b
//   - assert.ne(a, b, msg=None) - Assert a != b
//   - assert.true(cond, msg=None) - Assert cond is truthy
//   - assert.false(cond, msg=None) - Assert cond is falsy
//   - assert.contains(container, item, msg=None) - Assert item in container
//   - assert.fails(fn, pattern=None) - Assert fn() raises error matching pattern
//   - assert.len(container, expected, msg=None) - Assert len(container) == expected
func NewModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "assert",
		Members: starlark.StringDict{
			"eq":       starlark.NewBuiltin("assert.eq", assertEq),
			"ne":       starlark.NewBuiltin("assert.ne", assertNe),
			"true":     starlark.NewBuiltin("assert.true", assertTrue),
			"false":    starlark.NewBuiltin("assert.false", assertFalse),
			"contains": starlark.NewBuiltin("assert.contains", assertContains),
			"fails":    starlark.NewBuiltin("assert.fails", assertFails),
			"len":      starlark.NewBuiltin("assert.len", assertLen),
		},
	}
}

func assertEq(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, expected starlark.Value
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &a, "b", &expected, "msg?", &msg); err != nil {
		return nil, err
	}

	eq, err := starlark.Equal(a, expected)
	if err != nil {
		return nil, err
	}
	if !eq {
		if diff := valueDiff(expected, a); diff != "" {
			return nil, assertionError(msg, "values differ (-want +got):\n%s", diff)
		}
		return nil, assertionError(msg, "expected %s == %s", a, expected)
	}
	return starlark.None, nil
}

func assertNe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, unexpected starlark.Value
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &a, "b", &unexpected, "msg?", &msg); err != nil {
		return nil, err
	}

	eq, err := starlark.Equal(a, unexpected)
	if err != nil {
		return nil, err
	}
	if eq {
		return nil, assertionError(msg, "expected %s != %s", a, unexpected)
	}
	return starlark.None, nil
}

func assertTrue(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cond", &cond, "msg?", &msg); err != nil {
		return nil, err
	}
	if !cond.Truth() {
		return nil, assertionError(msg, "expected %s to be true", cond)
	}
	return starlark.None, nil
}

func assertFalse(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "cond", &cond, "msg?", &msg); err != nil {
		return nil, err
	}
	if cond.Truth() {
		return nil, assertionError(msg, "expected %s to be false", cond)
	}
	return starlark.None, nil
}

func assertContains(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var container, item starlark.Value
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "container", &container, "item", &item, "msg?", &msg); err != nil {
		return nil, err
	}

	switch c := container.(type) {
	case starlark.String:
		s, ok := item.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("%s: string container requires string item, got %s", b.Name(), item.Type())
		}
		if strings.Contains(string(c), string(s)) {
			return starlark.None, nil
		}
	case starlark.Mapping:
		if _, found, _ := c.Get(item); found {
			return starlark.None, nil
		}
	case starlark.Iterable:
		iter := c.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			if eq, _ := starlark.Equal(x, item); eq {
				return starlark.None, nil
			}
		}
	default:
		return nil, fmt.Errorf("%s: unsupported container type %s", b.Name(), container.Type())
	}

	return nil, assertionError(msg, "expected %s to contain %s", container, item)
}

func assertFails(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	var pattern string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "pattern?", &pattern); err != nil {
		return nil, err
	}

	_, err := starlark.Call(thread, fn, nil, nil)
	if err == nil {
		return nil, fmt.Errorf("%s: expected function to fail, but it succeeded", b.Name())
	}
	if pattern != "" && !strings.Contains(err.Error(), pattern) {
		return nil, fmt.Errorf("%s: error %q does not match pattern %q", b.Name(), err.Error(), pattern)
	}
	return starlark.None, nil
}

func assertLen(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var container starlark.Value
	var expected int
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "container", &container, "expected", &expected, "msg?", &msg); err != nil {
		return nil, err
	}

	n := starlark.Len(container)
	if n < 0 {
		return nil, fmt.Errorf("%s: type %s has no len()", b.Name(), container.Type())
	}
	if n != expected {
		return nil, assertionError(msg, "expected len(%s) == %d, got %d", container.Type(), expected, n)
	}
	return starlark.None, nil
}

// valueDiff returns a unified diff of the one-element-per-line renderings of
// two containers, or "" when either is a scalar.
func valueDiff(want, got starlark.Value) string {
	wantLines, ok1 := lines(want)
	gotLines, ok2 := lines(got)
	if !ok1 || !ok2 {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       wantLines,
		B:       gotLines,
		Context: 2,
	})
	if err != nil {
		return ""
	}
	return diff
}

func lines(v starlark.Value) ([]string, bool) {
	var out []string
	switch c := v.(type) {
	case *starlark.Dict:
		for _, item := range c.Items() {
			out = append(out, fmt.Sprintf("%s: %s\n", item[0], item[1]))
		}
	case *starlark.List:
		for i := 0; i < c.Len(); i++ {
			out = append(out, c.Index(i).String()+"\n")
		}
	default:
		return nil, false
	}
	return out, true
}

func assertionError(customMsg starlark.Value, format string, args ...any) error {
	if s, ok := customMsg.(starlark.String); ok && s != "" {
		return fmt.Errorf("assertion failed: %s", string(s))
	}
	return fmt.Errorf("assertion failed: "+format, args...)
}

package tomlmod

import (
	"testing"

	"go.starlark.net/starlark"
)

func mustDecode(t *testing.T, text string) *Document {
	t.Helper()
	doc, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", text, err)
	}
	return doc
}

func TestTable_Get(t *testing.T) {
	root := mustDecode(t, `
x = 42
name = "sky"
ratio = 0.25
on = true
[a]
b = [1, 2, 3]
`).Root()

	mustEqual(t, `get("x")`, root.Get("x"), starlark.MakeInt(42))
	mustEqual(t, `get("name")`, root.Get("name"), starlark.String("sky"))
	mustEqual(t, `get("ratio")`, root.Get("ratio"), starlark.Float(0.25))
	mustEqual(t, `get("on")`, root.Get("on"), starlark.True)

	a, ok := root.Get("a").(*Table)
	if !ok {
		t.Fatalf(`get("a") = %T, want *Table`, root.Get("a"))
	}
	b, ok := a.Get("b").(*Array)
	if !ok {
		t.Fatalf(`get("b") = %T, want *Array`, a.Get("b"))
	}
	mustEqual(t, "b.to_array()", b.ToArray(), starlark.NewList(ints(1, 2, 3)))
}

func TestTable_GetMissing(t *testing.T) {
	root := mustDecode(t, "x = 1\n[t]\ny = 2\n").Root()
	for _, key := range []string{"", "missing", "y", "X"} {
		if got := root.Get(key); got != starlark.None {
			t.Errorf("Get(%q) = %s, want None", key, got)
		}
	}
}

func TestTable_ToDict(t *testing.T) {
	root := mustDecode(t, "[a]\nb = [1,2,3]\n").Root()
	want := dict("a", dict("b", starlark.NewList(ints(1, 2, 3))))
	mustEqual(t, "to_dict()", root.ToDict(), want)
}

func TestTable_ToDictIsFreshEachCall(t *testing.T) {
	root := mustDecode(t, "[a]\nb = [1,2,3]\n").Root()

	first := root.ToDict()
	second := root.ToDict()
	if first == second {
		t.Fatal("ToDict returned the same dict twice")
	}
	mustEqual(t, "second", second, first)

	if err := first.SetKey(starlark.String("a"), starlark.None); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	inner, _, _ := second.Get(starlark.String("a"))
	list, _, _ := inner.(*starlark.Dict).Get(starlark.String("b"))
	if err := list.(*starlark.List).Append(starlark.MakeInt(4)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	want := dict("a", dict("b", starlark.NewList(ints(1, 2, 3))))
	mustEqual(t, "to_dict() after mutation", root.ToDict(), want)
}

func TestArray_Get(t *testing.T) {
	arr := mustDecode(t, `xs = ["a", "b", "c"]`).Root().Get("xs").(*Array)

	tests := []struct {
		index int64
		want  starlark.Value
	}{
		{0, starlark.String("a")},
		{2, starlark.String("c")},
		{3, starlark.None},
		{-1, starlark.None},
		{1 << 40, starlark.None},
		{-1 << 40, starlark.None},
	}
	for _, tt := range tests {
		mustEqual(t, "Get", arr.Get(tt.index), tt.want)
	}
}

func TestArray_NestedWrappers(t *testing.T) {
	root := mustDecode(t, `
matrix = [[1, 2], [3, 4]]
[[servers]]
name = "alpha"
[[servers]]
name = "beta"
`).Root()

	matrix := root.Get("matrix").(*Array)
	row, ok := matrix.Get(1).(*Array)
	if !ok {
		t.Fatalf("matrix.get(1) = %T, want *Array", matrix.Get(1))
	}
	mustEqual(t, "matrix[1][0]", row.Get(0), starlark.MakeInt(3))

	servers := root.Get("servers").(*Array)
	beta, ok := servers.Get(1).(*Table)
	if !ok {
		t.Fatalf("servers.get(1) = %T, want *Table", servers.Get(1))
	}
	mustEqual(t, "servers[1].name", beta.Get("name"), starlark.String("beta"))
}

func TestUnsetWrappers(t *testing.T) {
	var doc Document
	var tbl Table
	var arr Array

	if doc.Root() != nil {
		t.Error("unset document has a root")
	}
	if got := tbl.Get("x"); got != starlark.None {
		t.Errorf("unset table Get = %s, want None", got)
	}
	if got := tbl.ToDict(); got.Len() != 0 {
		t.Errorf("unset table ToDict = %s, want {}", got)
	}
	if got := tbl.Keys(); len(got) != 0 {
		t.Errorf("unset table Keys = %v, want none", got)
	}
	if got := arr.Get(0); got != starlark.None {
		t.Errorf("unset array Get = %s, want None", got)
	}
	if got := arr.ToArray(); got.Len() != 0 {
		t.Errorf("unset array ToArray = %s, want []", got)
	}
	if tbl.Truth() || arr.Truth() {
		t.Error("unset wrappers are truthy")
	}
}

func TestWrappers_OwnTheirSubtree(t *testing.T) {
	doc := mustDecode(t, "[a]\nx = 1\n")
	first := doc.Root().Get("a").(*Table)
	second := doc.Root().Get("a").(*Table)
	if first == second || first.table == second.table {
		t.Fatal("sibling wrappers share a subtree")
	}
	if first.table == nil {
		t.Fatal("wrapper has no subtree")
	}

	first.table.Set("y", nil)
	if second.Get("y") != starlark.None {
		t.Error("changing one wrapper's subtree affected its sibling")
	}
}

func TestDocument_Attrs(t *testing.T) {
	doc := mustDecode(t, "k = 1\n")
	thread := &starlark.Thread{Name: "test"}

	getRoot, err := doc.Attr("get_root")
	if err != nil || getRoot == nil {
		t.Fatalf("Attr(get_root) = %v, %v", getRoot, err)
	}
	root, err := starlark.Call(thread, getRoot, nil, nil)
	if err != nil {
		t.Fatalf("get_root(): %v", err)
	}
	if root != doc.Root() {
		t.Errorf("get_root() = %v, want the document's root", root)
	}

	var unset Document
	getRoot, _ = unset.Attr("get_root")
	root, err = starlark.Call(thread, getRoot, nil, nil)
	if err != nil || root != starlark.None {
		t.Errorf("unset get_root() = %v, %v; want None", root, err)
	}

	if v, err := doc.Attr("nope"); v != nil || err != nil {
		t.Errorf("Attr(nope) = %v, %v; want nil, nil", v, err)
	}
}

func TestAttrNames(t *testing.T) {
	tests := []struct {
		v    starlark.HasAttrs
		want []string
	}{
		{&Document{}, []string{"get_root"}},
		{&Table{}, []string{"get", "keys", "to_dict"}},
		{&Array{}, []string{"get", "to_array"}},
	}
	for _, tt := range tests {
		got := tt.v.AttrNames()
		if len(got) != len(tt.want) {
			t.Errorf("%s.AttrNames() = %v, want %v", tt.v.Type(), got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s.AttrNames() = %v, want %v", tt.v.Type(), got, tt.want)
				break
			}
		}
	}
}

func TestWrappers_Unhashable(t *testing.T) {
	for _, v := range []starlark.Value{&Document{}, &Table{}, &Array{}} {
		if _, err := v.Hash(); err == nil {
			t.Errorf("%s.Hash() succeeded, want error", v.Type())
		}
	}
}

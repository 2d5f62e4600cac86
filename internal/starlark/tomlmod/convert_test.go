package tomlmod

import (
	"testing"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/skytoml/internal/tomltree"
)

// mustEqual fails unless starlark considers got and want equal.
func mustEqual(t *testing.T, what string, got, want starlark.Value) {
	t.Helper()
	eq, err := starlark.Equal(got, want)
	if err != nil {
		t.Fatalf("%s: comparing %s with %s: %v", what, got, want, err)
	}
	if !eq {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func dict(kv ...any) *starlark.Dict {
	d := starlark.NewDict(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		_ = d.SetKey(starlark.String(kv[i].(string)), kv[i+1].(starlark.Value))
	}
	return d
}

func ints(vs ...int) []starlark.Value {
	out := make([]starlark.Value, len(vs))
	for i, v := range vs {
		out[i] = starlark.MakeInt(v)
	}
	return out
}

func TestConvert_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   tomltree.Value
		want starlark.Value
	}{
		{"string", tomltree.String("hi"), starlark.String("hi")},
		{"integer", tomltree.Integer(42), starlark.MakeInt(42)},
		{"max integer", tomltree.Integer(9223372036854775807), starlark.MakeInt64(9223372036854775807)},
		{"float", tomltree.Float(2.5), starlark.Float(2.5)},
		{"bool", tomltree.Boolean(false), starlark.False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustEqual(t, "Convert", Convert(tt.in), tt.want)
			mustEqual(t, "Materialize", Materialize(tt.in), tt.want)
		})
	}
}

func TestConvert_ContainersAreWrappers(t *testing.T) {
	tbl := tomltree.NewTable()
	tbl.Set("x", tomltree.Integer(1))
	arr := tomltree.NewArray(tomltree.Integer(1))

	if _, ok := Convert(tbl).(*Table); !ok {
		t.Errorf("Convert(table) = %T, want *Table", Convert(tbl))
	}
	if _, ok := Convert(arr).(*Array); !ok {
		t.Errorf("Convert(array) = %T, want *Array", Convert(arr))
	}
	if _, ok := Materialize(tbl).(*starlark.Dict); !ok {
		t.Errorf("Materialize(table) = %T, want *starlark.Dict", Materialize(tbl))
	}
	if _, ok := Materialize(arr).(*starlark.List); !ok {
		t.Errorf("Materialize(array) = %T, want *starlark.List", Materialize(arr))
	}
}

func TestMaterialize_Nested(t *testing.T) {
	inner := tomltree.NewTable()
	inner.Set("b", tomltree.NewArray(tomltree.Integer(1), tomltree.Integer(2), tomltree.Integer(3)))
	root := tomltree.NewTable()
	root.Set("a", inner)
	root.Set("rows", tomltree.NewArray(
		tomltree.NewArray(tomltree.String("x")),
		inner,
	))

	got := Materialize(root)
	innerDict := dict("b", starlark.NewList(ints(1, 2, 3)))
	want := dict(
		"a", innerDict,
		"rows", starlark.NewList([]starlark.Value{
			starlark.NewList([]starlark.Value{starlark.String("x")}),
			innerDict,
		}),
	)
	mustEqual(t, "Materialize(root)", got, want)
}

func TestDatetimeDict(t *testing.T) {
	tests := []struct {
		name string
		in   tomltree.Datetime
		want *starlark.Dict
	}{
		{
			name: "date only",
			in:   tomltree.Datetime{Date: &tomltree.Date{Year: 2000, Month: 1, Day: 1}},
			want: dict(
				"year", starlark.MakeInt(2000), "month", starlark.MakeInt(1), "day", starlark.MakeInt(1),
				"weekday", starlark.MakeInt(6),
			),
		},
		{
			name: "time only",
			in:   tomltree.Datetime{Time: &tomltree.Time{Hour: 7, Minute: 32, Second: 1, Nanosecond: 5}},
			want: dict(
				"hour", starlark.MakeInt(7), "minute", starlark.MakeInt(32), "second", starlark.MakeInt(1),
				"nanosecond", starlark.MakeInt(5),
			),
		},
		{
			name: "custom offset",
			in: tomltree.Datetime{
				Date:   &tomltree.Date{Year: 2000, Month: 1, Day: 1},
				Time:   &tomltree.Time{},
				Offset: &tomltree.Offset{Custom: true, Minutes: 150},
			},
			want: dict(
				"year", starlark.MakeInt(2000), "month", starlark.MakeInt(1), "day", starlark.MakeInt(1),
				"weekday", starlark.MakeInt(6),
				"hour", starlark.MakeInt(0), "minute", starlark.MakeInt(0), "second", starlark.MakeInt(0),
				"nanosecond", starlark.MakeInt(0),
				"bias", starlark.MakeInt(150),
			),
		},
		{
			name: "utc offset",
			in: tomltree.Datetime{
				Time:   &tomltree.Time{Hour: 12},
				Offset: &tomltree.Offset{Minutes: 99},
			},
			want: dict(
				"hour", starlark.MakeInt(12), "minute", starlark.MakeInt(0), "second", starlark.MakeInt(0),
				"nanosecond", starlark.MakeInt(0),
				"bias", starlark.MakeInt(0),
			),
		},
		{
			name: "empty",
			in:   tomltree.Datetime{},
			want: dict(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustEqual(t, "DatetimeDict", DatetimeDict(tt.in), tt.want)
			mustEqual(t, "Convert", Convert(tt.in), tt.want)
		})
	}
}

func TestDatetimeDict_KeyOrder(t *testing.T) {
	d := DatetimeDict(tomltree.Datetime{
		Date:   &tomltree.Date{Year: 2024, Month: 2, Day: 29},
		Time:   &tomltree.Time{Hour: 1},
		Offset: &tomltree.Offset{Custom: true, Minutes: -60},
	})
	want := []string{"year", "month", "day", "weekday", "hour", "minute", "second", "nanosecond", "bias"}
	keys := d.Keys()
	if len(keys) != len(want) {
		t.Fatalf("len(keys) = %d, want %d", len(keys), len(want))
	}
	for i, k := range keys {
		if string(k.(starlark.String)) != want[i] {
			t.Errorf("keys[%d] = %s, want %q", i, k, want[i])
		}
	}
}

func TestConvert_Independent(t *testing.T) {
	dt := tomltree.Datetime{Date: &tomltree.Date{Year: 2000, Month: 1, Day: 1}}
	first := Convert(dt).(*starlark.Dict)
	second := Convert(dt).(*starlark.Dict)
	if first == second {
		t.Fatal("Convert returned the same dict twice")
	}
	if err := first.SetKey(starlark.String("year"), starlark.MakeInt(1)); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	year, _, _ := second.Get(starlark.String("year"))
	mustEqual(t, "second[year]", year, starlark.MakeInt(2000))
}

package tomlmod

import (
	"go.starlark.net/starlark"

	"github.com/albertocavalcante/skytoml/internal/calendar"
	"github.com/albertocavalcante/skytoml/internal/tomltree"
)

// Datetime dict keys.
const (
	KeyYear       = "year"
	KeyMonth      = "month"
	KeyDay        = "day"
	KeyWeekday    = "weekday"
	KeyHour       = "hour"
	KeyMinute     = "minute"
	KeySecond     = "second"
	KeyNanosecond = "nanosecond"
	KeyBias       = "bias"
)

// Convert returns the Starlark value for v. Arrays and tables become
// wrappers that convert their contents on access.
func Convert(v tomltree.Value) starlark.Value {
	switch v := v.(type) {
	case *tomltree.Array:
		return NewArray(v)
	case *tomltree.Table:
		return NewTable(v)
	default:
		return scalar(v)
	}
}

// Materialize returns the Starlark value for v with arrays and tables
// converted eagerly, at any depth, into lists and dicts.
func Materialize(v tomltree.Value) starlark.Value {
	switch v := v.(type) {
	case *tomltree.Array:
		return arrayToList(v)
	case *tomltree.Table:
		return tableToDict(v)
	default:
		return scalar(v)
	}
}

func scalar(v tomltree.Value) starlark.Value {
	switch v := v.(type) {
	case tomltree.String:
		return starlark.String(v)
	case tomltree.Integer:
		return starlark.MakeInt64(int64(v))
	case tomltree.Float:
		return starlark.Float(v)
	case tomltree.Boolean:
		return starlark.Bool(v)
	case tomltree.Datetime:
		return DatetimeDict(v)
	}
	return starlark.None
}

func tableToDict(t *tomltree.Table) *starlark.Dict {
	dict := starlark.NewDict(t.Len())
	for _, k := range t.Keys() {
		v, _ := t.Get(k)
		setKey(dict, k, Materialize(v))
	}
	return dict
}

func arrayToList(a *tomltree.Array) *starlark.List {
	elems := make([]starlark.Value, a.Len())
	for i := range elems {
		v, _ := a.Index(i)
		elems[i] = Materialize(v)
	}
	return starlark.NewList(elems)
}

// DatetimeDict flattens d into a dict. Only the components present in d
// contribute keys: year, month, day and weekday for a date; hour, minute,
// second and nanosecond for a time; bias (offset minutes, 0 for "Z") for an
// offset.
func DatetimeDict(d tomltree.Datetime) *starlark.Dict {
	dict := starlark.NewDict(9)
	if date := d.Date; date != nil {
		setInt(dict, KeyYear, date.Year)
		setInt(dict, KeyMonth, date.Month)
		setInt(dict, KeyDay, date.Day)
		setInt(dict, KeyWeekday, calendar.Weekday(date.Year, date.Month, date.Day))
	}
	if tm := d.Time; tm != nil {
		setInt(dict, KeyHour, tm.Hour)
		setInt(dict, KeyMinute, tm.Minute)
		setInt(dict, KeySecond, tm.Second)
		setInt(dict, KeyNanosecond, tm.Nanosecond)
	}
	if off := d.Offset; off != nil {
		bias := int32(0)
		if off.Custom {
			bias = off.Minutes
		}
		setInt(dict, KeyBias, bias)
	}
	return dict
}

func setInt(d *starlark.Dict, key string, v int32) {
	setKey(d, key, starlark.MakeInt(int(v)))
}

// setKey stores into a dict created by this package. Such dicts are
// unfrozen and keyed by strings, so SetKey cannot fail.
func setKey(d *starlark.Dict, key string, v starlark.Value) {
	_ = d.SetKey(starlark.String(key), v)
}

package tomlmod

import (
	"errors"
	"strings"
	"testing"

	"go.starlark.net/starlark"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/albertocavalcante/skytoml/internal/tomltree"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// execScript runs src with the toml module predeclared and returns its globals.
func execScript(t *testing.T, logger *zap.Logger, src string) starlark.StringDict {
	t.Helper()
	thread := &starlark.Thread{Name: "script"}
	predeclared := starlark.StringDict{ModuleName: NewModule(logger)}
	globals, err := starlark.ExecFile(thread, "test.star", src, predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			t.Fatalf("script failed: %s", evalErr.Backtrace())
		}
		t.Fatalf("script failed: %v", err)
	}
	return globals
}

func TestModule_Script(t *testing.T) {
	logger, logs := observedLogger()
	globals := execScript(t, logger, `
doc = toml.parse("""
title = "example"
x = 42

[owner]
dob = 1979-05-27T07:32:00-08:00

[a]
b = [1, 2, 3]

[[fruit]]
name = "apple"
""")
root = doc.get_root()
x = root.get("x")
missing = root.get("nope")
b = root.get("a").get("b")
b_second = b.get(1)
b_oob = b.get(3)
b_neg = b.get(-1)
b_len = len(b)
b_items = [v for v in b]
b_index = b[2]
dob = root.get("owner").get("dob")
fruit = root.get("fruit").get(0).get("name")
keys = root.keys()
table_keys = [k for k in root]
d1 = root.to_dict()
d2 = root.to_dict()
d1["x"] = 0
same_after_mutation = root.get("x")
nested = d2["a"]
`)

	mustEqual(t, "x", globals["x"], starlark.MakeInt(42))
	mustEqual(t, "missing", globals["missing"], starlark.None)
	mustEqual(t, "b_second", globals["b_second"], starlark.MakeInt(2))
	mustEqual(t, "b_oob", globals["b_oob"], starlark.None)
	mustEqual(t, "b_neg", globals["b_neg"], starlark.None)
	mustEqual(t, "b_len", globals["b_len"], starlark.MakeInt(3))
	mustEqual(t, "b_items", globals["b_items"], starlark.NewList(ints(1, 2, 3)))
	mustEqual(t, "b_index", globals["b_index"], starlark.MakeInt(3))
	mustEqual(t, "fruit", globals["fruit"], starlark.String("apple"))
	mustEqual(t, "same_after_mutation", globals["same_after_mutation"], starlark.MakeInt(42))
	mustEqual(t, "nested", globals["nested"], dict("b", starlark.NewList(ints(1, 2, 3))))

	wantKeys := starlark.NewList([]starlark.Value{
		starlark.String("title"), starlark.String("x"), starlark.String("owner"),
		starlark.String("a"), starlark.String("fruit"),
	})
	mustEqual(t, "keys", globals["keys"], wantKeys)
	mustEqual(t, "table_keys", globals["table_keys"], wantKeys)

	mustEqual(t, "dob", globals["dob"], dict(
		"year", starlark.MakeInt(1979), "month", starlark.MakeInt(5), "day", starlark.MakeInt(27),
		"weekday", starlark.MakeInt(0),
		"hour", starlark.MakeInt(7), "minute", starlark.MakeInt(32), "second", starlark.MakeInt(0),
		"nanosecond", starlark.MakeInt(0),
		"bias", starlark.MakeInt(-480),
	))

	d2, _, _ := globals["d2"].(*starlark.Dict).Get(starlark.String("x"))
	mustEqual(t, "d2[x]", d2, starlark.MakeInt(42))

	if logs.Len() != 0 {
		t.Errorf("unexpected log entries: %v", logs.All())
	}
}

func TestModule_ParseFailure(t *testing.T) {
	logger, logs := observedLogger()
	globals := execScript(t, logger, `doc = toml.parse('x = "abc')`)

	if globals["doc"] != starlark.None {
		t.Errorf("doc = %s, want None", globals["doc"])
	}

	entries := logs.FilterMessage("toml parse failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d parse failure entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.ErrorLevel {
		t.Errorf("level = %s, want error", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["thread"] != "script" {
		t.Errorf("thread field = %v, want %q", fields["thread"], "script")
	}
	if fields["line"] != int64(1) {
		t.Errorf("line field = %v (%T), want 1", fields["line"], fields["line"])
	}
	if msg, _ := fields["error"].(string); msg == "" || strings.HasSuffix(msg, ": ") {
		t.Errorf("error field = %q, want parser diagnostic", fields["error"])
	}
}

func TestModule_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"parse without args", `toml.parse()`, "toml.parse: got 0 arguments, want 1"},
		{"parse non-string", `toml.parse(1)`, "toml.parse: for parameter 1: got int, want string"},
		{"get non-string key", `toml.parse("a = 1").get_root().get(1)`, "get: for parameter 1: got int, want string"},
		{"array get non-int", `toml.parse("a = [1]").get_root().get("a").get("0")`, "get: for parameter 1: got string, want int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thread := &starlark.Thread{Name: tt.name}
			predeclared := starlark.StringDict{ModuleName: NewModule(nil)}
			_, err := starlark.ExecFile(thread, "test.star", tt.src, predeclared)
			if err == nil {
				t.Fatalf("ExecFile(%q) succeeded, want error", tt.src)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestParse_ReturnsNilAndLogs(t *testing.T) {
	logger, logs := observedLogger()

	if doc := Parse(logger, "[[["); doc != nil {
		t.Errorf("Parse(invalid) = %v, want nil", doc)
	}
	if logs.Len() != 1 {
		t.Errorf("got %d log entries, want 1", logs.Len())
	}

	doc := Parse(logger, "a = 1")
	if doc == nil || doc.Root() == nil {
		t.Fatal("Parse(valid) returned no document")
	}
	if logs.Len() != 1 {
		t.Errorf("successful parse logged %d new entries", logs.Len()-1)
	}
}

func TestDecode_ReturnsParseError(t *testing.T) {
	_, err := Decode(`x = "abc`)
	var perr *tomltree.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Decode error = %T, want *tomltree.ParseError", err)
	}
	if perr.Line != 1 {
		t.Errorf("Line = %d, want 1", perr.Line)
	}
}

func TestReportError_NilLogger(t *testing.T) {
	ReportError(nil, errors.New("boom"))
	if doc := Parse(nil, "[[["); doc != nil {
		t.Errorf("Parse(nil, invalid) = %v, want nil", doc)
	}
}

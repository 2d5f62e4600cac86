// Package tomlmod exposes TOML documents to Starlark.
//
// Scripts call toml.parse(text) to obtain a document; the document's root
// table and any nested tables and arrays are wrappers that convert their
// contents into Starlark values on access:
//
//	doc = toml.parse(read_file("app.toml"))
//	if doc == None:
//	    fail("bad config")
//	root = doc.get_root()
//	port = root.get("server").get("port")
//	settings = root.to_dict()
//
// Lookups of missing keys and out-of-range indices return None. Dates and
// times are returned as dicts with keys drawn from year, month, day,
// weekday, hour, minute, second, nanosecond and bias.
//
// Parse failures never raise; they are logged and parse returns None.
package tomlmod

import (
	"errors"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skytoml/internal/tomltree"
)

// ModuleName is the name under which the module is predeclared.
const ModuleName = "toml"

// NewModule returns the toml module. Parse failures are reported to logger;
// a nil logger discards them.
func NewModule(logger *zap.Logger) *starlarkstruct.Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	parse := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var text string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &text); err != nil {
			return nil, err
		}
		log := logger
		if thread != nil && thread.Name != "" {
			log = log.With(zap.String("thread", thread.Name))
		}
		if doc := Parse(log, text); doc != nil {
			return doc, nil
		}
		return starlark.None, nil
	}
	return &starlarkstruct.Module{
		Name: ModuleName,
		Members: starlark.StringDict{
			"parse": starlark.NewBuiltin(ModuleName+".parse", parse),
		},
	}
}

// Decode parses text into a document.
// Syntax errors are returned as *tomltree.ParseError.
func Decode(text string) (*Document, error) {
	root, err := tomltree.Parse(text)
	if err != nil {
		return nil, err
	}
	return &Document{root: NewTable(root)}, nil
}

// Parse parses text into a document. On failure the parser diagnostic is
// logged at error level and Parse returns nil.
func Parse(logger *zap.Logger, text string) *Document {
	doc, err := Decode(text)
	if err != nil {
		ReportError(logger, err)
		return nil
	}
	return doc
}

// ReportError logs a parse failure with its position when known.
func ReportError(logger *zap.Logger, err error) {
	if logger == nil {
		return
	}
	fields := []zap.Field{zap.Error(err)}
	var perr *tomltree.ParseError
	if errors.As(err, &perr) && perr.Line > 0 {
		fields = append(fields, zap.Int("line", perr.Line), zap.Int("column", perr.Column))
	}
	logger.Error("toml parse failed", fields...)
}

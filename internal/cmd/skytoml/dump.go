package skytoml

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skytoml/internal/cli"
	"github.com/albertocavalcante/skytoml/internal/starlark/tomlmod"
)

// runDump prints the materialized value of each TOML file, or compares it
// with the golden file.
func runDump(opts *options) error {
	var out strings.Builder
	failed := false

	for _, file := range opts.files {
		text, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}

		doc, err := tomlmod.Decode(string(text))
		if err != nil {
			tomlmod.ReportError(opts.logger.With(zap.String("file", file)), err)
			failed = true
			continue
		}

		rendered, err := render(doc.Root().ToDict(), opts.cfg.Dump.Format)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if len(opts.files) > 1 {
			cli.FileHeader(&out, file)
		}
		out.WriteString(rendered)
		out.WriteString("\n")
	}

	if failed {
		return cli.ExitCodeError(cli.ExitError)
	}

	switch {
	case opts.update:
		if err := os.WriteFile(opts.golden, []byte(out.String()), 0o644); err != nil {
			return fmt.Errorf("writing golden file: %w", err)
		}
		opts.logger.Info("updated golden file", zap.String("path", opts.golden))
		return nil
	case opts.golden != "":
		return compareGolden(opts, out.String())
	default:
		cli.Write(opts.stdout, out.String())
		return nil
	}
}

// render formats v as a Starlark literal or indented JSON.
func render(v *starlark.Dict, format string) (string, error) {
	switch format {
	case "", "starlark":
		return v.String(), nil
	case "json":
		thread := &starlark.Thread{Name: "dump"}
		encoded, err := starlark.Call(thread, json.Module.Members["encode"], starlark.Tuple{v}, nil)
		if err != nil {
			return "", err
		}
		indented, err := starlark.Call(thread, json.Module.Members["indent"], starlark.Tuple{encoded},
			[]starlark.Tuple{{starlark.String("indent"), starlark.String("  ")}})
		if err != nil {
			return "", err
		}
		s, _ := starlark.AsString(indented)
		return s, nil
	default:
		return "", fmt.Errorf("unknown dump format %q", format)
	}
}

// compareGolden prints a unified diff and returns ExitWarning when got
// differs from the golden file.
func compareGolden(opts *options, got string) error {
	want, err := os.ReadFile(opts.golden)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("golden file %s does not exist (use -update to create it)", opts.golden)
		}
		return fmt.Errorf("reading golden file: %w", err)
	}
	if string(want) == got {
		return nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want)),
		B:        difflib.SplitLines(got),
		FromFile: opts.golden,
		ToFile:   "dump",
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("computing diff: %w", err)
	}
	cli.Write(opts.stdout, diff)
	return cli.ExitCodeError(cli.ExitWarning)
}

// Package runner executes Starlark scripts with the toml module available.
//
// Every script runs on its own thread with a fresh set of predeclared
// values: toml, json, assert, read_file and args, plus the globals of any
// prelude files. Relative load() statements are resolved against the
// loading file. Execution is bounded by a timeout.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skytoml/internal/starlark/assert"
	"github.com/albertocavalcante/skytoml/internal/starlark/tomlmod"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 30 * time.Second

// ScriptOptions is the dialect scripts are compiled with. Top-level
// control flow is allowed so a script can loop over a document directly.
var ScriptOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Result describes a single script execution.
type Result struct {
	// File is the script path as given.
	File string

	// Globals are the script's top-level bindings after execution.
	Globals starlark.StringDict

	// Loads lists the absolute paths of modules loaded by the script.
	Loads []string

	// DataFiles lists the absolute paths read through read_file.
	DataFiles []string

	// Duration is how long the script took.
	Duration time.Duration

	// Error is the execution error, if any.
	Error error
}

// Dependencies returns every file the result depends on besides the script.
func (r *Result) Dependencies() []string {
	deps := make([]string, 0, len(r.Loads)+len(r.DataFiles))
	deps = append(deps, r.Loads...)
	return append(deps, r.DataFiles...)
}

// Options configures the runner.
type Options struct {
	// Predeclared contains additional predeclared values.
	Predeclared starlark.StringDict

	// Preludes are executed before each script; their globals become
	// predeclared in the script.
	Preludes []string

	// Args is exposed to scripts as the args list.
	Args []string

	// Timeout bounds each execution. Zero means DefaultTimeout.
	Timeout time.Duration

	// Stdout receives print() output. Nil discards it.
	Stdout io.Writer

	// Logger receives diagnostics, including TOML parse failures.
	Logger *zap.Logger
}

// Runner executes scripts.
type Runner struct {
	opts Options
}

// New creates a runner.
func New(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// RunFile executes the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) *Result {
	start := time.Now()
	result := &Result{File: path}
	defer func() { result.Duration = time.Since(start) }()

	src, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Errorf("reading %s: %w", path, err)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	s := r.newSession(ctx, path, result)
	predeclared, err := s.predeclared()
	if err != nil {
		result.Error = err
		return result
	}

	thread := s.thread(path, path)
	stop := cancelOnDone(ctx, thread)
	defer stop()

	r.opts.Logger.Debug("running script", zap.String("file", path))
	globals, err := starlark.ExecFileOptions(ScriptOptions, thread, path, src, predeclared)
	if err != nil {
		result.Error = fmt.Errorf("executing %s: %w", path, err)
		return result
	}
	result.Globals = globals
	return result
}

// Eval evaluates a single expression with the same predeclared values a
// script in the working directory would see.
func (r *Runner) Eval(ctx context.Context, expr string) (starlark.Value, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	origin := filepath.Join(wd, "<expr>")

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	s := r.newSession(ctx, origin, &Result{File: "<expr>"})
	predeclared, err := s.predeclared()
	if err != nil {
		return nil, err
	}

	thread := s.thread("<expr>", origin)
	stop := cancelOnDone(ctx, thread)
	defer stop()

	return starlark.EvalOptions(ScriptOptions, thread, "<expr>", expr, predeclared)
}

// cancelOnDone cancels thread when ctx is done. The returned function
// releases the watcher.
func cancelOnDone(ctx context.Context, thread *starlark.Thread) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			reason := "execution cancelled"
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				reason = "execution timeout"
			}
			thread.Cancel(reason)
		case <-done:
		}
	}()
	return func() { close(done) }
}

// BasePredeclared returns the modules every script sees, without preludes
// or per-run builtins.
func (r *Runner) BasePredeclared() starlark.StringDict {
	predeclared := starlark.StringDict{
		tomlmod.ModuleName: tomlmod.NewModule(r.opts.Logger),
		"json":             json.Module,
		"assert":           assert.NewModule(),
	}
	for k, v := range r.opts.Predeclared {
		predeclared[k] = v
	}
	return predeclared
}

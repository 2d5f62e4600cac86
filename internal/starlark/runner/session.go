package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.uber.org/zap"
)

// session holds the state of one execution: loaded modules and the files
// the script touched. Every thread it starts, including those of loaded
// modules, is cancelled when ctx is done.
type session struct {
	ctx    context.Context
	r      *Runner
	origin string
	result *Result
	cache  map[string]*loadEntry
	base   starlark.StringDict
}

type loadEntry struct {
	globals starlark.StringDict
	err     error
}

func (r *Runner) newSession(ctx context.Context, origin string, result *Result) *session {
	return &session{
		ctx:    ctx,
		r:      r,
		origin: origin,
		result: result,
		cache:  make(map[string]*loadEntry),
	}
}

// predeclared builds the script's predeclared values, running preludes.
func (s *session) predeclared() (starlark.StringDict, error) {
	combined := s.r.BasePredeclared()
	combined["read_file"] = starlark.NewBuiltin("read_file", s.readFile)
	args := make([]starlark.Value, len(s.r.opts.Args))
	for i, a := range s.r.opts.Args {
		args[i] = starlark.String(a)
	}
	combined["args"] = starlark.NewList(args)
	s.base = combined

	for _, prelude := range s.r.opts.Preludes {
		src, err := os.ReadFile(prelude)
		if err != nil {
			return nil, fmt.Errorf("reading prelude %s: %w", prelude, err)
		}

		thread := s.thread(prelude, prelude)
		stop := cancelOnDone(s.ctx, thread)
		globals, err := starlark.ExecFileOptions(ScriptOptions, thread, prelude, src, combined)
		stop()
		if err != nil {
			return nil, fmt.Errorf("executing prelude %s: %w", prelude, err)
		}

		next := make(starlark.StringDict, len(combined)+len(globals))
		for k, v := range combined {
			next[k] = v
		}
		for k, v := range globals {
			next[k] = v
		}
		combined = next
	}
	return combined, nil
}

// fileKey is the thread-local holding the path of the executing file.
const fileKey = "skytoml.file"

func (s *session) thread(name, file string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			_, _ = fmt.Fprintln(s.r.opts.Stdout, msg)
		},
		Load: s.load,
	}
	thread.SetLocal(fileKey, file)
	return thread
}

// resolve returns the absolute path of name relative to the file that
// thread is executing.
func (s *session) resolve(thread *starlark.Thread, name string) (string, error) {
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	from := s.origin
	if thread != nil {
		if f, ok := thread.Local(fileKey).(string); ok && f != "" {
			from = f
		}
	}
	abs, err := filepath.Abs(filepath.Join(filepath.Dir(from), name))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", name, err)
	}
	return abs, nil
}

func (s *session) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	path, err := s.resolve(thread, module)
	if err != nil {
		return nil, err
	}

	e, ok := s.cache[path]
	if ok {
		if e == nil {
			return nil, fmt.Errorf("cycle in load graph at %s", module)
		}
		return e.globals, e.err
	}

	s.cache[path] = nil
	s.result.Loads = append(s.result.Loads, path)

	src, err := os.ReadFile(path)
	if err != nil {
		e = &loadEntry{err: fmt.Errorf("loading %s: %w", module, err)}
	} else {
		child := s.thread(path, path)
		stop := cancelOnDone(s.ctx, child)
		globals, err := starlark.ExecFileOptions(ScriptOptions, child, path, src, s.base)
		stop()
		e = &loadEntry{globals: globals, err: err}
	}
	s.cache[path] = e
	return e.globals, e.err
}

// readFile implements read_file(path) -> string. Relative paths resolve
// against the calling file's directory.
func (s *session) readFile(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}

	path, err := s.resolve(thread, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	s.result.DataFiles = append(s.result.DataFiles, path)
	s.r.opts.Logger.Debug("read file", zap.String("path", path), zap.Int("bytes", len(data)))
	return starlark.String(data), nil
}

package skyconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.starlark.net/starlark"
)

// DefaultStarlarkTimeout is the default execution timeout for Starlark config files.
const DefaultStarlarkTimeout = 5 * time.Second

// ErrConfigureNotFound is returned when a Starlark config doesn't define a configure() function.
var ErrConfigureNotFound = errors.New("skytoml.star must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file.
// The file must define a configure() function that returns a dict.
// The execution is sandboxed: no filesystem or network access, with a timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// Create a cancellable context for timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Create thread with timeout
	thread := &starlark.Thread{
		Name: path,
	}

	// Set up cancellation
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	// Execute the file with sandboxed predeclared
	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	// Look for configure function
	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}

	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	// Call configure()
	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}

	// Convert result to Config
	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}

	return dictToConfig(dict)
}

// configPredeclared returns the predeclared values for config Starlark files.
// This is a sandboxed environment with no filesystem or network access.
func configPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"duration":  starlark.NewBuiltin("duration", builtinDuration),
		"struct":    starlark.NewBuiltin("struct", builtinStruct),
	}
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}

	val := os.Getenv(name)
	if val == "" {
		return defaultVal, nil
	}
	return starlark.String(val), nil
}

// builtinDuration implements duration(s) -> string.
// Validates that the string is a valid Go duration.
func builtinDuration(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs("duration", args, kwargs, "s", &s); err != nil {
		return nil, err
	}

	// Validate the duration format
	if _, err := time.ParseDuration(s); err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	return starlark.String(s), nil
}

// builtinStruct implements a simple struct constructor.
func builtinStruct(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, errors.New("struct: positional arguments not allowed")
	}

	// Create a dict from kwargs
	d := starlark.NewDict(len(kwargs))
	for _, kv := range kwargs {
		if err := d.SetKey(starlark.String(string(kv[0].(starlark.String))), kv[1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// dictToConfig converts a Starlark dict to a Config struct.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name  string
		parse func(*starlark.Dict) error
	}{
		{"run", func(s *starlark.Dict) error { return parseRunConfig(s, &cfg.Run) }},
		{"log", func(s *starlark.Dict) error {
			return setString(s, "level", &cfg.Log.Level)
		}},
		{"dump", func(s *starlark.Dict) error {
			return setString(s, "format", &cfg.Dump.Format)
		}},
	}

	for _, section := range sections {
		v, found, _ := d.Get(starlark.String(section.name))
		if !found {
			continue
		}
		sd, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("%s must be a dict, got %s", section.name, v.Type())
		}
		if err := section.parse(sd); err != nil {
			return nil, fmt.Errorf("parsing %s config: %w", section.name, err)
		}
	}

	return cfg, nil
}

// parseRunConfig parses the run section from a Starlark dict.
func parseRunConfig(d *starlark.Dict, cfg *RunConfig) error {
	if v, found, _ := d.Get(starlark.String("timeout")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("timeout must be a string, got %s", v.Type())
		}
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s, err)
		}
		cfg.Timeout = Duration{dur}
	}

	if v, found, _ := d.Get(starlark.String("prelude")); found {
		list, ok := v.(*starlark.List)
		if !ok {
			return fmt.Errorf("prelude must be a list, got %s", v.Type())
		}
		cfg.Prelude = nil
		for i := 0; i < list.Len(); i++ {
			s, ok := starlark.AsString(list.Index(i))
			if !ok {
				return fmt.Errorf("prelude[%d] must be a string", i)
			}
			cfg.Prelude = append(cfg.Prelude, s)
		}
	}

	return nil
}

func setString(d *starlark.Dict, key string, dst *string) error {
	v, found, _ := d.Get(starlark.String(key))
	if !found {
		return nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return fmt.Errorf("%s must be a string, got %s", key, v.Type())
	}
	*dst = s
	return nil
}

// Package skyconfig loads skytoml configuration.
//
// Two formats are supported:
//   - skytoml.star: Starlark, defining configure() that returns a dict
//   - skytoml.toml: declarative TOML
//
// Configuration is discovered by walking up from the working directory to
// the git root. The SKYTOML_CONFIG environment variable or the -config flag
// name a file explicitly.
package skyconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config file names in priority order.
const (
	ConfigStar = "skytoml.star"
	ConfigTOML = "skytoml.toml"
)

// EnvConfig is the environment variable naming a config file.
const EnvConfig = "SKYTOML_CONFIG"

// ErrConflict is returned when multiple config files exist in the same directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Accepted values for Log.Level and Dump.Format.
var (
	LogLevels   = []string{"debug", "info", "warn", "error"}
	DumpFormats = []string{"starlark", "json"}
)

// Config represents the skytoml configuration.
type Config struct {
	Run  RunConfig  `json:"run" toml:"run"`
	Log  LogConfig  `json:"log" toml:"log"`
	Dump DumpConfig `json:"dump" toml:"dump"`
}

// RunConfig controls script execution.
type RunConfig struct {
	// Timeout bounds a single script execution (e.g., "30s", "1m").
	Timeout Duration `json:"timeout" toml:"timeout"`

	// Prelude lists Starlark files executed before each script. Relative
	// paths resolve against the config file's directory.
	Prelude []string `json:"prelude" toml:"prelude"`
}

// LogConfig controls the diagnostic channel.
type LogConfig struct {
	// Level is the minimum level written to stderr.
	Level string `json:"level" toml:"level"`
}

// DumpConfig controls -dump output.
type DumpConfig struct {
	// Format is "starlark" or "json".
	Format string `json:"format" toml:"format"`
}

// Duration wraps time.Duration for TOML/JSON string parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return nil, nil
	}
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Run:  RunConfig{Timeout: Duration{30 * time.Second}},
		Log:  LogConfig{Level: "warn"},
		Dump: DumpConfig{Format: "starlark"},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.Run.Timeout.Duration < 0 {
		err = multierr.Append(err, fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout))
	}
	if c.Log.Level != "" && !contains(LogLevels, c.Log.Level) {
		err = multierr.Append(err, fmt.Errorf("log.level must be one of %s, got %q", strings.Join(LogLevels, ", "), c.Log.Level))
	}
	if c.Dump.Format != "" && !contains(DumpFormats, c.Dump.Format) {
		err = multierr.Append(err, fmt.Errorf("dump.format must be one of %s, got %q", strings.Join(DumpFormats, ", "), c.Dump.Format))
	}
	for i, p := range c.Run.Prelude {
		if p == "" {
			err = multierr.Append(err, fmt.Errorf("run.prelude[%d] must not be empty", i))
		}
	}
	return err
}

// PreludePaths returns the prelude files resolved against the directory
// of configPath. With no config file they resolve against the working
// directory.
func (c *Config) PreludePaths(configPath string) []string {
	if len(c.Run.Prelude) == 0 {
		return nil
	}
	base := "."
	if configPath != "" {
		base = filepath.Dir(configPath)
	}
	paths := make([]string, len(c.Run.Prelude))
	for i, p := range c.Run.Prelude {
		if filepath.IsAbs(p) {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(base, p)
		}
	}
	return paths
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from path, on top of DefaultConfig.
// The format is detected from the file extension.
func LoadConfig(path string) (*Config, error) {
	var (
		loaded *Config
		err    error
	)
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		loaded, err = LoadTOMLConfig(path)
	case ".star":
		loaded, err = LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .star or .toml)", ext)
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Merge(loaded)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If SKYTOML_CONFIG is set, use that path
//  2. Walk up from startDir to the git root looking for config files
//
// It returns the loaded config and its path. If no config is found it
// returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	gitRoot := findGitRoot(absDir)

	dir := absDir
	for {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}
		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if gitRoot != "" && dir == gitRoot {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

// findConfigInDir returns the config file in dir, "" if there is none, or
// ErrConflict if there are several.
func findConfigInDir(dir string) (string, error) {
	var found []string
	for _, name := range []string{ConfigStar, ConfigTOML} {
		if fileExists(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		return "", fmt.Errorf("%w: found %s in %s", ErrConflict, strings.Join(found, ", "), dir)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// findGitRoot returns the enclosing git repository root, or "".
func findGitRoot(startDir string) string {
	dir := startDir
	for {
		if fileExists(filepath.Join(dir, ".git")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Merge merges the other config into this one.
// Non-zero values from other override values in c; preludes accumulate.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Run.Timeout.Duration != 0 {
		c.Run.Timeout = other.Run.Timeout
	}
	if len(other.Run.Prelude) > 0 {
		c.Run.Prelude = append(c.Run.Prelude, other.Run.Prelude...)
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Dump.Format != "" {
		c.Dump.Format = other.Dump.Format
	}
}

// Package skytoml implements the skytoml command: a Starlark host that
// exposes a TOML parser to scripts.
package skytoml

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skytoml/internal/cli"
	"github.com/albertocavalcante/skytoml/internal/filekind"
	"github.com/albertocavalcante/skytoml/internal/skyconfig"
	"github.com/albertocavalcante/skytoml/internal/starlark/runner"
	"github.com/albertocavalcante/skytoml/internal/version"
)

// options holds the resolved settings for one invocation.
type options struct {
	expr       string
	dump       bool
	golden     string
	update     bool
	watch      bool
	files      []string
	scriptArgs []string

	cfg        *skyconfig.Config
	configPath string
	logger     *zap.Logger
	stdout     io.Writer
	stderr     io.Writer
}

// Run executes skytoml with the given arguments and returns an exit code.
// SIGINT and SIGTERM stop watch mode.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunWithIO(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	var (
		exprFlag     string
		dumpFlag     bool
		formatFlag   string
		goldenFlag   string
		updateFlag   bool
		configFlag   string
		timeoutFlag  time.Duration
		logLevelFlag string
		watchFlag    bool
		versionFlag  bool
	)

	args, scriptArgs := splitArgs(args)

	fs := flag.NewFlagSet("skytoml", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&exprFlag, "e", "", "evaluate a Starlark expression and print its value")
	fs.BoolVar(&dumpFlag, "dump", false, "print the value of each TOML file")
	fs.StringVar(&formatFlag, "format", "", "dump format: starlark or json (default from config)")
	fs.StringVar(&goldenFlag, "golden", "", "compare dump output with this file")
	fs.BoolVar(&updateFlag, "update", false, "with -golden, rewrite the golden file")
	fs.StringVar(&configFlag, "config", "", "config file (default: discover skytoml.star or skytoml.toml)")
	fs.DurationVar(&timeoutFlag, "timeout", 0, "per-script execution timeout (default from config, 30s)")
	fs.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&watchFlag, "watch", false, "re-run scripts when they or files they read change")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")

	fs.Usage = func() {
		writeln(stderr, "Usage: skytoml [flags] <script.star>... [-- args...]")
		writeln(stderr, "       skytoml -e '<expr>'")
		writeln(stderr, "       skytoml -dump [-format f] [-golden file] <file.toml>...")
		writeln(stderr)
		writeln(stderr, "Runs Starlark scripts with a TOML parser available.")
		writeln(stderr)
		writeln(stderr, "Predeclared in scripts:")
		writeln(stderr, "  toml.parse(text)   parse a document; None on failure")
		writeln(stderr, "  json               encode, decode, indent")
		writeln(stderr, "  assert             eq, ne, true, false, contains, fails, len")
		writeln(stderr, "  read_file(path)    file contents, relative to the script")
		writeln(stderr, "  args               arguments after --")
		writeln(stderr)
		writeln(stderr, "Flags:")
		fs.PrintDefaults()
		writeln(stderr)
		writeln(stderr, "Examples:")
		writeln(stderr, "  skytoml check.star                     # Run a script")
		writeln(stderr, "  skytoml -watch check.star              # Re-run on change")
		writeln(stderr, "  skytoml -dump -format json app.toml    # Print a document as JSON")
		writeln(stderr, "  skytoml -dump -golden want.txt a.toml  # Compare with golden output")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		writef(stdout, "skytoml %s\n", version.String())
		return cli.ExitOK
	}

	opts := &options{
		expr:       exprFlag,
		dump:       dumpFlag,
		golden:     goldenFlag,
		update:     updateFlag,
		watch:      watchFlag,
		files:      fs.Args(),
		scriptArgs: scriptArgs,
		stdout:     stdout,
		stderr:     stderr,
	}

	if err := opts.validate(); err != nil {
		writef(stderr, "skytoml: %v\n", err)
		fs.Usage()
		return cli.ExitError
	}

	if len(opts.files) > 0 {
		kind := filekind.KindScript
		if opts.dump {
			kind = filekind.KindDocument
		}
		files, err := filekind.Expand(opts.files, kind)
		if err != nil {
			writef(stderr, "skytoml: %v\n", err)
			return cli.ExitError
		}
		if len(files) == 0 {
			writef(stderr, "skytoml: no %s files found\n", kind)
			return cli.ExitError
		}
		opts.files = files
	}

	cfg, configPath, err := loadConfig(configFlag)
	if err != nil {
		writef(stderr, "skytoml: %v\n", err)
		return cli.ExitError
	}
	if timeoutFlag != 0 {
		cfg.Run.Timeout = skyconfig.Duration{Duration: timeoutFlag}
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if formatFlag != "" {
		cfg.Dump.Format = formatFlag
	}
	if err := cfg.Validate(); err != nil {
		writef(stderr, "skytoml: %v\n", err)
		return cli.ExitError
	}
	opts.cfg = cfg
	opts.configPath = configPath

	logger, err := cli.NewLogger(stderr, cfg.Log.Level)
	if err != nil {
		writef(stderr, "skytoml: %v\n", err)
		return cli.ExitError
	}
	defer func() { _ = logger.Sync() }()
	opts.logger = logger

	if configPath != "" {
		logger.Debug("loaded config", zap.String("path", configPath))
	}

	return exitCode(run(ctx, opts), stderr)
}

func (o *options) validate() error {
	switch {
	case o.expr != "" && o.dump:
		return errors.New("-e and -dump are mutually exclusive")
	case o.expr != "" && len(o.files) > 0:
		return errors.New("-e takes no file arguments")
	case o.expr == "" && len(o.files) == 0:
		return errors.New("no files specified")
	case o.watch && (o.expr != "" || o.dump):
		return errors.New("-watch applies to scripts only")
	case (o.golden != "" || o.update) && !o.dump:
		return errors.New("-golden and -update require -dump")
	case o.update && o.golden == "":
		return errors.New("-update requires -golden")
	}
	return nil
}

func run(ctx context.Context, opts *options) error {
	switch {
	case opts.dump:
		return runDump(opts)
	case opts.expr != "":
		return runExpr(ctx, opts)
	case opts.watch:
		return runWatch(ctx, opts)
	default:
		return runScripts(ctx, opts)
	}
}

// exitCode reports err on stderr and maps it to a process exit code.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return cli.ExitOK
	}
	var code cli.ExitCodeError
	if errors.As(err, &code) {
		return int(code)
	}
	writef(stderr, "skytoml: %v\n", err)
	return cli.ExitError
}

// splitArgs separates script arguments following the first "--".
func splitArgs(args []string) (flags, scriptArgs []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func loadConfig(path string) (*skyconfig.Config, string, error) {
	if path != "" {
		cfg, err := skyconfig.LoadConfig(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	return skyconfig.DiscoverConfig("")
}

func newRunner(opts *options) *runner.Runner {
	return runner.New(runner.Options{
		Preludes: opts.cfg.PreludePaths(opts.configPath),
		Args:     opts.scriptArgs,
		Timeout:  opts.cfg.Run.Timeout.Duration,
		Stdout:   opts.stdout,
		Logger:   opts.logger,
	})
}

func runExpr(ctx context.Context, opts *options) error {
	v, err := newRunner(opts).Eval(ctx, opts.expr)
	if err != nil {
		reportError(opts.stderr, err)
		return cli.ExitCodeError(cli.ExitError)
	}
	if v != starlark.None {
		writeln(opts.stdout, v.String())
	}
	return nil
}

func runScripts(ctx context.Context, opts *options) error {
	r := newRunner(opts)
	failed := false
	for _, file := range opts.files {
		if !runOne(ctx, r, file, opts).ok() {
			failed = true
		}
	}
	if failed {
		return cli.ExitCodeError(cli.ExitError)
	}
	return nil
}

type scriptResult struct{ *runner.Result }

func (r scriptResult) ok() bool { return r.Error == nil }

func runOne(ctx context.Context, r *runner.Runner, file string, opts *options) scriptResult {
	result := r.RunFile(ctx, file)
	if result.Error != nil {
		reportError(opts.stderr, result.Error)
	}
	opts.logger.Debug("script finished",
		zap.String("file", file),
		zap.Duration("duration", result.Duration),
		zap.Bool("ok", result.Error == nil),
	)
	return scriptResult{result}
}

// reportError writes a script failure, including the Starlark backtrace
// when there is one.
func reportError(w io.Writer, err error) {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		writeln(w, evalErr.Backtrace())
		return
	}
	writef(w, "skytoml: %v\n", err)
}

// Helper functions for writing output.
// Write errors are intentionally ignored: there is no reasonable recovery
// when stdout or stderr is broken, and the exit code still reflects the
// actual outcome.
func writef(w io.Writer, format string, args ...any) {
	cli.Writef(w, format, args...)
}

func writeln(w io.Writer, args ...any) {
	cli.Writeln(w, args...)
}

// Package cmdtest provides a testscript-based test harness for skytoml.
//
// It uses txtar format test files to specify input files and expected outputs.
//
// Example test file (testdata/skytoml/parse.txtar):
//
//	exec skytoml main.star
//	stdout 'port 8080'
//
//	-- main.star --
//	print("port", toml.parse(read_file("app.toml")).get_root().get("port"))
//	-- app.toml --
//	port = 8080
package cmdtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/skytoml/internal/cmd/skytoml"
	"github.com/albertocavalcante/skytoml/internal/skyconfig"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep config discovery inside the work directory and logs plain.
			env.Setenv(skyconfig.EnvConfig, "")
			env.Setenv("NO_COLOR", "1")
			return os.Mkdir(filepath.Join(env.WorkDir, ".git"), 0o755)
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It registers skytoml as a testscript command.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"skytoml": wrapRun(skytoml.Run),
	}))
}

// wrapRun wraps a Run(args []string) int function to func() int for testscript.
// The args are taken from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}

// Command vet runs the analyzers skytoml is checked with in CI.
//
// Usage:
//
//	go run ./tools/vet ./...
package main

import (
	"github.com/kisielk/errcheck/errcheck"
	"github.com/timakin/bodyclose/passes/bodyclose"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/unusedwrite"
)

func main() {
	multichecker.Main(
		errcheck.Analyzer,
		bodyclose.Analyzer,
		nilness.Analyzer,
		unusedwrite.Analyzer,
	)
}

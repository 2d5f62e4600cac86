// Command skytoml runs Starlark scripts with a TOML parser available.
package main

import (
	"os"

	"github.com/albertocavalcante/skytoml/internal/cmd/skytoml"
)

func main() {
	os.Exit(skytoml.Run(os.Args[1:]))
}

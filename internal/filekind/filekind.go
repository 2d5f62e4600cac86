// Package filekind classifies the files skytoml works with and expands
// command-line paths into them.
package filekind

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind represents the type of a file.
type Kind string

const (
	// KindScript is a Starlark script (.star).
	KindScript Kind = "script"
	// KindDocument is a TOML document (.toml).
	KindDocument Kind = "document"
	// KindConfig is a skytoml config file (skytoml.star or skytoml.toml).
	KindConfig Kind = "config"
	// KindUnknown indicates an unrecognized file type.
	KindUnknown Kind = "unknown"
)

// Config file names. They match skyconfig's discovery names.
const (
	configStar = "skytoml.star"
	configTOML = "skytoml.toml"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Classify determines the kind of a file from its name.
func Classify(path string) Kind {
	base := filepath.Base(path)
	switch {
	case base == configStar || base == configTOML:
		return KindConfig
	case strings.HasSuffix(base, ".star"):
		return KindScript
	case strings.HasSuffix(base, ".toml"):
		return KindDocument
	default:
		return KindUnknown
	}
}

// Expand resolves globs and directories in paths to files of kind want.
//
// Directories are walked recursively, skipping hidden directories, and
// contribute only files classified as want, sorted. Files named explicitly
// are kept in order; an explicit file of a different known kind is an
// error so that a script is never parsed as TOML or the other way round.
func Expand(paths []string, want Kind) ([]string, error) {
	var files []string
	for _, pattern := range paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			// No glob match, treat as literal path.
			matches = []string{pattern}
		}
		for _, match := range matches {
			expanded, err := expandPath(match, want)
			if err != nil {
				return nil, err
			}
			files = append(files, expanded...)
		}
	}
	return files, nil
}

func expandPath(path string, want Kind) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Missing files surface when they are read.
		if os.IsNotExist(err) {
			return []string{path}, checkExplicit(path, want)
		}
		return nil, err
	}

	if !info.IsDir() {
		return []string{path}, checkExplicit(path, want)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if Classify(p) == want {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// checkExplicit rejects a named file whose extension contradicts want.
// Config files count as their extension's kind here.
func checkExplicit(path string, want Kind) error {
	switch {
	case want == KindScript && strings.HasSuffix(path, ".toml"):
		return fmt.Errorf("%s is a TOML document; use -dump to print it", path)
	case want == KindDocument && strings.HasSuffix(path, ".star"):
		return fmt.Errorf("%s is a Starlark script; run it without -dump", path)
	}
	return nil
}

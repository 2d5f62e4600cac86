// Package version reports the skytoml build version.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X" by release builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the version line printed by skytoml -version. Builds
// installed with go install fall back to the module version and VCS
// revision recorded in the binary.
func String() string {
	version, commit, date := Version, Commit, Date
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			version, commit, date = fromBuildInfo(info, version, commit, date)
		}
	}
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func fromBuildInfo(info *debug.BuildInfo, version, commit, date string) (string, string, string) {
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 12 {
				commit = s.Value[:12]
			} else {
				commit = s.Value
			}
		case "vcs.time":
			date = s.Value
		}
	}
	return version, commit, date
}

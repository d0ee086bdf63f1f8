// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/NERVsystems/railmap/pkg/version.BuildVersion=..."
var (
	BuildVersion = "dev"
	BuildCommit  = ""
	BuildDate    = ""
)

// Info returns the build information as a flat map
func Info() map[string]string {
	commit := BuildCommit
	date := BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "" {
					commit = setting.Value
				}
			case "vcs.time":
				if date == "" {
					date = setting.Value
				}
			}
		}
	}

	return map[string]string{
		"version":    BuildVersion,
		"go_version": runtime.Version(),
		"commit":     commit,
		"build_date": date,
	}
}

// String returns a one-line version description
func String() string {
	info := Info()
	s := fmt.Sprintf("railmap %s (%s)", info["version"], info["go_version"])
	if info["commit"] != "" {
		s += " commit " + info["commit"]
	}
	return s
}

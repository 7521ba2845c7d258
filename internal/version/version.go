package version

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Full formats version, commit, and build date, falling back to the
// module version embedded by `go install` when ldflags were never set.
func Full() string {
	return resolveVersion() + " (" + resolveCommit() + ") " + Date
}

// Short returns just the version string (for the MCP server's
// Implementation.Version, which has no room for the rest).
func Short() string {
	return resolveVersion()
}

func resolveVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

func resolveCommit() string {
	if Commit != "none" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				if len(s.Value) > 7 {
					return s.Value[:7]
				}
				return s.Value
			}
		}
	}
	return Commit
}

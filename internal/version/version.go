// Package version holds build metadata injected via ldflags.
package version

import "runtime/debug"

// Set at build time with:
//
//	-X 'github.com/janekbaraniewski/ccost/internal/version.Version=...'
//	-X 'github.com/janekbaraniewski/ccost/internal/version.CommitHash=...'
//	-X 'github.com/janekbaraniewski/ccost/internal/version.BuildDate=...'
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// String formats the build metadata. A `go install` build has no ldflags, so
// the module version and VCS revision from the embedded build info are used.
func String() string {
	v, commit, date := Version, CommitHash, BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && date == "unknown":
				date = s.Value
			}
		}
	}
	return v + " (" + commit + ") built " + date
}

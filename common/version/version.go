// Package version provides build-time version information
package version

var (
	// Version is the semantic version (set via ldflags)
	Version = "v2.1.0"

	// GitCommit is the git commit hash (set via ldflags)
	GitCommit = "unknown"

	// BuildTime is the build timestamp (set via ldflags)
	BuildTime = "unknown"

	// LastUpdated is the human-facing release date quoted by the version
	// query (set via ldflags)
	LastUpdated = "2026-10-16"
)

// Info returns a formatted version string
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}

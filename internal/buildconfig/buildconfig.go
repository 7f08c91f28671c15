// Package buildconfig exposes build-time metadata injected via ldflags.
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
)

// Version returns the build version.
func Version() string {
	return version
}

// Commit returns the git commit hash.
func Commit() string {
	return commit
}

// VersionInfo returns the full build metadata for diagnostics endpoints.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}

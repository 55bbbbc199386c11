// Package version provides build version information.
package version

import "fmt"

var (
	// Version is the semantic version (injected at build time via -ldflags)
	version = "dev"
	// Commit is the git commit hash (injected at build time via -ldflags)
	commit = "none"
	// Date is the build date (injected at build time via -ldflags)
	date = "unknown"
)

// Info is the build metadata reported by `monkmode --version` and the local API.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{Version: version, Commit: commit, Date: date}
}

// GetVersion returns the semantic version string
func GetVersion() string {
	return version
}

// IsDev reports whether this is an unreleased development build.
func IsDev() bool {
	return version == "dev"
}

// String renders the version with commit and date info
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}

// GetFullVersion returns version with commit and date info
func GetFullVersion() string {
	return Get().String()
}

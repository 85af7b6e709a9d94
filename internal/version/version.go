// Package version carries build metadata set with -ldflags -X.
package version

import "fmt"

//nolint:revive // set via ldflags at build time
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version with an abbreviated commit, e.g. "v1.2.0+3f9c2ab".
func Short() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if commit == "" || commit == "unknown" {
		return Version
	}
	return Version + "+" + commit
}

// String describes the build for startup logs.
func String() string {
	return fmt.Sprintf("sqee %s (commit %s, built %s)", Version, Commit, Date)
}

// Package version provides centralized version information for asmlsp.
// This allows all packages to reference a single source of truth for version info.
package version

import (
	"strconv"
	"strings"
)

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X asmlsp/internal/version.Version=1.0.0 -X asmlsp/internal/version.Commit=abc123"
var (
	// Version is the semantic version of asmlsp
	Version = "0.9.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "asmlsp version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}

// Major returns the major component of a dotted version string, or -1 if it
// cannot be parsed. A leading "v" is ignored.
func Major(v string) int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return -1
	}
	head, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

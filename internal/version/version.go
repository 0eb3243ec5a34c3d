package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent identifies lilli to model providers, e.g. "lilli/0.1.0 (linux; go1.24)".
func UserAgent() string {
	return "lilli/" + Get() + " (" + runtime.GOOS + "; " + runtime.Version() + ")"
}

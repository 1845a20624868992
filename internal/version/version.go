// Package version exposes the skein release version embedded at build
// time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version with surrounding whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Package version exposes the hive build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the hive version string with surrounding whitespace trimmed.
func Get() string {
	return strings.TrimSpace(raw)
}

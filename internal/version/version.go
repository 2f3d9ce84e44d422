// Package version holds build metadata injected with
// -ldflags "-X github.com/portfolify/shipd/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func GoVersion() string {
	return runtime.Version()
}

// String is the one-line banner printed by `shipd version`.
func String() string {
	return fmt.Sprintf("shipd %s (%s) built %s %s", Version, Commit, BuildDate, GoVersion())
}

// Fields reports build metadata for the health endpoint.
func Fields() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
		"go_version": GoVersion(),
	}
}

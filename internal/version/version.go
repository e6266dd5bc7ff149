// Package version holds build metadata injected at link time.
package version

import "fmt"

// Version is set via ldflags in release builds:
// go build -ldflags "-X git.home.luguber.info/inful/assetpipe/internal/version.Version=v1.2.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the metadata for --version.
func String() string {
	return fmt.Sprintf("assetpipe %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

package config

import "fmt"

// Set at link time, e.g.
//
//	go build -ldflags "-X sprinkler/internal/config.version=1.2.0 \
//	    -X sprinkler/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X sprinkler/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/sprinkler
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String renders the build for the startup log line and --version.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", b.Version, b.Commit, b.BuildTime)
}

// Package version exposes build metadata injected with
//
//	-ldflags "-X github.com/smazurov/camnode/internal/version.Version=..."
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var startedAt = time.Now()

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Platform  string
	StartedAt time.Time
	Uptime    time.Duration
}

// Get returns the build metadata and process uptime.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		StartedAt: startedAt,
		Uptime:    time.Since(startedAt),
	}
}

// String formats the version for the CLI, e.g. "dev (unknown, linux/amd64)".
func String() string {
	return fmt.Sprintf("%s (%s, %s/%s)", Version, Commit, runtime.GOOS, runtime.GOARCH)
}

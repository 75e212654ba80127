// Package version exposes build-time metadata for agentd binaries.
package version

import (
	"fmt"
	"runtime"
)

// Set through -ldflags at release time, e.g.
// -X github.com/grovetools/agentd/version.Version=v1.2.0.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info is a snapshot of the build metadata plus the runtime the binary
// was compiled with.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get snapshots the linker-set variables.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short is the single-line form used in logs and version templates.
func (i Info) Short() string {
	return fmt.Sprintf("%s (%s)", i.Version, i.Commit)
}

// String renders the multi-line form shown by `agentd version`.
func (i Info) String() string {
	return fmt.Sprintf("agentd %s\n  Commit:     %s\n  Built:      %s\n  Go:         %s\n  Platform:   %s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}

package app

import "fmt"

// Build metadata, overridden via -ldflags at release time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// ShowVersion prints build information.
func ShowVersion() {
	fmt.Printf("adsb1090 %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

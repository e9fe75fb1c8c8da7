// Package version carries build identity, set by linker flags at release
// build time and surfaced in startup logs and analysis result tags.
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X .../internal/version.Version=... at release builds.
var (
	Version   = "0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// String returns the full version banner logged at startup.
func String() string {
	return fmt.Sprintf("analysis-core %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, GoVersion)
}

// EngineTag returns the short form stamped onto AnalysisResult.Tags so a
// result can be traced back to the engine build that produced it.
func EngineTag() string {
	return fmt.Sprintf("analysis-core@%s", Version)
}

// Package settings provides build metadata, runtime configuration, and
// context helpers used across the kqlrun CLI and library packages.
package settings

// CliBinaryName is the canonical binary name for this tool.
const CliBinaryName = "kqlrun"

// VersionInformation is populated at build time via ldflags and holds the
// commit hash, semantic version, and build timestamp of the running binary.
var VersionInformation = VersionInfo{
	Commit:       "unknown",
	BuildVersion: "v0.0.0-nightly",
	BuildTime:    "unknown",
}

// VersionInfo holds metadata about the build, including the commit hash,
// build version, and build timestamp.
type VersionInfo struct {
	Commit       string
	BuildVersion string
	BuildTime    string
}

// Run holds configuration settings for a single execution of the tool.
// It captures the CLI-level knobs downstream packages consult through the
// context: logging level, output base directory, color, parallelism, and the
// exit-code policy for failed backend calls.
type Run struct {
	MinLogLevel      int8
	OutputDir        string
	NoColor          bool
	FailOnQueryError bool
	Parallel         int
}

// NewCliParams initializes and returns a pointer to a Run struct with default
// CLI parameters: info-level logging, outputs resolved against the working
// directory, color enabled, sequential execution, and the lenient exit-code
// policy for per-query backend failures.
func NewCliParams() *Run {
	return &Run{
		MinLogLevel: 0,
		OutputDir:   ".",
		Parallel:    1,
	}
}

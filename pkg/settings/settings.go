// Package settings provides build metadata and context helpers shared by the
// gridx engine packages and their host application.
package settings

// LibraryName is the canonical name for this module, used in log fields.
const LibraryName = "gridx"

// VersionInformation is populated at build time via ldflags and holds the
// commit hash, semantic version, and build timestamp of the embedding binary.
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

// Run holds configuration for one embedding of the engine. It covers logging
// verbosity and error behavior; grid-level tunables live in internal/config.
type Run struct {
	MinLogLevel int8
	IsQuiet     bool
}

// NewDefaultParams returns a Run with library defaults: info-level logging,
// not quiet.
func NewDefaultParams() *Run {
	return &Run{
		MinLogLevel: 0,
		IsQuiet:     false,
	}
}

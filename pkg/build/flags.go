// SPDX-License-Identifier: MIT
//
// Package build carries link-time metadata: the application name, build
// timestamp, Git commit and semantic version, injected with -ldflags.
// Development builds without the flags keep "unknown" placeholders.
package build

import "fmt"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "trackprobe",
		Description: "Per-track audio analysis probe",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
)

// Initialize validates and copies build information from the ldflags
// variables into the buildFlags struct. Call it early in startup; it
// returns an error when a required flag is missing so release builds
// fail loudly while development builds can choose to continue on the
// placeholders.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information. Valid before
// Initialize too, with the development placeholders.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// VersionString renders the version line shown by --version.
func VersionString() string {
	return fmt.Sprintf("%s (%s, built %s)", buildFlags.Version, buildFlags.Commit, buildFlags.Time)
}

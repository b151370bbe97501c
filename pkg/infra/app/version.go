package app

import "github.com/kart-io/version"

// GetVersion returns the git version stamped at build time, or "unknown" for
// untagged builds.
func GetVersion() string {
	if v := version.Get().GitVersion; v != "" {
		return v
	}
	return "unknown"
}

// VersionFields returns the build information as logger key-value pairs.
func VersionFields() []interface{} {
	info := version.Get()
	return []interface{}{
		"version", GetVersion(),
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
	}
}

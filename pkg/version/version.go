// Package version reports the build of the orbit binaries.
package version

// These variables are set via ldflags during build
//
//nolint:gochecknoglobals // These are intentionally global for ldflags injection
var (
	version = "dev"
	buildID = "dev"
)

// Info is the JSON form served by the station API.
type Info struct {
	Version string `json:"version"`
	BuildID string `json:"build_id"`
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// GetBuildID returns the current build ID
func GetBuildID() string {
	return buildID
}

// GetFullVersion returns version with build ID
func GetFullVersion() string {
	return version + " (build: " + buildID + ")"
}

// Get returns version and build ID together.
func Get() Info {
	return Info{Version: version, BuildID: buildID}
}

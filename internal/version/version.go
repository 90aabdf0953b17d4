// Package version carries build metadata set with -ldflags and stamped into
// model file headers.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Creator is the CREATOR header value written into FITS files.
func Creator() string {
	return "bgcube " + Version
}

// String renders all build metadata on one line.
func String() string {
	return fmt.Sprintf("bgcube %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}

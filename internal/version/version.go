// Package version carries build identification, overridden at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	// Version is the current daemon version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the full build identity for startup logging.
func String() string {
	return fmt.Sprintf("visiond %s (%s, built %s)", Version, GitSHA, BuildTime)
}

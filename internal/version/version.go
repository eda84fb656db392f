// Package version exposes the build version of warden.
package version

// version is overridden at build time with
// -ldflags "-X github.com/sentinelops/warden/internal/version.version=vX.Y.Z".
var version = "dev"

// Get returns the current version string.
func Get() string {
	return version
}

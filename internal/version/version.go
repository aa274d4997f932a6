// Package version carries build identification, filled by the linker:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0 \
//	  -X .../internal/version.GitSHA=$(git rev-parse --short HEAD)"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// GitSHA identifies the commit the binary was built from.
	GitSHA = "unknown"
)

// String renders the build identity for startup logs and /health.
func String() string {
	return Version + " (" + GitSHA + ")"
}

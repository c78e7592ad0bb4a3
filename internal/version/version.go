// Package version exposes the build version string.
package version

// Version is the conveyor build version. Overridden at build time via
// -ldflags "-X github.com/mgalanis/conveyor/internal/version.Version=v1.2.3".
var Version = "dev"

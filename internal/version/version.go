// Package version holds the version of the uvcloop binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

const (
	Major = 0
	Minor = 1
	Patch = 0
)

// PreRelease is set to a non-empty string on development builds. It may be
// overridden at link time.
var PreRelease = "pre"

// Version is the semver version string.
var Version = func() string {
	v := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		v += "-" + PreRelease
	}
	return v
}()

// String returns the version including the vcs revision the binary was built
// from, when known.
func String() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	var rev string
	var dirty bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return Version
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return Version + "+" + rev
}

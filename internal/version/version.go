// Package version exposes the build stamp of the running binary.
package version

import (
	"runtime/debug"
)

// Info contains build information supplied during compile time.
type Info struct {
	*debug.BuildInfo
	Version string `json:"version"`
}

// version gets filled by a linker argument; when unset the module version
// recorded by the toolchain is used instead.
var version string

// Get returns version related embedded information.
func Get() Info {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		panic("no build info available: binary was built without module support")
	}

	v := version
	if v == "" {
		v = buildInfo.Main.Version
	}
	return Info{buildInfo, v}
}

// Package version reports the module path and build version recorded by the
// Go toolchain.
package version

import "runtime/debug"

// Module returns the main module path, or "slopd" when build info is absent.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path != "" {
		return info.Main.Path
	}
	return "slopd"
}

// Current returns the main module version, or "(devel)" when unknown.
func Current() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

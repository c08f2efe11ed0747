// Package mthreadvar provides the version number of an mthread build.
package mthreadvar

import (
	"runtime/debug"
)

// Version is set at runtime based on the Go module used to build.
var Version = "(devel)"

func init() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := buildInfo.Main.Version; v != "" && v != "(devel)" {
		Version = v
	}
}

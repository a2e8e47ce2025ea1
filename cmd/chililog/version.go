package main

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// buildInfo reports the release plus whatever the go toolchain stamped into the binary.
func buildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version + " (go: unknown)"
	}
	rev, built, dirty := commit, date, false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if rev == "" {
				rev = s.Value
			}
		case "vcs.time":
			if built == "" {
				built = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true" && commit == ""
		}
	}
	parts := []string{"go: " + info.GoVersion}
	if rev != "" {
		if dirty {
			rev += "-dirty"
		}
		parts = append(parts, "commit: "+rev)
	}
	if built != "" {
		parts = append(parts, "built: "+built)
	}
	return fmt.Sprintf("%s (%s)", version, strings.Join(parts, ", "))
}

//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"
)

// Version information set at build time via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// printVersion writes the build information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "preloadfs version %s\n", Version)
	fmt.Fprintf(w, "Commit: %s\n", Commit)
	fmt.Fprintf(w, "Built: %s\n", BuildDate)
}

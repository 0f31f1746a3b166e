// Package buildinfo carries version data injected with -ldflags "-X".
package buildinfo

import (
	"fmt"
	"io"
)

var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Fields returns the build data as logger key/value pairs.
func Fields() []any {
	return []any{"version", orNA(BuildVersion), "date", orNA(BuildDate), "commit", orNA(BuildCommit)}
}

// PrintBuildInfo writes the banner both binaries print at startup.
func PrintBuildInfo(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s build version: %s\n", binary, orNA(BuildVersion))
	fmt.Fprintf(w, "%s build date: %s\n", binary, orNA(BuildDate))
	fmt.Fprintf(w, "%s build commit: %s\n", binary, orNA(BuildCommit))
}

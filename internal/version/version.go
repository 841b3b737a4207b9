// Package version reports the wslink version. Commit is set with -ldflags;
// when it is empty the VCS revision recorded by the Go toolchain is used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Commit is the git commit of this build, set via
// -ldflags "-X github.com/bhandras/wslink/internal/version.Commit=...".
var Commit string

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 0

	// appPreRelease may only use [0-9A-Za-z-].
	appPreRelease = ""
)

// Version returns the semantic version.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if pre := sanitize(appPreRelease); pre != "" {
		v += "-" + pre
	}
	return v
}

// Rich returns the version with commit and Go runtime details.
func Rich() string {
	parts := []string{Version()}
	if c := commit(); c != "" {
		parts = append(parts, "commit="+c)
	}
	parts = append(parts, "go="+runtime.Version())
	return strings.Join(parts, " ")
}

func commit() string {
	if c := strings.TrimSpace(Commit); c != "" {
		return c
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

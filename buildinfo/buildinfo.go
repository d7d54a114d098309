// Package buildinfo reports the version this binary was built from.
package buildinfo

import (
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"
)

// tag is the release version without the leading "v". Set with
// -ldflags "-X github.com/openclaw/dashboard/buildinfo.tag=1.2.3".
var tag string

const (
	repoURL    = "https://github.com/openclaw/dashboard"
	devVersion = "v0.0.0-devel"
)

type vcs struct {
	revision string
	time     time.Time
	ok       bool
}

var readVCS = sync.OnceValue(func() vcs {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return vcs{}
	}
	var v vcs
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
			v.ok = s.Value != ""
		case "vcs.time":
			v.time, _ = time.Parse(time.RFC3339, s.Value)
		}
	}
	return v
})

var version = sync.OnceValue(func() string {
	var suffix string
	if v := readVCS(); v.ok && len(v.revision) >= 7 {
		suffix = "+" + v.revision[:7]
	}
	if tag == "" {
		return devVersion + suffix
	}
	v := "v" + strings.TrimPrefix(tag, "v")
	if semver.Build(v) == "" {
		v += suffix
	}
	return v
})

// Version returns the semantic version of the build, for example
// "v1.4.0+3fa2c1d" or "v0.0.0-devel+3fa2c1d".
func Version() string {
	return version()
}

// IsDev reports whether the binary was built without a release tag.
func IsDev() bool {
	return semver.Prerelease(Version()) == "-devel"
}

// ExternalURL links to the commit this binary was built from, or to the
// repository when the revision is unknown.
func ExternalURL() string {
	if v := readVCS(); v.ok {
		return repoURL + "/commit/" + v.revision
	}
	return repoURL
}

// Time returns the commit time of the build revision.
func Time() (time.Time, bool) {
	v := readVCS()
	return v.time, !v.time.IsZero()
}

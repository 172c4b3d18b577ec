package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Release builds set these with
// -ldflags "-X main.buildVersion=v1.2.3 -X main.buildCommit=$(git rev-parse HEAD)".
// A plain "go install" leaves them alone and the module build info fills in.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

// build identifies one schemaferry binary.
type build struct {
	version string
	commit  string
	dirty   bool
}

func currentBuild() build {
	b := build{version: buildVersion, commit: buildCommit}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = b.withInfo(info)
	}
	return b
}

// withInfo fills what the linker flags left unset from the embedded
// module and VCS information.
func (b build) withInfo(info *debug.BuildInfo) build {
	if v := strings.TrimSpace(b.version); (v == "" || v == "dev") && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if shortCommit(b.commit) == "" {
				b.commit = s.Value
			}
		case "vcs.modified":
			b.dirty = s.Value == "true"
		}
	}
	return b
}

func (b build) String() string {
	v := formatVersion(b.version, b.commit)
	if b.dirty && strings.HasPrefix(v, "dev") {
		v += "+dirty"
	}
	return v
}

// versionString is the version alone, as logged at the start of a run.
func versionString() string {
	return currentBuild().String()
}

// versionLine is what "schemaferry version" prints.
func versionLine() string {
	return fmt.Sprintf("schemaferry %s (%s %s/%s)", versionString(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// formatVersion returns a release version unchanged and marks everything
// else as a dev build of its commit.
func formatVersion(version, commit string) string {
	switch v := strings.TrimSpace(version); {
	case v != "" && v != "dev":
		return v
	case shortCommit(commit) != "":
		return "dev-" + shortCommit(commit)
	default:
		return "dev"
	}
}

func shortCommit(commit string) string {
	c := strings.TrimSpace(commit)
	if c == "unknown" {
		return ""
	}
	return c[:min(len(c), 7)]
}

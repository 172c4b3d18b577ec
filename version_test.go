package main

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{
			name:    "release tag returned as-is",
			version: "v1.2.3",
			commit:  "0123456789abcdef",
			want:    "v1.2.3",
		},
		{
			name:    "dev with commit uses short sha",
			version: "dev",
			commit:  "0123456789abcdef",
			want:    "dev-0123456",
		},
		{
			name:    "dev with unknown commit",
			version: "dev",
			commit:  "unknown",
			want:    "dev",
		},
		{
			name:    "empty version falls back to dev",
			version: " ",
			commit:  "abcdef1",
			want:    "dev-abcdef1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatVersion(tt.version, tt.commit)
			if got != tt.want {
				t.Fatalf("formatVersion(%q, %q) = %q, want %q", tt.version, tt.commit, got, tt.want)
			}
		})
	}
}

func TestShortCommit(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"", ""},
		{"unknown", ""},
		{"  abc  ", "abc"},
		{"0123456789", "0123456"},
	}
	for _, tt := range tests {
		if got := shortCommit(tt.commit); got != tt.want {
			t.Errorf("shortCommit(%q) = %q, want %q", tt.commit, got, tt.want)
		}
	}
}

func TestBuildWithInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/Limetric/schemaferry", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	tests := []struct {
		name string
		b    build
		want string
	}{
		{
			name: "go install of a dirty checkout",
			b:    build{version: "dev", commit: "unknown"},
			want: "dev-fedcba9+dirty",
		},
		{
			name: "linker flags win",
			b:    build{version: "v0.4.0", commit: "0123456789"},
			want: "v0.4.0",
		},
		{
			name: "linker commit wins",
			b:    build{version: "dev", commit: "0123456789"},
			want: "dev-0123456+dirty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.withInfo(info).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}

	tagged := &debug.BuildInfo{Main: debug.Module{Version: "v0.5.1"}}
	if got := (build{version: "dev", commit: "unknown"}).withInfo(tagged).String(); got != "v0.5.1" {
		t.Errorf("module version = %q, want v0.5.1", got)
	}
}

func TestVersionLine(t *testing.T) {
	line := versionLine()
	if !strings.HasPrefix(line, "schemaferry ") {
		t.Errorf("versionLine() = %q, want the program name first", line)
	}
	if !strings.Contains(line, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("versionLine() = %q, want the platform", line)
	}
}

// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of Gantry binaries.
//
// Release builds inject the version and commit via -ldflags:
//
//	go build -ldflags "-X github.com/gantry-project/gantry/lib/version.Version=v0.2.0 \
//	  -X github.com/gantry-project/gantry/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Builds without the injection fall back to the VCS stamp the Go
// toolchain records in the module build info, so plain go install
// binaries still report a commit.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via -ldflags at build time. An empty GitCommit defers to the
// module build info.
var (
	// Version is the release version.
	Version = "0.1.0-dev"

	// GitCommit is the short commit hash of the build.
	GitCommit = ""
)

// Info returns the one-line string the binaries print for --version:
// the version, followed by the commit in parentheses when one is
// known, with a -dirty marker for builds from a modified tree.
func Info() string {
	commit := GitCommit
	dirty := false
	if commit == "" {
		commit, dirty = buildInfoCommit()
	}
	switch {
	case commit == "":
		return Version
	case dirty:
		return fmt.Sprintf("%s (%s-dirty)", Version, commit)
	default:
		return fmt.Sprintf("%s (%s)", Version, commit)
	}
}

func buildInfoCommit() (commit string, dirty bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return commit, dirty
}

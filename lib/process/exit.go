// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"path/filepath"
)

// Fatal reports err on stderr, prefixed with the program name, and
// exits with code 1. Binaries call it for run() errors that surface
// before or outside the structured logger.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s: error: %v\n", filepath.Base(os.Args[0]), err)
	os.Exit(1)
}

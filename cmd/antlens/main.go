// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command antlens overlays annotations from the ant store on source files.
//
// As a language server:
//
//	antlens serve
//	antlens serve --debug-addr 127.0.0.1:6061
//
// From the terminal:
//
//	antlens list src/main.go
//	antlens hover src/main.go 12
//	antlens add src/main.go 12 "explains the retry loop"
//	antlens remove src/main.go 12
//
// The annotation root defaults to the current directory. Settings come from
// .antlens.yaml or .antlens.toml in the root, .env, and ANTLENS_* variables.
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

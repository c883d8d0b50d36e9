// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lsp serves the annotation overlay as a language server over stdio.
//
// # Architecture
//
//	┌──────────────┐  Content-Length JSON-RPC  ┌──────────────┐
//	│    Editor    │ ◄───────────────────────► │    Server    │ engine.Host
//	└──────────────┘      stdin / stdout       └──────┬───────┘
//	                                                  │
//	                                           ┌──────▼───────┐
//	                                           │ engine.Engine│ ──► ant store
//	                                           └──────────────┘
//
// # Methods
//
//   - textDocument/hover: add or remove action for the hovered line
//   - textDocument/inlayHint: the painted decorations as inline hints
//   - workspace/executeCommand: ant.toggle, ant.add, ant.remove
//   - ant/didChangeVisibleEditors: which documents are on screen
//
// The server pushes ant/decorations with the full decoration set of a
// document after every repaint and asks for annotation text with the
// ant/promptInput request.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
//
// # Example
//
//	srv := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{Version: "0.1.0"})
//	err := srv.Serve(ctx)
package lsp

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"encoding/json"

	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/engine"
)

// Methods served and sent by the annotation server.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodShutdown               = "shutdown"
	MethodExit                   = "exit"
	MethodDidOpen                = "textDocument/didOpen"
	MethodDidChange              = "textDocument/didChange"
	MethodDidClose               = "textDocument/didClose"
	MethodHover                  = "textDocument/hover"
	MethodInlayHint              = "textDocument/inlayHint"
	MethodExecuteCommand         = "workspace/executeCommand"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"
	MethodCancelRequest          = "$/cancelRequest"

	// MethodDidChangeVisibleEditors is sent by the client whenever the set
	// of on-screen documents or the focused document changes.
	MethodDidChangeVisibleEditors = "ant/didChangeVisibleEditors"

	// MethodDecorations carries the full decoration set of one document.
	MethodDecorations = "ant/decorations"

	// MethodPromptInput asks the client for one line of text.
	MethodPromptInput = "ant/promptInput"

	MethodShowMessage      = "window/showMessage"
	MethodInlayHintRefresh = "workspace/inlayHint/refresh"
)

// =============================================================================
// POSITION TYPES
// =============================================================================

// Position represents a position in a text document.
// Line and character are 0-indexed; character counts UTF-16 code units.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range represents a range in a text document.
type Range struct {
	// Start is the inclusive start position.
	Start Position `json:"start"`

	// End is the exclusive end position.
	End Position `json:"end"`
}

// =============================================================================
// DOCUMENT IDENTIFIERS
// =============================================================================

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem represents a text document with its content.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier

	Version int `json:"version"`
}

// =============================================================================
// REQUEST PARAMETER TYPES
// =============================================================================

// TextDocumentPositionParams identifies a position in a text document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// DidOpenTextDocumentParams contains params for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams contains params for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidChangeTextDocumentParams contains params for textDocument/didChange.
//
// The server advertises full sync, so the last change carries the whole
// document.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentContentChangeEvent describes a content change event.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// InlayHintParams contains params for textDocument/inlayHint.
type InlayHintParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

// ExecuteCommandParams contains params for workspace/executeCommand.
type ExecuteCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// DidChangeConfigurationParams contains params for
// workspace/didChangeConfiguration.
type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

// DidChangeVisibleEditorsParams contains params for
// ant/didChangeVisibleEditors.
type DidChangeVisibleEditorsParams struct {
	// URIs are the documents currently on screen.
	URIs []string `json:"uris"`

	// Active is the focused document, empty when none.
	Active string `json:"active,omitempty"`

	// ActiveLine is the cursor line in Active, if known.
	ActiveLine *int `json:"activeLine,omitempty"`
}

// =============================================================================
// RESPONSE AND OUTGOING TYPES
// =============================================================================

// HoverResult contains hover information.
type HoverResult struct {
	Contents MarkupContent `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// MarkupContent represents documentation content.
type MarkupContent struct {
	// Kind is the type of markup: "plaintext" or "markdown".
	Kind string `json:"kind"`

	// Value is the actual content.
	Value string `json:"value"`
}

// MarkupKindMarkdown is the markdown MarkupContent kind.
const MarkupKindMarkdown = "markdown"

// InlayHint is one inline label.
type InlayHint struct {
	Position    Position       `json:"position"`
	Label       string         `json:"label"`
	Tooltip     *MarkupContent `json:"tooltip,omitempty"`
	PaddingLeft bool           `json:"paddingLeft,omitempty"`
}

// DecorationsParams is the payload of ant/decorations.
type DecorationsParams struct {
	URI         string              `json:"uri"`
	Version     int                 `json:"version"`
	Decorations []engine.Decoration `json:"decorations"`
}

// PromptInputParams is the payload of ant/promptInput.
type PromptInputParams struct {
	Prompt string `json:"prompt"`
}

// PromptInputResult is the client's answer to ant/promptInput. A null
// result or a nil Text means the user cancelled.
type PromptInputResult struct {
	Text *string `json:"text"`
}

// MessageType is the severity of window/showMessage.
type MessageType int

// Message types.
const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

// ShowMessageParams is the payload of window/showMessage.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// =============================================================================
// INITIALIZE TYPES
// =============================================================================

// InitializeParams contains initialization parameters.
type InitializeParams struct {
	ProcessID *int `json:"processId"`

	// RootURI is the root URI of the workspace (preferred over rootPath).
	RootURI string `json:"rootUri,omitempty"`

	// RootPath is the root path of the workspace (deprecated).
	RootPath string `json:"rootPath,omitempty"`

	Capabilities ClientCapabilities `json:"capabilities"`

	// InitializationOptions may carry {"ant": {"binaryPath": ...}}.
	InitializationOptions json.RawMessage `json:"initializationOptions,omitempty"`

	// WorkspaceFolders are the workspace folders; only the first is used.
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// ClientCapabilities describes the parts of the client we look at.
type ClientCapabilities struct {
	Workspace WorkspaceClientCapabilities `json:"workspace,omitempty"`
}

// WorkspaceClientCapabilities describes workspace capabilities.
type WorkspaceClientCapabilities struct {
	InlayHint *InlayHintWorkspaceClientCapabilities `json:"inlayHint,omitempty"`
}

// InlayHintWorkspaceClientCapabilities describes inlay hint refresh support.
type InlayHintWorkspaceClientCapabilities struct {
	RefreshSupport bool `json:"refreshSupport,omitempty"`
}

// InitializeResult contains the server's response to initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo contains information about the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TextDocumentSyncKind values.
const (
	TextDocumentSyncNone = 0
	TextDocumentSyncFull = 1
)

// TextDocumentSyncOptions advertises how documents are synced.
type TextDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
}

// ExecuteCommandOptions lists the commands the server executes.
type ExecuteCommandOptions struct {
	Commands []string `json:"commands"`
}

// ServerCapabilities describes what the server supports.
type ServerCapabilities struct {
	TextDocumentSync       TextDocumentSyncOptions `json:"textDocumentSync"`
	HoverProvider          bool                    `json:"hoverProvider"`
	InlayHintProvider      bool                    `json:"inlayHintProvider"`
	ExecuteCommandProvider ExecuteCommandOptions   `json:"executeCommandProvider"`
}

// settingsEnvelope is the shape of initializationOptions and
// didChangeConfiguration settings.
type settingsEnvelope struct {
	Ant config.Settings `json:"ant"`
}

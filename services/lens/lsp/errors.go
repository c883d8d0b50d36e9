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
	"errors"
	"fmt"
)

// Sentinel errors for the language server.
var (
	// ErrConnectionClosed indicates the client stream ended or the protocol
	// was closed.
	ErrConnectionClosed = errors.New("lsp connection closed")

	// ErrRequestTimeout indicates a server-to-client request was abandoned.
	ErrRequestTimeout = errors.New("lsp request timeout")

	// ErrExit is returned by the dispatcher after the exit notification.
	ErrExit = errors.New("lsp exit")

	// ErrExitWithoutShutdown indicates exit arrived before shutdown.
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// JSON-RPC and LSP error codes used by the server.
const (
	CodeParseError           = -32700
	CodeInvalidRequest       = -32600
	CodeMethodNotFound       = -32601
	CodeInvalidParams        = -32602
	CodeInternalError        = -32603
	CodeServerNotInitialized = -32002
	CodeServerCancelled      = -32802
	CodeRequestCancelled     = -32800
)

// LSPError represents an error returned by the client via JSON-RPC.
type LSPError struct {
	// Code is the JSON-RPC error code.
	Code int

	// Message is the error message from the client.
	Message string

	// Data contains optional additional data about the error.
	Data interface{}
}

// Error implements the error interface.
func (e *LSPError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("LSP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// IsMethodNotFound returns true if the client does not support the method.
func (e *LSPError) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}

// IsRequestCancelled returns true if the request was cancelled.
func (e *LSPError) IsRequestCancelled() bool {
	return e.Code == CodeRequestCancelled || e.Code == CodeServerCancelled
}

// newResponseError builds a ResponseError with a formatted message.
func newResponseError(code int, format string, args ...interface{}) *ResponseError {
	return &ResponseError{Code: code, Message: fmt.Sprintf(format, args...)}
}

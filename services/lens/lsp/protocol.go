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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// JSONRPCVersion is the JSON-RPC version used by LSP.
const JSONRPCVersion = "2.0"

// =============================================================================
// JSON-RPC MESSAGE TYPES
// =============================================================================

// Message is any JSON-RPC message read from the client.
//
// A message with a Method is a request (ID set) or a notification (ID
// empty). A message without a Method is a response to one of our requests.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// IsNotification reports whether m is a notification.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether m answers a request we sent.
func (m *Message) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// Request is an outgoing JSON-RPC request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response. Result is always emitted on
// success, as null when there is nothing to return.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// errorResponse omits result, which must be absent when error is set.
type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *ResponseError  `json:"error"`
}

// ResponseError represents a JSON-RPC error.
type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Notification is an outgoing JSON-RPC notification.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// =============================================================================
// PROTOCOL HANDLER
// =============================================================================

// Dispatcher handles one incoming request or notification. Returning a
// non-nil error stops the read loop; ErrExit stops it cleanly.
type Dispatcher func(ctx context.Context, msg *Message) error

// Protocol handles JSON-RPC communication over a stream pair.
//
// Description:
//
//	Implements the LSP base protocol using Content-Length headers in both
//	directions. Incoming requests and notifications go to a Dispatcher;
//	incoming responses are matched to requests sent with SendRequest.
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple goroutines can send requests,
//	responses and notifications simultaneously.
type Protocol struct {
	reader    *bufio.Reader
	writer    io.Writer
	writeMu   sync.Mutex
	nextID    int64
	pending   map[string]chan *Message
	pendingMu sync.Mutex
	closed    int32 // atomic: 1 if closed
}

// NewProtocol creates a protocol handler reading client messages from r and
// writing server messages to w.
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	var reader *bufio.Reader
	if r != nil {
		reader = bufio.NewReader(r)
	}
	return &Protocol{
		reader:  reader,
		writer:  w,
		pending: make(map[string]chan *Message),
	}
}

// SendRequest sends a server-to-client request and waits for the response.
//
// Description:
//
//	Blocks until the client answers or ctx is done. An error answer is
//	returned as *LSPError.
//
// Inputs:
//
//	ctx - Context for cancellation and timeout.
//	method - The method to invoke (e.g., "ant/promptInput").
//	params - Method parameters (will be JSON-marshaled).
//
// Outputs:
//
//	json.RawMessage - The raw result, "null" when the client returned null.
//	error - Non-nil if sending failed, timeout, or client returned error.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Protocol) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if atomic.LoadInt32(&p.closed) == 1 {
		return nil, ErrConnectionClosed
	}

	id := atomic.AddInt64(&p.nextID, 1)
	key := strconv.FormatInt(id, 10)

	respCh := make(chan *Message, 1)
	p.pendingMu.Lock()
	p.pending[key] = respCh
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, key)
		p.pendingMu.Unlock()
	}()

	req := Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := p.writeMessage(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err())
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, &LSPError{
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
				Data:    resp.Error.Data,
			}
		}
		if len(resp.Result) == 0 {
			return json.RawMessage("null"), nil
		}
		return resp.Result, nil
	}
}

// SendNotification sends a notification (no response expected).
func (p *Protocol) SendNotification(method string, params interface{}) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrConnectionClosed
	}
	return p.writeMessage(Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	})
}

// Reply answers the client request id with result.
func (p *Protocol) Reply(id json.RawMessage, result interface{}) error {
	return p.writeMessage(Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	})
}

// ReplyError answers the client request id with an error.
func (p *Protocol) ReplyError(id json.RawMessage, rerr *ResponseError) error {
	return p.writeMessage(errorResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   rerr,
	})
}

// writeMessage marshals and writes a message with Content-Length header.
func (p *Protocol) writeMessage(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := p.writer.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := p.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadLoop reads client messages until the stream ends or dispatch stops it.
//
// Description:
//
//	Responses are matched to pending requests here. Requests and
//	notifications are handed to dispatch in arrival order; dispatch decides
//	what runs inline and what runs on its own goroutine. Malformed bodies
//	are skipped.
//
// Inputs:
//
//	ctx - Context for cancellation, passed to dispatch.
//	dispatch - Handler for requests and notifications.
//
// Outputs:
//
//	error - nil when dispatch returned ErrExit, ErrConnectionClosed on EOF,
//	        ctx.Err() on cancellation, or the read/dispatch error.
//
// Thread Safety:
//
//	Must be called from a single goroutine.
func (p *Protocol) ReadLoop(ctx context.Context, dispatch Dispatcher) error {
	if p.reader == nil {
		return fmt.Errorf("no reader configured")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		body, err := p.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrConnectionClosed
			}
			if atomic.LoadInt32(&p.closed) == 1 {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			continue
		}

		if msg.IsResponse() {
			p.deliver(&msg)
			continue
		}
		if msg.Method == "" {
			continue
		}

		if err := dispatch(ctx, &msg); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			return err
		}
	}
}

// deliver hands a response to the goroutine waiting on it.
func (p *Protocol) deliver(msg *Message) {
	key := strings.Trim(string(msg.ID), `"`)

	p.pendingMu.Lock()
	ch, ok := p.pending[key]
	p.pendingMu.Unlock()

	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// readMessage reads a single framed message body.
func (p *Protocol) readMessage() (json.RawMessage, error) {
	var contentLength int

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)

		if line == "" {
			break
		}

		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			var err error
			contentLength, err = strconv.Atoi(lenStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length value %q: %w", lenStr, err)
			}
			if contentLength < 0 {
				return nil, fmt.Errorf("negative Content-Length: %d", contentLength)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing or zero Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// Close marks the protocol as closed and fails every pending request.
//
// Does not close the underlying reader or writer.
func (p *Protocol) Close() {
	atomic.StoreInt32(&p.closed, 1)

	p.pendingMu.Lock()
	for key, ch := range p.pending {
		select {
		case ch <- &Message{
			JSONRPC: JSONRPCVersion,
			ID:      json.RawMessage(key),
			Error: &ResponseError{
				Code:    CodeServerCancelled,
				Message: "connection closed",
			},
		}:
		default:
		}
	}
	p.pendingMu.Unlock()
}

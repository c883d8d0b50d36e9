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
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/engine"
	"github.com/AleutianAI/antlens/services/lens/store"
)

const waitTimeout = 5 * time.Second

// memStore is an in-memory annotation store.
type memStore struct {
	mu      sync.Mutex
	anns    map[string][]store.Annotation
	added   []string
	removed []string
}

func newMemStore() *memStore {
	return &memStore{anns: make(map[string][]store.Annotation)}
}

func (m *memStore) List(ctx context.Context, rel string) ([]store.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Annotation(nil), m.anns[rel]...), nil
}

func (m *memStore) Add(ctx context.Context, rel string, row int, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anns[rel] = append(m.anns[rel], store.Annotation{Text: text, Source: rel, Row: row})
	m.added = append(m.added, text)
	return "Annotation added", nil
}

func (m *memStore) Remove(ctx context.Context, rel string, row int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.anns[rel][:0]
	for _, a := range m.anns[rel] {
		if a.Row != row {
			kept = append(kept, a)
		}
	}
	m.anns[rel] = kept
	m.removed = append(m.removed, rel)
	return "Annotation removed", nil
}

// testClient drives a Server over io.Pipe pairs.
type testClient struct {
	t      *testing.T
	proto  *Protocol
	inbox  chan *Message
	served chan error

	mu         sync.Mutex
	promptText *string
}

func startServer(t *testing.T, ms *memStore) *testClient {
	t.Helper()

	toServerR, toServerW := io.Pipe()
	toClientR, toClientW := io.Pipe()

	srv := NewServer(toServerR, toClientW, ServerOptions{
		Version: "test",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		StoreFactory: func(cfg store.Config, logger *slog.Logger) engine.StoreClient {
			return ms
		},
	})

	c := &testClient{
		t:      t,
		proto:  NewProtocol(toClientR, toServerW),
		inbox:  make(chan *Message, 100),
		served: make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c.served <- srv.Serve(ctx)
		toClientW.Close()
	}()
	go c.proto.ReadLoop(ctx, c.handle)

	t.Cleanup(func() {
		cancel()
		toServerW.Close()
		toClientR.Close()
	})
	return c
}

// handle answers server requests and queues everything for inspection.
func (c *testClient) handle(ctx context.Context, msg *Message) error {
	if !msg.IsNotification() {
		switch msg.Method {
		case MethodPromptInput:
			c.mu.Lock()
			text := c.promptText
			c.mu.Unlock()
			if err := c.proto.Reply(msg.ID, PromptInputResult{Text: text}); err != nil {
				return err
			}
		default:
			if err := c.proto.Reply(msg.ID, nil); err != nil {
				return err
			}
		}
	}
	c.inbox <- msg
	return nil
}

func (c *testClient) request(method string, params interface{}) (json.RawMessage, error) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	return c.proto.SendRequest(ctx, method, params)
}

func (c *testClient) notify(method string, params interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.proto.SendNotification(method, params))
}

// waitFor returns the next message with method that satisfies match.
func (c *testClient) waitFor(method string, match func(*Message) bool) *Message {
	c.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case msg := <-c.inbox:
			if msg.Method == method && (match == nil || match(msg)) {
				return msg
			}
		case <-deadline:
			c.t.Fatalf("timed out waiting for %s", method)
			return nil
		}
	}
}

func (c *testClient) initialize(root string) InitializeResult {
	c.t.Helper()
	params := map[string]interface{}{"processId": nil, "capabilities": map[string]interface{}{}}
	if root != "" {
		params["rootUri"] = coord.URIFromPath(root)
	}
	raw, err := c.request(MethodInitialize, params)
	require.NoError(c.t, err)

	var res InitializeResult
	require.NoError(c.t, json.Unmarshal(raw, &res))
	c.notify(MethodInitialized, struct{}{})
	return res
}

func (c *testClient) open(path, text string) string {
	c.t.Helper()
	uri := coord.URIFromPath(path)
	c.notify(MethodDidOpen, DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "go", Version: 1, Text: text},
	})
	return uri
}

func (c *testClient) execute(command string, args ...interface{}) {
	c.t.Helper()
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		require.NoError(c.t, err)
		raw = append(raw, b)
	}
	_, err := c.request(MethodExecuteCommand, ExecuteCommandParams{Command: command, Arguments: raw})
	require.NoError(c.t, err)
}

func decorationsFor(uri string, n int) func(*Message) bool {
	return func(msg *Message) bool {
		var p DecorationsParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return false
		}
		return p.URI == uri && len(p.Decorations) == n
	}
}

func TestServer_Initialize(t *testing.T) {
	c := startServer(t, newMemStore())
	res := c.initialize(t.TempDir())

	assert.True(t, res.Capabilities.HoverProvider)
	assert.True(t, res.Capabilities.InlayHintProvider)
	assert.Equal(t, TextDocumentSyncFull, res.Capabilities.TextDocumentSync.Change)
	assert.ElementsMatch(t, []string{"ant.toggle", "ant.add", "ant.remove"},
		res.Capabilities.ExecuteCommandProvider.Commands)
	require.NotNil(t, res.ServerInfo)
	assert.Equal(t, ServerName, res.ServerInfo.Name)
	assert.Equal(t, "test", res.ServerInfo.Version)
}

func TestServer_RequestBeforeInitialize(t *testing.T) {
	c := startServer(t, newMemStore())

	_, err := c.request(MethodHover, TextDocumentPositionParams{})
	var lspErr *LSPError
	require.True(t, errors.As(err, &lspErr))
	assert.Equal(t, CodeServerNotInitialized, lspErr.Code)
}

func TestServer_UnknownMethod(t *testing.T) {
	c := startServer(t, newMemStore())
	c.initialize(t.TempDir())

	_, err := c.request("textDocument/definition", TextDocumentPositionParams{})
	var lspErr *LSPError
	require.True(t, errors.As(err, &lspErr))
	assert.True(t, lspErr.IsMethodNotFound())
}

func TestServer_MissingRoot(t *testing.T) {
	c := startServer(t, newMemStore())
	c.initialize("")

	msg := c.waitFor(MethodShowMessage, nil)
	var p ShowMessageParams
	require.NoError(t, json.Unmarshal(msg.Params, &p))
	assert.Equal(t, engine.MsgMissingRoot, p.Message)
	assert.Equal(t, MessageTypeInfo, p.Type)
}

func TestServer_ToggleHoverAndInlayHints(t *testing.T) {
	root := t.TempDir()
	ms := newMemStore()
	ms.anns["a.go"] = []store.Annotation{{Text: "explains two", Source: "a.go", Row: 2}}

	c := startServer(t, ms)
	c.initialize(root)
	uri := c.open(filepath.Join(root, "a.go"), "one\ntwo\nthree")

	// Hidden: hover shows nothing.
	raw, err := c.request(MethodHover, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     Position{Line: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	c.execute(string(engine.CommandToggle))
	msg := c.waitFor(MethodDecorations, decorationsFor(uri, 1))

	var decos DecorationsParams
	require.NoError(t, json.Unmarshal(msg.Params, &decos))
	assert.Equal(t, 1, decos.Decorations[0].Line)
	assert.Equal(t, 3, decos.Decorations[0].Character)
	assert.Equal(t, "explains two", decos.Decorations[0].Label)

	t.Run("hover on annotated line offers remove", func(t *testing.T) {
		raw, err := c.request(MethodHover, TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: 1},
		})
		require.NoError(t, err)

		var h HoverResult
		require.NoError(t, json.Unmarshal(raw, &h))
		assert.Equal(t, MarkupKindMarkdown, h.Contents.Kind)
		assert.Contains(t, h.Contents.Value, "explains two")
		assert.Contains(t, h.Contents.Value, "command:ant.remove?")
	})

	t.Run("hover on empty line offers add", func(t *testing.T) {
		raw, err := c.request(MethodHover, TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: 0},
		})
		require.NoError(t, err)

		var h HoverResult
		require.NoError(t, json.Unmarshal(raw, &h))
		assert.Contains(t, h.Contents.Value, "command:ant.add?")
	})

	t.Run("inlay hints follow the current line end", func(t *testing.T) {
		c.notify(MethodDidChange, DidChangeTextDocumentParams{
			TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: 2},
			ContentChanges: []TextDocumentContentChangeEvent{{Text: "one\ntwo😀\nthree"}},
		})

		var hints []InlayHint
		require.Eventually(t, func() bool {
			raw, err := c.request(MethodInlayHint, InlayHintParams{
				TextDocument: TextDocumentIdentifier{URI: uri},
				Range:        Range{End: Position{Line: 10}},
			})
			if err != nil || json.Unmarshal(raw, &hints) != nil || len(hints) != 1 {
				return false
			}
			return hints[0].Position.Character == 5
		}, waitTimeout, 10*time.Millisecond)

		assert.Equal(t, 1, hints[0].Position.Line)
		assert.Equal(t, "explains two", hints[0].Label)
	})

	t.Run("toggle off clears", func(t *testing.T) {
		c.execute(string(engine.CommandToggle))
		c.waitFor(MethodDecorations, decorationsFor(uri, 0))
	})
}

func TestServer_AddPromptsClient(t *testing.T) {
	root := t.TempDir()
	ms := newMemStore()

	c := startServer(t, ms)
	text := "new note"
	c.promptText = &text
	c.initialize(root)
	uri := c.open(filepath.Join(root, "a.go"), "one\ntwo")

	c.execute(string(engine.CommandToggle))
	c.waitFor(MethodDecorations, decorationsFor(uri, 0))

	c.execute(string(engine.CommandAdd), uri, 1)

	c.waitFor(MethodPromptInput, nil)
	info := c.waitFor(MethodShowMessage, nil)
	var p ShowMessageParams
	require.NoError(t, json.Unmarshal(info.Params, &p))
	assert.Equal(t, "Annotation added", p.Message)

	c.waitFor(MethodDecorations, decorationsFor(uri, 1))

	ms.mu.Lock()
	defer ms.mu.Unlock()
	assert.Equal(t, []string{"new note"}, ms.added)
}

func TestServer_AddCancelledPrompt(t *testing.T) {
	root := t.TempDir()
	ms := newMemStore()

	c := startServer(t, ms)
	c.initialize(root)
	uri := c.open(filepath.Join(root, "a.go"), "one")

	c.execute(string(engine.CommandAdd), uri, 1)
	c.waitFor(MethodPromptInput, nil)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	assert.Empty(t, ms.added)
}

func TestServer_ExecuteErrors(t *testing.T) {
	c := startServer(t, newMemStore())
	c.initialize(t.TempDir())

	t.Run("unknown command", func(t *testing.T) {
		_, err := c.request(MethodExecuteCommand, ExecuteCommandParams{Command: "ant.unknown"})
		var lspErr *LSPError
		require.True(t, errors.As(err, &lspErr))
		assert.Equal(t, CodeInvalidParams, lspErr.Code)
	})

	t.Run("bad row", func(t *testing.T) {
		_, err := c.request(MethodExecuteCommand, ExecuteCommandParams{
			Command:   string(engine.CommandRemove),
			Arguments: []json.RawMessage{json.RawMessage(`"file:///x"`), json.RawMessage(`0`)},
		})
		var lspErr *LSPError
		require.True(t, errors.As(err, &lspErr))
		assert.Equal(t, CodeInvalidParams, lspErr.Code)
	})
}

func TestServer_VisibleEditors(t *testing.T) {
	root := t.TempDir()
	ms := newMemStore()
	ms.anns["b.go"] = []store.Annotation{{Text: "b note", Source: "b.go", Row: 1}}

	c := startServer(t, ms)
	c.initialize(root)
	uriA := c.open(filepath.Join(root, "a.go"), "a")
	uriB := c.open(filepath.Join(root, "b.go"), "b")

	c.notify(MethodDidChangeVisibleEditors, DidChangeVisibleEditorsParams{URIs: []string{uriA}, Active: uriA})
	c.execute(string(engine.CommandToggle))
	c.waitFor(MethodDecorations, decorationsFor(uriA, 0))

	c.notify(MethodDidChangeVisibleEditors, DidChangeVisibleEditorsParams{URIs: []string{uriA, uriB}, Active: uriB})
	c.waitFor(MethodDecorations, decorationsFor(uriB, 1))
}

func TestServer_HiddenOverlayHasNoInlayHints(t *testing.T) {
	root := t.TempDir()
	ms := newMemStore()
	ms.anns["b.go"] = []store.Annotation{{Text: "b note", Source: "b.go", Row: 1}}

	c := startServer(t, ms)
	c.initialize(root)
	uriA := c.open(filepath.Join(root, "a.go"), "a")
	uriB := c.open(filepath.Join(root, "b.go"), "b")

	c.notify(MethodDidChangeVisibleEditors, DidChangeVisibleEditorsParams{URIs: []string{uriA, uriB}, Active: uriA})
	c.execute(string(engine.CommandToggle))
	c.waitFor(MethodDecorations, decorationsFor(uriB, 1))

	// b scrolls out of view, then the overlay is hidden.
	c.notify(MethodDidChangeVisibleEditors, DidChangeVisibleEditorsParams{URIs: []string{uriA}, Active: uriA})
	c.execute(string(engine.CommandToggle))
	c.waitFor(MethodDecorations, decorationsFor(uriB, 0))

	c.notify(MethodDidChangeVisibleEditors, DidChangeVisibleEditorsParams{URIs: []string{uriA, uriB}, Active: uriB})
	raw, err := c.request(MethodInlayHint, InlayHintParams{
		TextDocument: TextDocumentIdentifier{URI: uriB},
		Range:        Range{End: Position{Line: 10}},
	})
	require.NoError(t, err)

	var hints []InlayHint
	require.NoError(t, json.Unmarshal(raw, &hints))
	assert.Empty(t, hints)
}

func TestServer_ShutdownExit(t *testing.T) {
	c := startServer(t, newMemStore())
	c.initialize(t.TempDir())

	raw, err := c.request(MethodShutdown, nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	_, err = c.request(MethodHover, TextDocumentPositionParams{})
	assert.Error(t, err, "requests after shutdown are rejected")

	c.notify(MethodExit, nil)
	select {
	case err := <-c.served:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("server did not exit")
	}
}

func TestServer_ExitWithoutShutdown(t *testing.T) {
	c := startServer(t, newMemStore())
	c.initialize(t.TempDir())

	c.notify(MethodExit, nil)
	select {
	case err := <-c.served:
		assert.ErrorIs(t, err, ErrExitWithoutShutdown)
	case <-time.After(waitTimeout):
		t.Fatal("server did not exit")
	}
}

func TestRootFromParams(t *testing.T) {
	assert.Equal(t, "/ws/one", rootFromParams(InitializeParams{
		RootURI:          "file:///ws/two",
		WorkspaceFolders: []WorkspaceFolder{{URI: "file:///ws/one"}},
	}))
	assert.Equal(t, "/ws/two", rootFromParams(InitializeParams{RootURI: "file:///ws/two"}))
	assert.Equal(t, "/ws/three", rootFromParams(InitializeParams{RootPath: "/ws/three"}))
	assert.Equal(t, "", rootFromParams(InitializeParams{}))
}

func TestCommandArguments(t *testing.T) {
	raw, err := commandArguments(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = commandArguments([]json.RawMessage{json.RawMessage(`"file:///a"`), json.RawMessage(`3`)})
	require.NoError(t, err)
	assert.JSONEq(t, `["file:///a",3]`, string(raw))

	raw, err = commandArguments([]json.RawMessage{json.RawMessage(`["file:///a",3]`)})
	require.NoError(t, err)
	assert.JSONEq(t, `["file:///a",3]`, string(raw))
}

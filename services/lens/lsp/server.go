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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/antlens/services/lens/cache"
	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/debugapi"
	"github.com/AleutianAI/antlens/services/lens/engine"
	"github.com/AleutianAI/antlens/services/lens/store"
)

// ServerName is reported in the initialize result.
const ServerName = "antlens"

// inlayRefreshTimeout bounds workspace/inlayHint/refresh round trips.
const inlayRefreshTimeout = 5 * time.Second

// ServerOptions configures a Server.
type ServerOptions struct {
	// Version is reported in serverInfo and the debug state.
	Version string

	// ConfigFile is an explicit config file. Empty searches the root.
	ConfigFile string

	// WatchConfig reloads the configuration when its files change.
	WatchConfig bool

	// CheckStoreVersion probes `<binary> --version` after initialization
	// and logs a warning for stores older than store.MinStoreVersion.
	CheckStoreVersion bool

	// Logger receives server logs. Never writes to the protocol stream.
	Logger *slog.Logger

	// Settings are the starting editor settings, such as a --binary flag.
	// Settings sent by the client take precedence field by field.
	Settings config.Settings

	// StoreFactory overrides how store clients are built.
	StoreFactory engine.StoreFactory
}

// requestHandler serves one request off the read loop.
type requestHandler func(ctx context.Context, params json.RawMessage) (interface{}, *ResponseError)

// Server is the annotation language server. It implements engine.Host.
//
// Description:
//
//	A single read loop applies lifecycle and document-sync messages in
//	order. Hover, inlay hint and command requests, configuration changes
//	and visible-editor refreshes run on their own goroutines so a slow
//	store never blocks the transport.
//
// Thread Safety:
//
//	Safe for concurrent use. Serve must be called once.
type Server struct {
	proto     *Protocol
	opts      ServerOptions
	logger    *slog.Logger
	sessionID string
	startedAt time.Time
	docs      *documents

	mu           sync.RWMutex
	engine       *engine.Engine
	cache        *cache.AnnotationCache
	cfg          config.Config
	settings     config.Settings
	initialized  bool
	shutdown     bool
	inlayRefresh bool
	decorations  map[string][]engine.Decoration

	watcher *config.Watcher
	wg      sync.WaitGroup
}

var _ engine.Host = (*Server)(nil)

// NewServer creates a server reading client messages from r and writing to w.
func NewServer(r io.Reader, w io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessionID := uuid.NewString()
	return &Server{
		proto:       NewProtocol(r, w),
		opts:        opts,
		logger:      logger.With(slog.String("session", sessionID)),
		sessionID:   sessionID,
		startedAt:   time.Now(),
		docs:        newDocuments(),
		decorations: make(map[string][]engine.Decoration),
	}
}

// SessionID identifies this server instance in logs and the debug state.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Serve runs the read loop until exit, end of input or ctx cancellation.
//
// Description:
//
//	On return every in-flight request has finished, the config watcher is
//	stopped and the cache is closed.
//
// Outputs:
//
//	error - nil after shutdown+exit or when the client disconnects after
//	        shutdown. ErrExitWithoutShutdown or ErrConnectionClosed when
//	        the client left without shutting down.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("Language server started")
	err := s.proto.ReadLoop(ctx, s.dispatch)

	cancel()
	s.proto.Close()
	s.wg.Wait()
	s.release()

	s.mu.RLock()
	shutdown := s.shutdown
	s.mu.RUnlock()
	if errors.Is(err, ErrConnectionClosed) && shutdown {
		err = nil
	}

	if err != nil {
		s.logger.Warn("Language server stopped", slog.String("error", err.Error()))
	} else {
		s.logger.Info("Language server stopped")
	}
	return err
}

func (s *Server) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("Failed to stop config watcher", slog.String("error", err.Error()))
		}
		s.watcher = nil
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close annotation cache", slog.String("error", err.Error()))
		}
		s.cache = nil
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

func (s *Server) dispatch(ctx context.Context, msg *Message) error {
	switch msg.Method {
	case MethodInitialize:
		result, rerr := s.handleInitialize(ctx, msg.Params)
		return s.reply(msg, result, rerr)
	case MethodExit:
		s.mu.RLock()
		shutdown := s.shutdown
		s.mu.RUnlock()
		if shutdown {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case MethodCancelRequest:
		return nil
	}

	s.mu.RLock()
	initialized, shutdown := s.initialized, s.shutdown
	s.mu.RUnlock()

	if !initialized {
		if msg.IsNotification() {
			return nil
		}
		return s.reply(msg, nil, newResponseError(CodeServerNotInitialized, "server not initialized"))
	}
	if shutdown && !msg.IsNotification() {
		return s.reply(msg, nil, newResponseError(CodeInvalidRequest, "server is shutting down"))
	}

	switch msg.Method {
	case MethodInitialized:
		s.handleInitialized(ctx)
	case MethodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return s.reply(msg, nil, nil)
	case MethodDidOpen:
		s.handleDidOpen(ctx, msg.Params)
	case MethodDidChange:
		s.handleDidChange(msg.Params)
	case MethodDidClose:
		s.handleDidClose(msg.Params)
	case MethodDidChangeVisibleEditors:
		s.handleDidChangeVisibleEditors(ctx, msg.Params)
	case MethodDidChangeConfiguration:
		s.handleDidChangeConfiguration(ctx, msg.Params)
	case MethodHover:
		s.goRequest(ctx, msg, s.handleHover)
	case MethodInlayHint:
		s.goRequest(ctx, msg, s.handleInlayHint)
	case MethodExecuteCommand:
		s.goRequest(ctx, msg, s.handleExecuteCommand)
	default:
		if msg.IsNotification() {
			s.logger.Debug("Ignoring notification", slog.String("method", msg.Method))
			return nil
		}
		return s.reply(msg, nil, newResponseError(CodeMethodNotFound, "method not found: %s", msg.Method))
	}
	return nil
}

// goRequest serves msg on its own goroutine.
func (s *Server) goRequest(ctx context.Context, msg *Message, h requestHandler) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		start := time.Now()
		ctx, span := startRequestSpan(ctx, msg.Method)
		defer span.End()

		result, rerr := h(ctx, msg.Params)
		recordRequest(ctx, msg.Method, time.Since(start), rerr == nil)
		if err := s.reply(msg, result, rerr); err != nil {
			s.logger.Warn("Failed to reply",
				slog.String("method", msg.Method),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// async runs fn on its own goroutine, tracked for Serve's shutdown.
func (s *Server) async(ctx context.Context, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

func (s *Server) reply(msg *Message, result interface{}, rerr *ResponseError) error {
	if msg.IsNotification() {
		return nil
	}
	if rerr != nil {
		return s.proto.ReplyError(msg.ID, rerr)
	}
	return s.proto.Reply(msg.ID, result)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, *ResponseError) {
	var p InitializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newResponseError(CodeInvalidParams, "invalid initialize params: %v", err)
	}

	var env settingsEnvelope
	if len(p.InitializationOptions) > 0 {
		if err := json.Unmarshal(p.InitializationOptions, &env); err != nil {
			s.logger.Debug("Ignoring unrecognized initializationOptions", slog.String("error", err.Error()))
		}
	}
	settings := s.mergeSettings(env.Ant)

	s.mu.Lock()
	s.settings = settings
	s.inlayRefresh = p.Capabilities.Workspace.InlayHint != nil &&
		p.Capabilities.Workspace.InlayHint.RefreshSupport
	s.mu.Unlock()

	root := rootFromParams(p)
	if cfg, err := s.loadConfig(root); err != nil {
		s.logger.Info("No annotation root", slog.String("root", root), slog.String("error", err.Error()))
	} else {
		s.startEngine(cfg)
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	commands := make([]string, 0, len(engine.CommandIDs()))
	for _, id := range engine.CommandIDs() {
		commands = append(commands, string(id))
	}

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncFull,
			},
			HoverProvider:          true,
			InlayHintProvider:      true,
			ExecuteCommandProvider: ExecuteCommandOptions{Commands: commands},
		},
		ServerInfo: &ServerInfo{Name: ServerName, Version: s.opts.Version},
	}, nil
}

// rootFromParams picks the first workspace folder, then rootUri, then
// rootPath. Returns "" when none resolves to a file path.
func rootFromParams(p InitializeParams) string {
	candidates := []string{p.RootURI, p.RootPath}
	if len(p.WorkspaceFolders) > 0 {
		candidates = append([]string{p.WorkspaceFolders[0].URI}, candidates...)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if path, err := coord.PathFromURI(c); err == nil {
			return path
		}
	}
	return ""
}

func (s *Server) handleInitialized(ctx context.Context) {
	s.mu.Lock()
	eng := s.engine
	cfg := s.cfg
	s.mu.Unlock()

	if eng == nil {
		s.ShowInformation(ctx, engine.MsgMissingRoot)
		return
	}

	if s.opts.WatchConfig {
		s.startWatcher(ctx, cfg.SourceRoot)
	}
	if s.opts.CheckStoreVersion {
		s.async(ctx, func(ctx context.Context) {
			s.checkStoreVersion(ctx, cfg)
		})
	}
}

func (s *Server) startWatcher(ctx context.Context, root string) {
	w, err := config.NewWatcher(root, s.opts.ConfigFile, s.logger)
	if err != nil {
		s.logger.Warn("Config watcher unavailable", slog.String("error", err.Error()))
		return
	}
	w.OnChange(func(cfg config.Config) {
		s.applyConfig(ctx, cfg)
	})

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	s.async(ctx, w.Start)
}

func (s *Server) checkStoreVersion(ctx context.Context, cfg config.Config) {
	client := store.NewClient(cfg.StoreConfig(), store.WithLogger(s.logger))
	version, err := client.CheckVersion(ctx)
	switch {
	case errors.Is(err, store.ErrUnsupportedVersion):
		s.logger.Warn("Annotation store is too old",
			slog.String("version", version),
			slog.String("minimum", store.MinStoreVersion),
		)
	case err != nil:
		s.logger.Warn("Annotation store version unknown", slog.String("error", err.Error()))
	default:
		s.logger.Info("Annotation store found", slog.String("version", version))
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// loadConfig resolves the configuration for root with the current editor
// settings applied. A broken config file falls back to the defaults.
func (s *Server) loadConfig(root string) (config.Config, error) {
	if root == "" {
		return config.Config{}, config.ErrConfigurationMissing
	}

	cfg, err := config.Load(root, s.opts.ConfigFile)
	if errors.Is(err, config.ErrConfigurationMissing) {
		return config.Config{}, err
	}
	if err != nil {
		s.logger.Error("Invalid configuration, using defaults", slog.String("error", err.Error()))
		cfg = config.Default(root)
	}

	s.mu.RLock()
	settings := s.settings
	s.mu.RUnlock()
	return cfg.ApplySettings(settings), nil
}

// mergeSettings overlays client settings on the server's starting settings.
func (s *Server) mergeSettings(client config.Settings) config.Settings {
	merged := s.opts.Settings
	if client.BinaryPath != "" {
		merged.BinaryPath = client.BinaryPath
	}
	return merged
}

func (s *Server) startEngine(cfg config.Config) {
	opts := []engine.Option{engine.WithLogger(s.logger)}
	if s.opts.StoreFactory != nil {
		opts = append(opts, engine.WithStoreFactory(s.opts.StoreFactory))
	}

	var annCache *cache.AnnotationCache
	if cfg.Cache.Enabled {
		c, err := cache.New(cache.Config{TTL: cfg.Cache.TTL, Logger: s.logger})
		if err != nil {
			s.logger.Warn("Annotation cache disabled", slog.String("error", err.Error()))
		} else {
			annCache = c
			opts = append(opts, engine.WithCache(c))
		}
	}

	eng, err := engine.New(s, cfg, opts...)
	if err != nil {
		s.logger.Error("Failed to create engine", slog.String("error", err.Error()))
		if annCache != nil {
			annCache.Close()
		}
		return
	}

	s.mu.Lock()
	s.engine = eng
	s.cache = annCache
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Info("Annotation root configured",
		slog.String("root", cfg.SourceRoot),
		slog.String("binary", cfg.BinaryPath),
		slog.Bool("cache", annCache != nil),
	)
}

// applyConfig reconfigures the engine with cfg plus the editor settings.
func (s *Server) applyConfig(ctx context.Context, cfg config.Config) {
	s.mu.Lock()
	cfg = cfg.ApplySettings(s.settings)
	eng := s.engine
	if eng != nil {
		s.cfg = cfg
	}
	s.mu.Unlock()

	if eng == nil {
		s.ShowInformation(ctx, engine.MsgMissingRoot)
		return
	}
	if err := eng.Reconfigure(ctx, cfg); err != nil {
		s.logger.Warn("Reconfigure failed", slog.String("error", err.Error()))
	}
}

func (s *Server) handleDidChangeConfiguration(ctx context.Context, params json.RawMessage) {
	var p DidChangeConfigurationParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Debug("Invalid didChangeConfiguration params", slog.String("error", err.Error()))
		return
	}
	var env settingsEnvelope
	if len(p.Settings) > 0 {
		if err := json.Unmarshal(p.Settings, &env); err != nil {
			s.logger.Debug("Ignoring unrecognized settings", slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	s.settings = s.mergeSettings(env.Ant)
	root := s.cfg.SourceRoot
	s.mu.Unlock()

	s.async(ctx, func(ctx context.Context) {
		cfg, err := s.loadConfig(root)
		if err != nil {
			s.ShowInformation(ctx, engine.MsgMissingRoot)
			return
		}
		s.applyConfig(ctx, cfg)
	})
}

// =============================================================================
// DOCUMENT SYNC
// =============================================================================

func (s *Server) handleDidOpen(ctx context.Context, params json.RawMessage) {
	var p DidOpenTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Debug("Invalid didOpen params", slog.String("error", err.Error()))
		return
	}
	doc, err := newDocument(p.TextDocument.URI, p.TextDocument.Version, p.TextDocument.Text)
	if err != nil {
		s.logger.Debug("Ignoring non-file document",
			slog.String("uri", p.TextDocument.URI),
			slog.String("error", err.Error()),
		)
		return
	}
	s.docs.open(doc)

	eng := s.currentEngine()
	if eng == nil || !s.docs.isVisible(doc.uri) {
		return
	}
	s.async(ctx, func(ctx context.Context) {
		eng.OnVisibleEditorsChanged(ctx, []engine.Editor{doc})
	})
}

func (s *Server) handleDidChange(params json.RawMessage) {
	var p DidChangeTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Debug("Invalid didChange params", slog.String("error", err.Error()))
		return
	}
	doc, ok := s.docs.get(p.TextDocument.URI)
	if !ok || len(p.ContentChanges) == 0 {
		return
	}
	doc.setText(p.TextDocument.Version, p.ContentChanges[len(p.ContentChanges)-1].Text)
	s.docs.touch(doc.uri)
}

func (s *Server) handleDidClose(params json.RawMessage) {
	var p DidCloseTextDocumentParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Debug("Invalid didClose params", slog.String("error", err.Error()))
		return
	}
	uri := p.TextDocument.URI
	s.docs.close(uri)

	s.mu.Lock()
	delete(s.decorations, uri)
	eng := s.engine
	s.mu.Unlock()

	if eng != nil {
		eng.Forget(uri)
	}
}

func (s *Server) handleDidChangeVisibleEditors(ctx context.Context, params json.RawMessage) {
	var p DidChangeVisibleEditorsParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Debug("Invalid visible editors params", slog.String("error", err.Error()))
		return
	}
	added := s.docs.setVisible(p.URIs, p.Active)
	if p.ActiveLine != nil {
		if doc, ok := s.docs.get(p.Active); ok {
			doc.setCursor(*p.ActiveLine)
		}
	}

	eng := s.currentEngine()
	if eng == nil || len(added) == 0 {
		return
	}
	s.async(ctx, func(ctx context.Context) {
		eng.OnVisibleEditorsChanged(ctx, added)
	})
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Server) handleHover(ctx context.Context, params json.RawMessage) (interface{}, *ResponseError) {
	var p TextDocumentPositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newResponseError(CodeInvalidParams, "invalid hover params: %v", err)
	}
	doc, ok := s.docs.get(p.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	doc.setCursor(p.Position.Line)
	s.docs.touch(doc.uri)

	eng := s.currentEngine()
	if eng == nil {
		return nil, nil
	}

	h, err := eng.Hover(ctx, doc, p.Position.Line)
	if err != nil {
		return nil, newResponseError(CodeInternalError, "hover: %v", err)
	}
	if h == nil {
		return nil, nil
	}

	end, _ := doc.LineEnd(p.Position.Line)
	return HoverResult{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: h.Markdown},
		Range: &Range{
			Start: Position{Line: p.Position.Line, Character: 0},
			End:   Position{Line: p.Position.Line, Character: end},
		},
	}, nil
}

// handleInlayHint serves the last painted decorations of a document as
// inlay hints, re-anchored to the current line ends.
func (s *Server) handleInlayHint(ctx context.Context, params json.RawMessage) (interface{}, *ResponseError) {
	var p InlayHintParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newResponseError(CodeInvalidParams, "invalid inlayHint params: %v", err)
	}

	hints := []InlayHint{}
	if eng := s.currentEngine(); eng == nil || !eng.Visible() {
		return hints, nil
	}
	doc, ok := s.docs.get(p.TextDocument.URI)
	if !ok {
		return hints, nil
	}

	s.mu.RLock()
	decos := s.decorations[doc.uri]
	s.mu.RUnlock()

	for _, d := range decos {
		if d.Line < p.Range.Start.Line || d.Line > p.Range.End.Line {
			continue
		}
		end, ok := doc.LineEnd(d.Line)
		if !ok {
			continue
		}
		hints = append(hints, InlayHint{
			Position:    Position{Line: d.Line, Character: end},
			Label:       d.Label,
			Tooltip:     &MarkupContent{Kind: MarkupKindMarkdown, Value: d.Hover},
			PaddingLeft: true,
		})
	}
	return hints, nil
}

func (s *Server) handleExecuteCommand(ctx context.Context, params json.RawMessage) (interface{}, *ResponseError) {
	var p ExecuteCommandParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newResponseError(CodeInvalidParams, "invalid executeCommand params: %v", err)
	}

	eng := s.currentEngine()
	if eng == nil {
		s.ShowInformation(ctx, engine.MsgMissingRoot)
		return nil, nil
	}

	raw, err := commandArguments(p.Arguments)
	if err != nil {
		return nil, newResponseError(CodeInvalidParams, "invalid arguments: %v", err)
	}

	err = eng.Execute(ctx, engine.CommandID(p.Command), raw)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, engine.ErrUnknownCommand), errors.Is(err, engine.ErrInvalidArguments):
		return nil, newResponseError(CodeInvalidParams, "%v", err)
	default:
		// Already surfaced to the user or logged by the engine.
		s.logger.Debug("Command finished with error",
			slog.String("command", p.Command),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
}

// commandArguments turns executeCommand arguments back into the [uri, row]
// tuple. Clients either spread the tuple ([uri, row]) or pass it whole
// ([[uri, row]]).
func commandArguments(args []json.RawMessage) (json.RawMessage, error) {
	switch {
	case len(args) == 0:
		return nil, nil
	case len(args) == 1 && len(args[0]) > 0 && args[0][0] == '[':
		return args[0], nil
	default:
		return json.Marshal(args)
	}
}

// =============================================================================
// HOST
// =============================================================================

// VisibleEditors returns the documents the client has on screen.
func (s *Server) VisibleEditors() []engine.Editor {
	return s.docs.visibleEditors()
}

// ActiveEditor returns the focused document.
func (s *Server) ActiveEditor() (engine.Editor, bool) {
	doc, ok := s.docs.activeEditor()
	if !ok {
		return nil, false
	}
	return doc, true
}

// SetDecorations records the decoration set of ed, pushes it as
// ant/decorations and asks the client to re-pull inlay hints.
func (s *Server) SetDecorations(ctx context.Context, ed engine.Editor, decorations []engine.Decoration) error {
	if decorations == nil {
		decorations = []engine.Decoration{}
	}

	s.mu.Lock()
	if len(decorations) == 0 {
		delete(s.decorations, ed.ID())
	} else {
		s.decorations[ed.ID()] = decorations
	}
	refresh := s.inlayRefresh
	s.mu.Unlock()

	err := s.proto.SendNotification(MethodDecorations, DecorationsParams{
		URI:         ed.ID(),
		Version:     ed.Revision(),
		Decorations: decorations,
	})
	if err != nil {
		return err
	}

	if refresh {
		s.async(ctx, s.requestInlayRefresh)
	}
	return nil
}

func (s *Server) requestInlayRefresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, inlayRefreshTimeout)
	defer cancel()
	if _, err := s.proto.SendRequest(ctx, MethodInlayHintRefresh, nil); err != nil {
		s.logger.Debug("Inlay hint refresh failed", slog.String("error", err.Error()))
	}
}

// ShowInformation sends window/showMessage with the info severity.
func (s *Server) ShowInformation(ctx context.Context, message string) {
	err := s.proto.SendNotification(MethodShowMessage, ShowMessageParams{
		Type:    MessageTypeInfo,
		Message: message,
	})
	if err != nil {
		s.logger.Warn("Failed to show message", slog.String("error", err.Error()))
	}
}

// PromptInput asks the client for text with ant/promptInput.
func (s *Server) PromptInput(ctx context.Context, prompt string) (string, bool, error) {
	raw, err := s.proto.SendRequest(ctx, MethodPromptInput, PromptInputParams{Prompt: prompt})
	if err != nil {
		return "", false, err
	}
	if string(raw) == "null" {
		return "", false, nil
	}
	var res PromptInputResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", false, err
	}
	if res.Text == nil {
		return "", false, nil
	}
	return *res.Text, true, nil
}

// =============================================================================
// STATE
// =============================================================================

func (s *Server) currentEngine() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// State returns a snapshot for the debug API.
func (s *Server) State() debugapi.State {
	s.mu.RLock()
	eng := s.engine
	cfg := s.cfg
	c := s.cache
	s.mu.RUnlock()

	st := debugapi.State{
		SessionID:  s.sessionID,
		StartedAt:  s.startedAt,
		Root:       cfg.SourceRoot,
		BinaryPath: cfg.BinaryPath,
		Documents:  s.docs.count(),
	}
	if eng != nil {
		st.Visible = eng.Visible()
	}
	if c != nil {
		stats := c.Stats()
		st.CacheHits = stats.Hits
		st.CacheMisses = stats.Misses
	}
	return st
}

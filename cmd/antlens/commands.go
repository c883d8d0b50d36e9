// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/antlens/pkg/logging"
	"github.com/AleutianAI/antlens/pkg/ux"
	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/engine"
	"github.com/AleutianAI/antlens/services/lens/store"
)

// Overridden by tests.
var (
	storeFactory engine.StoreFactory
	promptInput  promptFunc
)

// cliOptions holds the persistent flags.
type cliOptions struct {
	root       string
	binary     string
	configFile string
	logLevel   string
	logJSON    bool
	jsonOut    bool
	debugAddr  string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "antlens",
		Short: "Overlay ant annotations on source files",
		Long: `antlens shows annotations kept by the ant store next to the lines they
describe. Run "antlens serve" from an editor, or use the file commands
directly from a terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.InitPersonality()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", "", "annotation root (default: current directory)")
	flags.StringVar(&opts.binary, "binary", "", "ant executable (default: ant from PATH)")
	flags.StringVar(&opts.configFile, "config", "", "config file (default: .antlens.yaml or .antlens.toml in the root)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")

	listCmd := &cobra.Command{
		Use:   "list <file>",
		Short: "Print the annotations of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify("list", runList(cmd.Context(), opts, cmd.OutOrStdout(), args[0]))
		},
	}
	listCmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print JSON")

	hoverCmd := &cobra.Command{
		Use:   "hover <file> <row>",
		Short: "Show the hover for a 1-based row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify("hover", runHover(cmd.Context(), opts, cmd.OutOrStdout(), args[0], args[1]))
		},
	}
	hoverCmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print JSON")

	addCmd := &cobra.Command{
		Use:   "add <file> <row> [text...]",
		Short: "Annotate a 1-based row",
		Long:  "Annotate a 1-based row. Without text, prompts for it on an interactive terminal.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[2:], " ")
			return classify("add", runAdd(cmd.Context(), opts, cmd.OutOrStdout(), args[0], args[1], text))
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <file> <row>",
		Short: "Remove the annotation at a 1-based row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify("remove", runRemove(cmd.Context(), opts, cmd.OutOrStdout(), args[0], args[1]))
		},
	}

	storeVersionCmd := &cobra.Command{
		Use:   "store-version",
		Short: "Print the ant store version and check compatibility",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify("store-version", runStoreVersion(cmd.Context(), opts, cmd.OutOrStdout()))
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return classify("serve", runServe(cmd.Context(), opts))
		},
	}
	serveCmd.Flags().StringVar(&opts.debugAddr, "debug-addr", "", "serve the debug API on this address, e.g. 127.0.0.1:6061")

	rootCmd.AddCommand(listCmd, hoverCmd, addCmd, removeCmd, storeVersionCmd, serveCmd)
	return rootCmd
}

// =============================================================================
// SESSION
// =============================================================================

// session is one file opened against the store for a one-shot command.
type session struct {
	cfg     config.Config
	logger  *logging.Logger
	editor  *fileEditor
	host    *terminalHost
	engine  *engine.Engine
	printer *ux.Printer
	rel     string
}

func (s *session) Close() {
	_ = s.logger.Close()
}

// resolveConfig loads the configuration for the root flag (or the working
// directory) and applies the flag overrides.
func (o *cliOptions) resolveConfig() (config.Config, error) {
	root := o.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("get working directory: %w", err)
		}
		root = wd
	}

	cfg, err := config.Load(root, o.configFile)
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.ApplySettings(config.Settings{BinaryPath: o.binary})
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logJSON {
		cfg.Logging.JSON = true
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(logging.Config{
		Level:   level,
		Service: "antlens",
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
	})
	if err != nil {
		logger.Warn("Falling back to info logging", "error", err)
	}
	return logger
}

// openSession resolves the configuration, reads path and builds a visible
// engine over it. prompt answers the add command's text prompt.
func openSession(opts *cliOptions, out io.Writer, path string, prompt promptFunc) (*session, error) {
	cfg, err := opts.resolveConfig()
	if err != nil {
		return nil, err
	}

	ed, err := openFileEditor(path)
	if err != nil {
		return nil, err
	}
	rel, err := coord.ToStoreRelative(ed.Path(), cfg.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	printer := &ux.Printer{Out: out, Err: os.Stderr}
	host := newTerminalHost(ed, printer, prompt)
	logger := newLogger(cfg)

	visible := &engine.Visibility{}
	visible.Flip()

	eng, err := engine.New(host, cfg,
		engine.WithLogger(logger.Slog()),
		engine.WithVisibility(visible),
		engine.WithStoreFactory(storeFactory),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		editor:  ed,
		host:    host,
		engine:  eng,
		printer: printer,
		rel:     rel,
	}, nil
}

// parseRow parses a 1-based row argument.
func parseRow(arg string) (int, error) {
	row, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("row %q is not a number", arg)
	}
	if row < 1 {
		return 0, fmt.Errorf("row must be 1 or greater, got %d", row)
	}
	return row, nil
}

// spin shows a spinner on an interactive stderr while fn runs.
func spin(message string, fn func() error) error {
	if !ux.IsTerminal(os.Stderr) {
		return fn()
	}
	return ux.WithSpinner(os.Stderr, message, fn)
}

// =============================================================================
// LIST
// =============================================================================

// listEntry is one annotation in `list --json` output.
type listEntry struct {
	Row   int    `json:"row"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// listOutput is the `list --json` document.
type listOutput struct {
	File        string      `json:"file"`
	Annotations []listEntry `json:"annotations"`
}

func runList(ctx context.Context, opts *cliOptions, out io.Writer, path string) error {
	s, err := openSession(opts, out, path, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	err = spin("Listing annotations", func() error {
		return s.engine.RefreshAnnotations(ctx, s.editor)
	})
	if err != nil {
		return err
	}

	decorations, _ := s.host.Decorations()
	if opts.jsonOut {
		doc := listOutput{File: s.rel, Annotations: make([]listEntry, 0, len(decorations))}
		for _, d := range decorations {
			doc.Annotations = append(doc.Annotations, listEntry{
				Row:   coord.ToStoreRow(d.Line),
				Label: d.Label,
				Text:  d.Hover,
			})
		}
		return writeJSON(out, doc)
	}

	if len(decorations) == 0 {
		s.printer.Muted(fmt.Sprintf("No annotations in %s", s.rel))
		return nil
	}
	s.printer.Title(s.rel)
	for _, d := range decorations {
		s.printer.AnnotatedLine(coord.ToStoreRow(d.Line), d.Label)
	}
	return nil
}

// =============================================================================
// HOVER
// =============================================================================

// hoverOutput is the `hover --json` document.
type hoverOutput struct {
	File       string            `json:"file"`
	Row        int               `json:"row"`
	Action     engine.CommandID  `json:"action"`
	Link       string            `json:"link"`
	Annotation *store.Annotation `json:"annotation,omitempty"`
	Markdown   string            `json:"markdown"`
}

func runHover(ctx context.Context, opts *cliOptions, out io.Writer, path, rowArg string) error {
	row, err := parseRow(rowArg)
	if err != nil {
		return err
	}
	s, err := openSession(opts, out, path, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var h *engine.Hover
	err = spin("Reading annotations", func() error {
		var herr error
		h, herr = s.engine.Hover(ctx, s.editor, coord.ToEditorLine(row))
		return herr
	})
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("no hover for %s:%d", s.rel, row)
	}

	if opts.jsonOut {
		return writeJSON(out, hoverOutput{
			File:       s.rel,
			Row:        row,
			Action:     h.Action,
			Link:       h.Link,
			Annotation: h.Annotation,
			Markdown:   h.Markdown,
		})
	}

	title := fmt.Sprintf("%s:%d", s.rel, row)
	if h.Annotation != nil {
		s.printer.Box(title, h.Annotation.Text)
		s.printer.Muted(fmt.Sprintf("antlens remove %s %d", path, row))
		return nil
	}
	s.printer.Box(title, "No annotation")
	s.printer.Muted(fmt.Sprintf("antlens add %s %d <text>", path, row))
	return nil
}

// =============================================================================
// ADD / REMOVE
// =============================================================================

func runAdd(ctx context.Context, opts *cliOptions, out io.Writer, path, rowArg, text string) error {
	row, err := parseRow(rowArg)
	if err != nil {
		return err
	}
	ask := promptInput
	if text != "" {
		ask = func(context.Context, string) (string, bool, error) { return text, true, nil }
	}
	if ask == nil {
		ask = func(ctx context.Context, p string) (string, bool, error) {
			return ux.PromptLine(ctx, p, "")
		}
	}
	answered := false
	prompt := func(ctx context.Context, p string) (string, bool, error) {
		got, ok, err := ask(ctx, p)
		answered = ok && got != ""
		return got, ok, err
	}

	s, err := openSession(opts, out, path, prompt)
	if err != nil {
		return err
	}
	defer s.Close()

	err = s.engine.Add(ctx, &engine.MutationArgs{URI: s.editor.ID(), Row: row})
	if errors.Is(err, ux.ErrNotInteractive) {
		return fmt.Errorf("annotation text is required when not on a terminal: %w", err)
	}
	if err != nil {
		return err
	}
	if !answered {
		s.printer.Muted("Cancelled")
	}
	return nil
}

func runRemove(ctx context.Context, opts *cliOptions, out io.Writer, path, rowArg string) error {
	row, err := parseRow(rowArg)
	if err != nil {
		return err
	}
	s, err := openSession(opts, out, path, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.engine.Remove(ctx, &engine.MutationArgs{URI: s.editor.ID(), Row: row})
}

// =============================================================================
// STORE VERSION
// =============================================================================

func runStoreVersion(ctx context.Context, opts *cliOptions, out io.Writer) error {
	cfg, err := opts.resolveConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Close() }()

	client := store.NewClient(cfg.StoreConfig(), store.WithLogger(logger.Slog()))
	printer := &ux.Printer{Out: out, Err: os.Stderr}

	reported, err := client.CheckVersion(ctx)
	if errors.Is(err, store.ErrUnsupportedVersion) {
		printer.Warning(fmt.Sprintf("%s %s is older than %s", client.Binary(), reported, store.MinStoreVersion))
		return err
	}
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("%s %s", client.Binary(), reported))
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/antlens/services/lens/config"
	"github.com/AleutianAI/antlens/services/lens/coord"
	"github.com/AleutianAI/antlens/services/lens/store"
)

func TestNew(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := New(newHost(), config.Config{BinaryPath: "ant"})
		assert.True(t, errors.Is(err, config.ErrConfigurationMissing))
	})

	t.Run("nil host", func(t *testing.T) {
		_, err := New(nil, config.Default(testRoot))
		assert.Error(t, err)
	})

	t.Run("starts hidden", func(t *testing.T) {
		e := newTestEngine(newHost(), newFakeStore())
		assert.False(t, e.Visible())
		assert.Equal(t, testRoot, e.Root())
	})

	t.Run("injected visibility", func(t *testing.T) {
		v := &Visibility{}
		v.Flip()
		e := newTestEngine(newHost(), newFakeStore(), WithVisibility(v))
		assert.True(t, e.Visible())
	})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("visible refreshes every visible editor", func(t *testing.T) {
		a := newEditor("a.go", "package a", "func A() {}")
		b := newEditor("b.go", "package b")
		host := newHost(a, b)
		st := newFakeStore()
		st.put("a.go", 2, "explain A")
		st.put("b.go", 1, "package doc")
		e := newTestEngine(host, st)

		assert.True(t, e.Toggle(ctx))
		assert.Equal(t, 2, st.lists())
		assert.Equal(t, []Decoration{{Line: 1, Character: 11, Label: "explain A", Hover: "explain A"}}, host.decos(a))
		assert.Equal(t, []Decoration{{Line: 0, Character: 9, Label: "package doc", Hover: "package doc"}}, host.decos(b))
	})

	t.Run("hidden clears without store calls", func(t *testing.T) {
		a := newEditor("a.go", "package a")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 1, "x")
		e := newTestEngine(host, st)

		e.Toggle(ctx)
		require.Len(t, host.decos(a), 1)
		before := st.lists()

		assert.False(t, e.Toggle(ctx))
		assert.Empty(t, host.decos(a))
		assert.Equal(t, before, st.lists())
	})

	t.Run("twice is idempotent from either state", func(t *testing.T) {
		for _, startVisible := range []bool{false, true} {
			a := newEditor("a.go", "l0", "l1", "l2")
			host := newHost(a)
			st := newFakeStore()
			st.put("a.go", 3, "note")
			e := newTestEngine(host, st)
			if startVisible {
				e.Toggle(ctx)
			}

			stateBefore := e.Visible()
			decosBefore := host.decos(a)

			e.Toggle(ctx)
			e.Toggle(ctx)

			assert.Equal(t, stateBefore, e.Visible())
			assert.Equal(t, decosBefore, host.decos(a), "startVisible=%v", startVisible)
		}
	})
}

func TestRefreshAnnotations(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op while hidden", func(t *testing.T) {
		a := newEditor("a.go", "x")
		host := newHost(a)
		st := newFakeStore()
		e := newTestEngine(host, st)

		require.NoError(t, e.RefreshAnnotations(ctx, a))
		assert.Zero(t, st.lists())
		assert.Zero(t, host.setCalls)
	})

	t.Run("repeated calls give the same set", func(t *testing.T) {
		a := newEditor("a.go", "x", "y")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 2, "why")
		e := newTestEngine(host, st)
		e.Toggle(ctx)

		first := host.decos(a)
		require.NoError(t, e.RefreshAnnotations(ctx, a))
		require.NoError(t, e.RefreshAnnotations(ctx, a))
		assert.Equal(t, first, host.decos(a))
	})

	t.Run("malformed output renders nothing", func(t *testing.T) {
		a := newEditor("a.go", "x")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 1, "old")
		e := newTestEngine(host, st)
		e.Toggle(ctx)
		require.Len(t, host.decos(a), 1)

		st.listErr = &store.Failure{Kind: store.FailureMalformed, Op: "list"}
		require.NoError(t, e.RefreshAnnotations(ctx, a))
		assert.Empty(t, host.decos(a))
		assert.Empty(t, host.shown())
	})

	t.Run("rows outside the document are skipped", func(t *testing.T) {
		a := newEditor("a.go", "only line")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 1, "kept")
		st.put("a.go", 7, "gone")
		e := newTestEngine(host, st)
		e.Toggle(ctx)

		decos := host.decos(a)
		require.Len(t, decos, 1)
		assert.Equal(t, "kept", decos[0].Label)
	})

	t.Run("editor outside root is left alone", func(t *testing.T) {
		outside := &fakeEditor{path: "/elsewhere/x.go", lines: []string{"x"}, cursor: -1}
		host := newHost(outside)
		st := newFakeStore()
		e := newTestEngine(host, st)
		e.Toggle(ctx)

		assert.Zero(t, st.lists())
		assert.Zero(t, host.setCalls)
	})

	t.Run("stale result is discarded", func(t *testing.T) {
		a := newEditor("a.go", "x", "y")
		host := newHost(a)
		st := newFakeStore()
		e := newTestEngine(host, st)
		e.visibility.Flip()

		release := make(chan struct{})
		entered := make(chan struct{})
		st.listHook = func(call int) {
			if call == 1 {
				close(entered)
				<-release
			}
		}
		st.put("a.go", 1, "old answer")

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.RefreshAnnotations(ctx, a)
		}()
		<-entered

		// A newer refresh sees newer store content and lands first.
		st.mu.Lock()
		st.annotations["a.go"] = []store.Annotation{{Text: "new answer", Source: "a.go", Row: 2}}
		st.mu.Unlock()
		require.NoError(t, e.RefreshAnnotations(ctx, a))

		close(release)
		<-done

		decos := host.decos(a)
		require.Len(t, decos, 1)
		assert.Equal(t, "new answer", decos[0].Label)
	})

	t.Run("result arriving after hide is discarded", func(t *testing.T) {
		a := newEditor("a.go", "x")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 1, "late")
		e := newTestEngine(host, st)
		e.visibility.Flip()

		release := make(chan struct{})
		entered := make(chan struct{})
		st.listHook = func(int) {
			close(entered)
			<-release
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.RefreshAnnotations(ctx, a)
		}()
		<-entered

		assert.False(t, e.Toggle(ctx))
		close(release)
		<-done

		assert.Empty(t, host.decos(a))
	})

	t.Run("forgotten editor drops in-flight result", func(t *testing.T) {
		a := newEditor("a.go", "x")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 1, "late")
		e := newTestEngine(host, st)
		e.visibility.Flip()

		release := make(chan struct{})
		entered := make(chan struct{})
		st.listHook = func(int) {
			close(entered)
			<-release
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.RefreshAnnotations(ctx, a)
		}()
		<-entered
		e.Forget(a.ID())
		close(release)
		<-done

		assert.Zero(t, host.setCalls)
	})

	t.Run("reopened editor keeps only the newest result", func(t *testing.T) {
		a := newEditor("a.go", "x", "y")
		host := newHost(a)
		st := newFakeStore()
		st.put("a.go", 1, "old answer")
		e := newTestEngine(host, st)
		e.visibility.Flip()

		release := make(chan struct{})
		entered := make(chan struct{})
		st.listHook = func(call int) {
			if call == 1 {
				close(entered)
				<-release
			}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.RefreshAnnotations(ctx, a)
		}()
		<-entered

		// Close and reopen the document while the first refresh is blocked.
		e.Forget(a.ID())
		st.mu.Lock()
		st.annotations["a.go"] = []store.Annotation{{Text: "new answer", Source: "a.go", Row: 2}}
		st.mu.Unlock()
		require.NoError(t, e.RefreshAnnotations(ctx, a))

		close(release)
		<-done

		decos := host.decos(a)
		require.Len(t, decos, 1)
		assert.Equal(t, "new answer", decos[0].Label)
	})
}

func TestOnVisibleEditorsChanged(t *testing.T) {
	ctx := context.Background()
	a := newEditor("a.go", "x")
	host := newHost()
	st := newFakeStore()
	st.put("a.go", 1, "hi")
	e := newTestEngine(host, st)

	e.OnVisibleEditorsChanged(ctx, []Editor{a})
	assert.Zero(t, st.lists(), "hidden overlay ignores editor changes")

	e.Toggle(ctx)
	e.OnVisibleEditorsChanged(ctx, []Editor{a})
	assert.Len(t, host.decos(a), 1)
}

// Scenario A: a stored annotation on row 5 offers removal at line index 4.
func TestHover_RemoveLinkForAnnotatedRow(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "0", "1", "2", "3", "4")
	host := newHost(f)
	st := newFakeStore()
	st.put("f.ts", 5, "fix this")
	e := newTestEngine(host, st)
	e.Toggle(ctx)

	h, err := e.Hover(ctx, f, 4)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, CommandRemove, h.Action)
	assert.Equal(t, MutationArgs{URI: f.ID(), Row: 5}, h.Args)
	require.NotNil(t, h.Annotation)
	assert.Equal(t, "fix this", h.Annotation.Text)
	assert.Contains(t, h.Markdown, "fix this")
	assert.Contains(t, h.Markdown, "[Remove annotation](command:ant.remove?")

	id, args, err := ParseCommandLink(h.Link)
	require.NoError(t, err)
	assert.Equal(t, CommandRemove, id)
	assert.Equal(t, 5, args.Row)
}

func TestHover_Exclusivity(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "0", "1", "2", "3")
	host := newHost(f)
	st := newFakeStore()
	st.put("f.ts", 2, "first")
	st.put("f.ts", 2, "duplicate")
	st.put("f.ts", 4, "other")
	e := newTestEngine(host, st)
	e.Toggle(ctx)

	for line := 0; line < 4; line++ {
		h, err := e.Hover(ctx, f, line)
		require.NoError(t, err)
		require.NotNil(t, h)

		annotated := line == 1 || line == 3
		if annotated {
			assert.Equal(t, CommandRemove, h.Action, "line %d", line)
		} else {
			assert.Equal(t, CommandAdd, h.Action, "line %d", line)
			assert.Nil(t, h.Annotation)
		}
		assert.Equal(t, line+1, h.Args.Row)
	}

	h, err := e.Hover(ctx, f, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", h.Annotation.Text, "first match wins")
}

func TestHover_HiddenMakesNoStoreCalls(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "0")
	st := newFakeStore()
	e := newTestEngine(newHost(f), st)

	for i := 0; i < 5; i++ {
		h, err := e.Hover(ctx, f, 0)
		require.NoError(t, err)
		assert.Nil(t, h)
	}
	assert.Zero(t, st.lists())
}

func TestHover_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected shows the store message", func(t *testing.T) {
		f := newEditor("f.ts", "0")
		host := newHost(f)
		st := newFakeStore()
		e := newTestEngine(host, st)
		e.visibility.Flip()
		st.listErr = rejected("list", "parse error")

		h, err := e.Hover(ctx, f, 0)
		require.NoError(t, err)
		assert.Nil(t, h)
		assert.Equal(t, []string{"parse error"}, host.shown())
	})

	t.Run("spawn failure offers add", func(t *testing.T) {
		f := newEditor("f.ts", "0")
		host := newHost(f)
		st := newFakeStore()
		e := newTestEngine(host, st)
		e.visibility.Flip()
		st.listErr = &store.Failure{Kind: store.FailureSpawn, Op: "list", Err: errors.New("not found")}

		h, err := e.Hover(ctx, f, 0)
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.Equal(t, CommandAdd, h.Action)
		assert.Empty(t, host.shown())
	})
}

// Scenario B: adding "note" at row 3 decorates line index 2 of the active editor.
func TestAdd_DecoratesActiveEditor(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "zero", "one", "two", "three")
	other := newEditor("g.ts", "g")
	host := newHost(f, other)
	host.promptText = "note"
	st := newFakeStore()
	cache := &fakeCache{}
	e := newTestEngine(host, st, WithCache(cache))
	e.Toggle(ctx)
	listsBefore := st.lists()

	err := e.Add(ctx, &MutationArgs{URI: f.ID(), Row: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"add f.ts:3 note"}, st.muts())
	assert.Equal(t, []Decoration{{Line: 2, Character: 3, Label: "note", Hover: "note"}}, host.decos(f))
	assert.Equal(t, []string{"Successfully added annotation to f.ts:3"}, host.shown())
	assert.Equal(t, []string{"f.ts"}, cache.invalidated)
	assert.Equal(t, listsBefore+1, st.lists(), "only the active editor is refreshed")
}

func TestAdd_NoEffect(t *testing.T) {
	ctx := context.Background()

	for name, setup := range map[string]func(h *fakeHost){
		"cancelled": func(h *fakeHost) { h.promptOK = false; h.promptText = "ignored" },
		"empty":     func(h *fakeHost) { h.promptText = "" },
	} {
		t.Run(name, func(t *testing.T) {
			f := newEditor("f.ts", "x")
			host := newHost(f)
			setup(host)
			st := newFakeStore()
			e := newTestEngine(host, st)

			require.NoError(t, e.Add(ctx, &MutationArgs{URI: f.ID(), Row: 1}))
			assert.Empty(t, st.muts())
			assert.Empty(t, host.shown())
			assert.Zero(t, host.setCalls)
		})
	}

	t.Run("prompt error", func(t *testing.T) {
		f := newEditor("f.ts", "x")
		host := newHost(f)
		host.promptErr = errors.New("client went away")
		st := newFakeStore()
		e := newTestEngine(host, st)

		assert.Error(t, e.Add(ctx, &MutationArgs{URI: f.ID(), Row: 1}))
		assert.Empty(t, st.muts())
	})
}

func TestAdd_WhitespaceTextIsStored(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "x")
	host := newHost(f)
	host.promptText = "   "
	st := newFakeStore()
	e := newTestEngine(host, st)

	require.NoError(t, e.Add(ctx, &MutationArgs{URI: f.ID(), Row: 1}))
	assert.Equal(t, []string{"add f.ts:1    "}, st.muts())
	assert.Len(t, host.shown(), 1)
}

func TestMutations_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected shows stdout and skips refresh", func(t *testing.T) {
		f := newEditor("f.ts", "x")
		host := newHost(f)
		host.promptText = "dup"
		st := newFakeStore()
		st.mutateErr = rejected("add", "Annotation already exists")
		e := newTestEngine(host, st)
		e.Toggle(ctx)
		calls := host.setCalls

		err := e.Add(ctx, &MutationArgs{URI: f.ID(), Row: 1})
		assert.True(t, errors.Is(err, store.ErrRejected))
		assert.Equal(t, []string{"Annotation already exists"}, host.shown())
		assert.Equal(t, calls, host.setCalls)
	})

	t.Run("spawn failure is silent", func(t *testing.T) {
		f := newEditor("f.ts", "x")
		host := newHost(f)
		st := newFakeStore()
		st.mutateErr = &store.Failure{Kind: store.FailureSpawn, Op: "remove", Err: errors.New("enoent")}
		e := newTestEngine(host, st)

		err := e.Remove(ctx, &MutationArgs{URI: f.ID(), Row: 1})
		assert.True(t, errors.Is(err, store.ErrSpawnFailed))
		assert.Empty(t, host.shown())
	})

	t.Run("outside root", func(t *testing.T) {
		host := newHost()
		st := newFakeStore()
		e := newTestEngine(host, st)

		err := e.Remove(ctx, &MutationArgs{URI: "file:///etc/passwd", Row: 1})
		assert.True(t, errors.Is(err, coord.ErrOutsideRoot))
		assert.Equal(t, []string{MsgOutsideRoot}, host.shown())
		assert.Empty(t, st.muts())
	})

	t.Run("no active editor", func(t *testing.T) {
		host := newHost()
		st := newFakeStore()
		e := newTestEngine(host, st)

		err := e.Remove(ctx, nil)
		assert.True(t, errors.Is(err, ErrNoActiveTarget))
		assert.Equal(t, []string{MsgNoActiveEditor}, host.shown())
		assert.Empty(t, st.muts())
	})
}

func TestRemove_UsesCursorWhenNoArgs(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "a", "b", "c")
	f.cursor = 2
	host := newHost(f)
	st := newFakeStore()
	st.put("f.ts", 3, "bye")
	e := newTestEngine(host, st)
	e.Toggle(ctx)
	require.Len(t, host.decos(f), 1)

	require.NoError(t, e.Remove(ctx, nil))
	assert.Equal(t, []string{"remove f.ts:3"}, st.muts())
	assert.Empty(t, host.decos(f))
}

// Scenario C: a missing store binary yields no annotations and no panic.
func TestScenario_MissingBinary(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	f := &fakeEditor{path: filepath.Join(root, "f.ts"), lines: []string{"x"}, cursor: -1}
	host := newHost(f)

	cfg := config.Default(root)
	cfg.BinaryPath = filepath.Join(root, "no-such-ant")
	e, err := New(host, cfg)
	require.NoError(t, err)

	assert.True(t, e.Toggle(ctx))
	assert.Empty(t, host.decos(f))
	assert.Equal(t, 1, host.setCalls)
	assert.Empty(t, host.shown())

	h, err := e.Hover(ctx, f, 0)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, CommandAdd, h.Action)
}

// Scenario D: a rejected list shows the store's message and keeps decorations.
func TestScenario_RejectedListKeepsDecorations(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "x", "y")
	host := newHost(f)
	st := newFakeStore()
	st.put("f.ts", 2, "existing")
	e := newTestEngine(host, st)
	e.Toggle(ctx)
	before := host.decos(f)
	require.Len(t, before, 1)

	st.listErr = rejected("list", "parse error")
	err := e.RefreshAnnotations(ctx, f)
	assert.True(t, errors.Is(err, store.ErrRejected))
	assert.Equal(t, []string{"parse error"}, host.shown())
	assert.Equal(t, before, host.decos(f))
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown command", func(t *testing.T) {
		e := newTestEngine(newHost(), newFakeStore())
		err := e.Execute(ctx, "ant.explode", nil)
		assert.True(t, errors.Is(err, ErrUnknownCommand))
	})

	t.Run("invalid arguments", func(t *testing.T) {
		e := newTestEngine(newHost(), newFakeStore())
		err := e.Execute(ctx, CommandRemove, json.RawMessage(`["file:///work/proj/f.ts"]`))
		assert.True(t, errors.Is(err, ErrInvalidArguments))
	})

	t.Run("toggle", func(t *testing.T) {
		e := newTestEngine(newHost(), newFakeStore())
		require.NoError(t, e.Execute(ctx, CommandToggle, nil))
		assert.True(t, e.Visible())
	})

	t.Run("link arguments round trip into remove", func(t *testing.T) {
		f := newEditor("f.ts", "x", "y")
		host := newHost(f)
		st := newFakeStore()
		st.put("f.ts", 2, "drop me")
		e := newTestEngine(host, st)

		link, err := CommandLink(CommandRemove, MutationArgs{URI: f.ID(), Row: 2})
		require.NoError(t, err)
		id, args, err := ParseCommandLink(link)
		require.NoError(t, err)
		raw, err := json.Marshal(args)
		require.NoError(t, err)

		require.NoError(t, e.Execute(ctx, id, raw))
		assert.Equal(t, []string{"remove f.ts:2"}, st.muts())
	})

	t.Run("dispatch table covers every command", func(t *testing.T) {
		e := newTestEngine(newHost(), newFakeStore())
		table := e.Commands()
		for _, id := range CommandIDs() {
			assert.Contains(t, table, id)
		}
	})
}

func TestReconfigure(t *testing.T) {
	ctx := context.Background()
	f := newEditor("f.ts", "x")
	host := newHost(f)

	var built []store.Config
	st := newFakeStore()
	st.put("f.ts", 1, "kept")
	cache := &fakeCache{}
	e := newTestEngine(host, st, WithCache(cache),
		WithStoreFactory(func(cfg store.Config, _ *slog.Logger) StoreClient {
			built = append(built, cfg)
			return st
		}))
	e.Toggle(ctx)
	calls := host.setCalls

	cfg := config.Default(testRoot)
	cfg.BinaryPath = "/opt/ant"
	require.NoError(t, e.Reconfigure(ctx, cfg))

	assert.True(t, e.Visible(), "double flip keeps the toggle value")
	require.Len(t, built, 2)
	assert.Equal(t, "/opt/ant", built[1].BinaryPath)
	assert.Equal(t, 1, cache.invalidateAll)
	assert.Equal(t, calls+2, host.setCalls, "one clear and one repaint")
	assert.Len(t, host.decos(f), 1)

	t.Run("missing root", func(t *testing.T) {
		err := e.Reconfigure(ctx, config.Config{BinaryPath: "ant"})
		assert.True(t, errors.Is(err, config.ErrConfigurationMissing))
		assert.Contains(t, host.shown(), MsgMissingRoot)
		assert.Equal(t, testRoot, e.Root())
	})
}

func TestSequencer(t *testing.T) {
	s := newSequencer()
	a := s.next("a")
	b := s.next("a")
	assert.False(t, s.current("a", a))
	assert.True(t, s.current("a", b))
	assert.True(t, s.current("b", 0))

	s.forget("a")
	assert.False(t, s.current("a", b))

	c := s.next("a")
	assert.Greater(t, c, b, "numbers keep growing after forget")
	assert.False(t, s.current("a", a))
	assert.True(t, s.current("a", c))
}

func TestToggle_HideClearsEditorsThatLeftView(t *testing.T) {
	ctx := context.Background()
	a := newEditor("a.go", "x")
	b := newEditor("b.go", "y")
	host := newHost(a, b)
	st := newFakeStore()
	st.put("b.go", 1, "scrolled away")
	e := newTestEngine(host, st)

	require.True(t, e.Toggle(ctx))
	require.Len(t, host.decos(b), 1)

	host.mu.Lock()
	host.visible = []Editor{a}
	host.mu.Unlock()

	require.False(t, e.Toggle(ctx))
	assert.Empty(t, host.decos(b))

	// A second hide/show cycle does not revisit b.
	require.True(t, e.Toggle(ctx))
	calls := host.setCalls
	require.False(t, e.Toggle(ctx))
	assert.Equal(t, calls+1, host.setCalls)
}

func TestToggle_RespectsCancelledContext(t *testing.T) {
	a := newEditor("a.go", "x")
	b := newEditor("b.go", "y")
	host := newHost(a, b)
	st := newFakeStore()
	e := newTestEngine(host, st)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	cancel()
	assert.True(t, e.Toggle(ctx))
	assert.Zero(t, st.lists())
}

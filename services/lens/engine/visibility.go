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

import "sync"

// Visibility is the overlay on/off switch.
//
// The zero value is Hidden. One Visibility is owned by one engine; it is
// passed in rather than kept as package state so hosts and tests can
// observe it.
//
// Thread Safety: Safe for concurrent use.
type Visibility struct {
	mu      sync.Mutex
	visible bool
}

// Visible reports whether the overlay is shown.
func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Flip inverts the state and returns the new value.
func (v *Visibility) Flip() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = !v.visible
	return v.visible
}

// sequencer hands out request numbers so a slow refresh cannot overwrite a
// newer one. Numbers come from one engine-wide counter and never repeat, so
// a forgotten and reopened editor cannot reuse a number still in flight.
type sequencer struct {
	mu     sync.Mutex
	last   uint64
	latest map[string]uint64
}

func newSequencer() *sequencer {
	return &sequencer{latest: make(map[string]uint64)}
}

// next starts a new request for id and returns its number.
func (s *sequencer) next(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	s.latest[id] = s.last
	return s.last
}

// current reports whether n is still the latest request for id.
func (s *sequencer) current(id string, n uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[id] == n
}

// forget drops the entry of a closed editor. Any number handed out earlier
// no longer matches, and later numbers are always larger.
func (s *sequencer) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, id)
}

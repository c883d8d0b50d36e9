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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// CommandID identifies a host-invocable command.
type CommandID string

const (
	// CommandToggle flips overlay visibility. Takes no arguments.
	CommandToggle CommandID = "ant.toggle"

	// CommandAdd prompts for text and adds an annotation.
	CommandAdd CommandID = "ant.add"

	// CommandRemove removes the annotation at a row.
	CommandRemove CommandID = "ant.remove"
)

// CommandIDs lists every command in registration order.
func CommandIDs() []CommandID {
	return []CommandID{CommandToggle, CommandAdd, CommandRemove}
}

// CommandHandler runs one command. args is nil when the command was
// invoked without arguments.
type CommandHandler func(ctx context.Context, args *MutationArgs) error

// MutationArgs targets one row of one document.
//
// On the wire it is the JSON tuple [uri, row], which is also the argument
// list a host passes back when a command link is invoked.
type MutationArgs struct {
	// URI is the document URI.
	URI string

	// Row is the 1-based store row.
	Row int
}

// MarshalJSON encodes args as [uri, row].
func (a MutationArgs) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{a.URI, a.Row})
}

// UnmarshalJSON decodes [uri, row].
func (a *MutationArgs) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("%w: want [uri, row], got %d elements", ErrInvalidArguments, len(tuple))
	}

	var uri string
	if err := json.Unmarshal(tuple[0], &uri); err != nil || uri == "" {
		return fmt.Errorf("%w: uri must be a non-empty string", ErrInvalidArguments)
	}
	var row int
	if err := json.Unmarshal(tuple[1], &row); err != nil {
		return fmt.Errorf("%w: row must be an integer", ErrInvalidArguments)
	}
	if row < 1 {
		return fmt.Errorf("%w: row %d is not 1-based", ErrInvalidArguments, row)
	}

	a.URI = uri
	a.Row = row
	return nil
}

// DecodeArgs decodes a command argument list.
//
// Empty input, null and [] mean "no arguments" and yield nil.
func DecodeArgs(raw json.RawMessage) (*MutationArgs, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil, nil
	}
	var args MutationArgs
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, err
	}
	return &args, nil
}

// CommandLink builds the command URI a host renders as a clickable link:
//
//	command:<id>?<encodeURIComponent(JSON [uri, row])>
func CommandLink(id CommandID, args MutationArgs) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode %s arguments: %w", id, err)
	}
	return "command:" + string(id) + "?" + encodeURIComponent(string(payload)), nil
}

// ParseCommandLink reverses CommandLink.
func ParseCommandLink(link string) (CommandID, *MutationArgs, error) {
	rest, ok := strings.CutPrefix(link, "command:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a command link: %q", ErrInvalidArguments, link)
	}
	id, query, _ := strings.Cut(rest, "?")

	payload, err := url.PathUnescape(query)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	args, err := DecodeArgs(json.RawMessage(payload))
	if err != nil {
		return "", nil, err
	}
	return CommandID(id), args, nil
}

// encodeURIComponent escapes s the way browsers and editor hosts do:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded and
// spaces become %20.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return uriComponentFixups.Replace(escaped)
}

var uriComponentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Annotation is one commentary string bound to a row of a source file.
type Annotation struct {
	// Text is the markdown-capable annotation body.
	Text string `json:"annotation"`

	// Source is the file path relative to the source root.
	Source string `json:"source"`

	// Row is the 1-indexed line the annotation is attached to.
	Row int `json:"row"`
}

// listSchema describes the output of `list --json`.
const listSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["annotation", "source", "row"],
		"properties": {
			"annotation": {"type": "string"},
			"source": {"type": "string"},
			"row": {"type": "integer"}
		}
	}
}`

var (
	listSchemaOnce     sync.Once
	listSchemaCompiled *jsonschema.Schema
	listSchemaErr      error
)

func compiledListSchema() (*jsonschema.Schema, error) {
	listSchemaOnce.Do(func() {
		listSchemaCompiled, listSchemaErr = jsonschema.CompileString("antlens:///store/list.json", listSchema)
	})
	return listSchemaCompiled, listSchemaErr
}

// ParseList validates and decodes `list --json` output.
//
// Description:
//
//	The payload is decoded generically, checked against the list schema,
//	then decoded into Annotations. Nothing here panics on bad input.
//
// Inputs:
//
//	data - Raw stdout of the store.
//
// Outputs:
//
//	[]Annotation - Decoded annotations (never nil on success).
//	error - Non-nil if the payload is not valid JSON or fails the schema.
func ParseList(data []byte) ([]Annotation, error) {
	schema, err := compiledListSchema()
	if err != nil {
		return nil, fmt.Errorf("compile list schema: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty output")
	}

	var instance interface{}
	if err := json.Unmarshal(trimmed, &instance); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	annotations := make([]Annotation, 0)
	if err := json.Unmarshal(trimmed, &annotations); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return annotations, nil
}

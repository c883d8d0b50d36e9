// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coord converts between editor coordinates and annotation store
// coordinates.
//
// Editors address lines 0-indexed and files by absolute path or file:// URI.
// The store addresses rows 1-indexed and files by path relative to the
// configured source root.
package coord

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// Sentinel errors for coordinate conversion.
var (
	// ErrOutsideRoot indicates a file that does not live under the source root.
	ErrOutsideRoot = errors.New("path is outside the annotation root")

	// ErrNotFileURI indicates a URI whose scheme is not "file".
	ErrNotFileURI = errors.New("not a file uri")

	// ErrEmptyRoot indicates an empty source root.
	ErrEmptyRoot = errors.New("empty source root")
)

// ToStoreRelative returns absPath relative to root in the form the store
// expects.
//
// Description:
//
//	Computes the relative path with filepath.Rel after cleaning both inputs.
//	Paths that escape root (or are on another volume) are rejected rather
//	than passed through.
//
// Inputs:
//
//	absPath - Absolute path of the file being inspected.
//	root - Absolute source root.
//
// Outputs:
//
//	string - Path relative to root, using the OS separator.
//	error - ErrOutsideRoot or ErrEmptyRoot.
func ToStoreRelative(absPath, root string) (string, error) {
	if root == "" {
		return "", ErrEmptyRoot
	}
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("%w: %s is not absolute", ErrOutsideRoot, absPath)
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(absPath))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOutsideRoot, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, absPath)
	}
	return rel, nil
}

// ToStoreRow converts a 0-based editor line index to a 1-based store row.
func ToStoreRow(line int) int {
	return line + 1
}

// ToEditorLine converts a 1-based store row to a 0-based editor line index.
func ToEditorLine(row int) int {
	return row - 1
}

// PathFromURI converts a file:// URI into an absolute file system path.
//
// Plain absolute paths are accepted unchanged so callers can pass either.
func PathFromURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("%w: empty", ErrNotFileURI)
	}
	if filepath.IsAbs(uri) {
		return filepath.Clean(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrNotFileURI, uri)
	}

	p := u.Path
	// file:///C:/x arrives as "/C:/x" on Windows.
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.Clean(filepath.FromSlash(p)), nil
}

// URIFromPath converts an absolute path into a file:// URI.
func URIFromPath(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

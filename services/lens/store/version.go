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
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// MinStoreVersion is the oldest store release whose list supports --json.
const MinStoreVersion = "v0.1.0"

// Version runs `<binary> --version` and returns the reported version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.exec(ctx, "version", "", []string{"--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// CheckVersion verifies the store is at least MinStoreVersion.
//
// Description:
//
//	Versions that are not valid semver (with or without a leading "v")
//	are accepted as-is since local builds often report a commit hash.
//
// Outputs:
//
//	string - The version the store reported.
//	error - ErrUnsupportedVersion if older than MinStoreVersion, or the
//	        *Failure from the version call.
func (c *Client) CheckVersion(ctx context.Context) (string, error) {
	reported, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return reported, CompareVersion(reported)
}

// CompareVersion returns ErrUnsupportedVersion if reported is valid semver
// and older than MinStoreVersion.
func CompareVersion(reported string) error {
	v := canonicalVersion(reported)
	if !semver.IsValid(v) {
		return nil
	}
	if semver.Compare(v, MinStoreVersion) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrUnsupportedVersion, reported, MinStoreVersion)
	}
	return nil
}

func canonicalVersion(s string) string {
	s = strings.TrimSpace(s)
	// "ant 0.2.0" style output keeps the last field.
	if fields := strings.Fields(s); len(fields) > 1 {
		s = fields[len(fields)-1]
	}
	if s != "" && !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}

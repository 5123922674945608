// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package naming derives provider-safe resource names from component identifiers.
package naming

import (
	"crypto"
	_ "crypto/sha256"
	"strings"

	"github.com/google/build-reconciler/internal/hashext"
)

// hashLen is the number of hex characters appended to truncated names.
const hashLen = 8

// SafeName joins the non-empty identifiers with '-', replaces characters outside
// [A-Za-z0-9_-] and bounds the result to maxChars. Truncated names carry a short
// digest of the full name so distinct long inputs stay distinct.
func SafeName(maxChars int, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = sanitize(p); p != "" {
			kept = append(kept, p)
		}
	}
	name := strings.Join(kept, "-")
	if maxChars <= 0 || len(name) <= maxChars {
		return name
	}
	h := hashext.NewTypedHash(crypto.SHA256)
	h.Write([]byte(name))
	suffix := h.Hex()[:hashLen]
	if maxChars <= hashLen+1 {
		return suffix[:min(maxChars, hashLen)]
	}
	head := strings.TrimRight(name[:maxChars-hashLen-1], "-")
	return head + "-" + suffix
}

func sanitize(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Namer adapts SafeName to the reconciler's naming interface.
type Namer struct{}

// SafeName implements reconcile.Namer.
func (Namer) SafeName(project, repo, component string, maxChars int) string {
	return SafeName(maxChars, project, repo, component)
}

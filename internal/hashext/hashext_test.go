// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package hashext

import (
	"crypto"
	_ "crypto/md5"
	_ "crypto/sha256"
	"testing"
)

func TestTypedHashHex(t *testing.T) {
	h := NewTypedHash(crypto.MD5)
	if h.Algorithm != crypto.MD5 {
		t.Errorf("Algorithm = %v, want MD5", h.Algorithm)
	}
	h.Write([]byte("ab"))
	h.Write([]byte("c"))
	if got, want := h.Hex(), "900150983cd24fb0d6963f7d28e17f72"; got != want {
		t.Errorf("Hex() = %s, want %s", got, want)
	}
	h.Reset()
	if got, want := h.Hex(), "d41d8cd98f00b204e9800998ecf8427e"; got != want {
		t.Errorf("Hex() after Reset = %s, want %s", got, want)
	}
}

func TestTypedHashSHA256(t *testing.T) {
	h := NewTypedHash(crypto.SHA256)
	h.Write([]byte("abc"))
	if got, want := h.Hex(), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Errorf("Hex() = %s, want %s", got, want)
	}
}

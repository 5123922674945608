// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package state persists the output of each reconciliation for use by the next one.
package state

import (
	"context"
	"crypto"
	_ "crypto/sha256"
	"encoding/json"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/go-git/go-billy/v5"
	"github.com/google/build-reconciler/internal/hashext"
	"github.com/google/build-reconciler/pkg/naming"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/pkg/errors"
)

// Store reads and writes recorded state keyed by component identity.
type Store interface {
	// Load returns the recorded state, or nil with no error if none exists.
	Load(ctx context.Context, id reconcile.Identity) (*reconcile.PreviousState, error)
	Save(ctx context.Context, id reconcile.Identity, s *reconcile.PreviousState) error
}

// Key returns the relative object path at which the state for id is recorded.
// Sanitized names can coincide, so the file name carries a digest of the raw identity.
func Key(id reconcile.Identity) string {
	parts := []string{id.Project, id.Repo, id.Component}
	h := hashext.NewTypedHash(crypto.SHA256)
	h.Write([]byte(strings.Join(parts, "\x00")))
	for i, p := range parts {
		if parts[i] = naming.SafeName(0, p); parts[i] == "" {
			parts[i] = "_"
		}
	}
	return path.Join(parts...) + "-" + h.Hex()[:8] + ".json"
}

func decode(r io.Reader) (*reconcile.PreviousState, error) {
	var s reconcile.PreviousState
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding state")
	}
	return &s, nil
}

func encode(w io.Writer, s *reconcile.PreviousState) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(s), "encoding state")
}

// FilesystemStore records state as JSON files in a billy.Filesystem.
type FilesystemStore struct {
	fs billy.Filesystem
}

var _ Store = &FilesystemStore{}

// NewFilesystemStore creates a new FilesystemStore.
func NewFilesystemStore(fs billy.Filesystem) *FilesystemStore {
	return &FilesystemStore{fs: fs}
}

func (s *FilesystemStore) Load(ctx context.Context, id reconcile.Identity) (*reconcile.PreviousState, error) {
	p := filepath.FromSlash(Key(id))
	f, err := s.fs.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "opening %s", p)
	}
	defer f.Close()
	return decode(f)
}

func (s *FilesystemStore) Save(ctx context.Context, id reconcile.Identity, st *reconcile.PreviousState) error {
	p := filepath.FromSlash(Key(id))
	if err := s.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", p)
	}
	f, err := s.fs.Create(p)
	if err != nil {
		return errors.Wrapf(err, "creating %s", p)
	}
	if err := encode(f, st); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing %s", p)
}

// GCSStore records state as JSON objects in a GCS bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

var _ Store = &GCSStore{}

// NewGCSStore creates a GCSStore writing beneath location, given as "gs://bucket/prefix".
func NewGCSStore(client *gcs.Client, location string) *GCSStore {
	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(location, "gs://"), "/")
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) object(id reconcile.Identity) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, Key(id)))
}

func (s *GCSStore) Load(ctx context.Context, id reconcile.Identity) (*reconcile.PreviousState, error) {
	obj := s.object(id)
	r, err := obj.NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "creating GCS reader for %s", obj.ObjectName())
	}
	defer r.Close()
	return decode(r)
}

func (s *GCSStore) Save(ctx context.Context, id reconcile.Identity, st *reconcile.PreviousState) error {
	obj := s.object(id)
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if err := encode(w, st); err != nil {
		w.Close()
		return err
	}
	return errors.Wrapf(w.Close(), "writing %s", obj.ObjectName())
}

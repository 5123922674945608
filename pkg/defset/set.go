// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package defset loads component definitions from a directory tree or a git repository.
package defset

import (
	"context"
	"io/fs"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no definition exists for a component.
var ErrNotFound = errors.New("definition not found")

// DefinitionSet is a collection of component definitions.
type DefinitionSet interface {
	Get(ctx context.Context, component string) (reconcile.Definition, error)
}

// FilesystemDefinitionSet reads "<component>.yaml" files from a filesystem.
type FilesystemDefinitionSet struct {
	fs billy.Filesystem
}

var _ DefinitionSet = &FilesystemDefinitionSet{}

func NewFilesystemDefinitionSet(fs billy.Filesystem) *FilesystemDefinitionSet {
	return &FilesystemDefinitionSet{fs: fs}
}

// Path returns the location of the component's definition within the set.
func (s *FilesystemDefinitionSet) Path(component string) string {
	return path.Join("/", component+".yaml")
}

func (s *FilesystemDefinitionSet) Get(ctx context.Context, component string) (reconcile.Definition, error) {
	if component == "" || path.Base(component) != component {
		return nil, errors.Errorf("invalid component name %q", component)
	}
	p := s.Path(component)
	f, err := s.fs.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, component)
	} else if err != nil {
		return nil, errors.Wrapf(err, "opening %s", p)
	}
	defer f.Close()
	def := reconcile.Definition{}
	if err := yaml.NewDecoder(f).Decode(&def); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", p)
	}
	return def, nil
}

// Put writes a definition for the component, replacing any existing one.
func (s *FilesystemDefinitionSet) Put(ctx context.Context, component string, def reconcile.Definition) error {
	p := s.Path(component)
	f, err := s.fs.Create(p)
	if err != nil {
		return errors.Wrapf(err, "creating %s", p)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding %s", p)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding %s", p)
	}
	return f.Close()
}

// GitDefinitionSet is a FilesystemDefinitionSet over an in-memory clone of a repository.
type GitDefinitionSet struct {
	FilesystemDefinitionSet
	ref plumbing.Hash
}

// GitOptions configures the clone backing a GitDefinitionSet.
type GitOptions struct {
	git.CloneOptions
	// RelativePath is the directory within the repository holding definitions.
	RelativePath string
}

// NewGitDefinitionSet clones a repository and serves definitions from it.
// The remote HEAD is used when no ReferenceName is given.
func NewGitDefinitionSet(ctx context.Context, opts *GitOptions) (*GitDefinitionSet, error) {
	mfs := memfs.New()
	r, err := git.CloneContext(ctx, memory.NewStorage(), mfs, &opts.CloneOptions)
	if err != nil {
		return nil, errors.Wrap(err, "cloning repository")
	}
	head, err := r.Head()
	if err != nil {
		return nil, errors.Wrap(err, "resolving HEAD")
	}
	defs := billy.Filesystem(mfs)
	if opts.RelativePath != "" {
		if defs, err = mfs.Chroot(opts.RelativePath); err != nil {
			return nil, errors.Wrap(err, "making relative path")
		}
	}
	return &GitDefinitionSet{FilesystemDefinitionSet: FilesystemDefinitionSet{fs: defs}, ref: head.Hash()}, nil
}

// Ref returns the commit the definitions were read from.
func (s *GitDefinitionSet) Ref() plumbing.Hash {
	return s.ref
}

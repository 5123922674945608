// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/google/go-cmp/cmp"
)

func TestKey(t *testing.T) {
	for _, tc := range []struct {
		id   reconcile.Identity
		want string
	}{
		{reconcile.Identity{Project: "proj", Repo: "app", Component: "web"}, "proj/app/web-61cf7aeb.json"},
		{reconcile.Identity{Project: "a/b", Repo: "../x", Component: "c d"}, "a-b/x/c-d-87486f2c.json"},
		{reconcile.Identity{Component: "web"}, "_/_/web-7a1033df.json"},
	} {
		if got := Key(tc.id); got != tc.want {
			t.Errorf("Key(%+v) = %s, want %s", tc.id, got, tc.want)
		}
	}
}

func TestKeyDistinguishesSanitizedNames(t *testing.T) {
	a := reconcile.Identity{Project: "a b", Repo: "x", Component: "web"}
	b := reconcile.Identity{Project: "a-b", Repo: "x", Component: "web"}
	if Key(a) == Key(b) {
		t.Errorf("Key(%+v) == Key(%+v) = %s", a, b, Key(a))
	}
}

func TestFilesystemStoreKeepsSanitizedNamesApart(t *testing.T) {
	ctx := context.Background()
	s := NewFilesystemStore(memfs.New())
	a := reconcile.Identity{Project: "a b", Repo: "x", Component: "web"}
	b := reconcile.Identity{Project: "a-b", Repo: "x", Component: "web"}
	if err := s.Save(ctx, a, &reconcile.PreviousState{Properties: map[string]any{"name": "a"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, b)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load(%+v) = %+v, want nil", b, got)
	}
}

func TestFilesystemStore(t *testing.T) {
	ctx := context.Background()
	s := NewFilesystemStore(memfs.New())
	id := reconcile.Identity{Project: "proj", Repo: "app", Component: "web"}
	got, err := s.Load(ctx, id)
	if err != nil || got != nil {
		t.Fatalf("Load() on empty store = %+v, %v; want nil, nil", got, err)
	}
	want := &reconcile.PreviousState{
		RenderedDefinition: reconcile.Definition{"s3_bucket": "b", "build_commands": []any{"make"}},
		Properties:         map[string]any{"name": "proj-app-web", "buildspec_hash": "abc"},
		Links:              map[string]string{"Codebuild Project": "https://example.com"},
	}
	if err := s.Save(ctx, id, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err = s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if err := s.Save(ctx, id, &reconcile.PreviousState{}); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	got, err = s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(&reconcile.PreviousState{}, got); diff != "" {
		t.Errorf("Load() after overwrite mismatch (-want +got):\n%s", diff)
	}
}

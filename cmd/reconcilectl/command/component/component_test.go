// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/google/build-reconciler/internal/api/reconcileservice"
	"github.com/google/build-reconciler/internal/httpx"
	"github.com/google/build-reconciler/pkg/act/api"
	"github.com/google/build-reconciler/pkg/act/cli"
	"github.com/google/build-reconciler/pkg/project"
	"github.com/google/build-reconciler/pkg/project/projecttest"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/google/go-cmp/cmp"
)

const webDefinition = `s3_bucket: src-bucket
s3_object: app/web.zip
runtime_versions:
  python: "3.9"
build_commands:
  - make
`

func TestValidation(t *testing.T) {
	valid := Config{Operation: reconcile.OpUpsert, Component: "web", Project: "proj", Repo: "app", Definitions: "defs", Output: "summary"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing component", mutate: func(c *Config) { c.Component = "" }, wantErr: true},
		{name: "missing project", mutate: func(c *Config) { c.Project = "" }, wantErr: true},
		{name: "missing repo", mutate: func(c *Config) { c.Repo = "" }, wantErr: true},
		{name: "missing definitions", mutate: func(c *Config) { c.Definitions = "" }, wantErr: true},
		{name: "unknown operation", mutate: func(c *Config) { c.Operation = "replace" }, wantErr: true},
		{name: "state dir with api", mutate: func(c *Config) { c.API = "http://localhost:8080"; c.StateDir = "state" }, wantErr: true},
		{name: "unknown output", mutate: func(c *Config) { c.Output = "yaml" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeDefinitions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "web.yaml"), []byte(webDefinition), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func localDeps(fake project.API) *Deps {
	return &Deps{
		IO: cli.IO{Out: io.Discard, Err: io.Discard},
		NewAPI: func(context.Context, string) (project.API, error) {
			return fake, nil
		},
	}
}

func TestHandlerLocal(t *testing.T) {
	ctx := context.Background()
	fake := projecttest.NewFakeAPI()
	deps := localDeps(fake)
	cfg := Config{
		Operation:   reconcile.OpUpsert,
		Component:   "web",
		Project:     "proj",
		Repo:        "app",
		Definitions: writeDefinitions(t),
		StateDir:    t.TempDir(),
		Output:      "summary",
	}
	for _, step := range []struct {
		op     reconcile.Operation
		dryRun bool
		want   reconcile.Outcome
	}{
		{reconcile.OpUpsert, false, reconcile.OutcomeCreated},
		{reconcile.OpUpsert, false, reconcile.OutcomeNoOp},
		{reconcile.OpDelete, true, reconcile.OutcomeNoOp},
		{reconcile.OpDelete, false, reconcile.OutcomeDeleted},
	} {
		cfg.Operation, cfg.DryRun = step.op, step.dryRun
		resp, err := Handler(ctx, cfg, deps)
		if err != nil {
			t.Fatalf("Handler(%s) error = %v", step.op, err)
		}
		if !resp.Succeeded() {
			t.Fatalf("Handler(%s) failed: %+v", step.op, resp)
		}
		if resp.Outcome != step.want {
			t.Errorf("Handler(%s) Outcome = %q, want %q", step.op, resp.Outcome, step.want)
		}
	}
	want := []string{"Get(proj-app-web)", "Create(proj-app-web)", "Get(proj-app-web)", "Delete(proj-app-web)"}
	if diff := cmp.Diff(want, fake.Calls()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerMissingDefinition(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Operation: reconcile.OpUpsert, Component: "api", Project: "proj", Repo: "app", Definitions: writeDefinitions(t), Output: "summary"}
	if _, err := Handler(ctx, cfg, localDeps(projecttest.NewFakeAPI())); err == nil {
		t.Error("Handler() upsert without definition succeeded, want error")
	}
	cfg.Operation = reconcile.OpDelete
	fake := projecttest.NewFakeAPI()
	resp, err := Handler(ctx, cfg, localDeps(fake))
	if err != nil {
		t.Fatalf("Handler() delete error = %v", err)
	}
	if resp.Outcome != reconcile.OutcomeDeleted {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, reconcile.OutcomeDeleted)
	}
	if diff := cmp.Diff([]string{"Delete(proj-app-api)"}, fake.Calls()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerRemote(t *testing.T) {
	fake := projecttest.NewFakeAPI()
	serviceDeps := &reconcileservice.ReconcileDeps{Engine: &reconcile.Engine{API: fake, Log: logr.Discard()}}
	initDeps := func(context.Context) (*reconcileservice.ReconcileDeps, error) { return serviceDeps, nil }
	mux := http.NewServeMux()
	mux.HandleFunc("/reconcile", api.Handler(initDeps, reconcileservice.Reconcile))
	mux.HandleFunc("/plan", api.Handler(initDeps, reconcileservice.Plan))
	server := httptest.NewServer(mux)
	defer server.Close()
	deps := &Deps{
		IO: cli.IO{Out: io.Discard, Err: io.Discard},
		NewClient: func(context.Context, *url.URL) (httpx.BasicClient, error) {
			return server.Client(), nil
		},
	}
	cfg := Config{Operation: reconcile.OpUpsert, DryRun: true, Component: "web", Project: "proj", Repo: "app", Definitions: writeDefinitions(t), API: server.URL, Output: "json"}
	plan, err := Handler(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("Handler() plan error = %v", err)
	}
	if got := plan.Plan.String(); got != "create(proj-app-web)" {
		t.Errorf("Plan = %s, want create(proj-app-web)", got)
	}
	cfg.DryRun = false
	resp, err := Handler(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if resp.Outcome != reconcile.OutcomeCreated {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, reconcile.OutcomeCreated)
	}
	if fake.Project("proj-app-web") == nil {
		t.Error("project was not created")
	}
}

func TestClientUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()
	deps, err := InitDeps(context.Background())
	if err != nil {
		t.Fatalf("InitDeps() error = %v", err)
	}
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	c, err := deps.NewClient(context.Background(), u)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if want := "reconcilectl/" + Version; got != want {
		t.Errorf("User-Agent = %q, want %q", got, want)
	}
}

func TestSummary(t *testing.T) {
	color.NoColor = true
	for _, tc := range []struct {
		name    string
		resp    *reconcile.Response
		want    []string
		wantErr bool
	}{
		{
			name: "success",
			resp: &reconcile.Response{
				Outcome:    reconcile.OutcomeCreated,
				Plan:       reconcile.Plan{{Kind: reconcile.StepCreate, Name: "proj-app-web"}},
				Properties: map[string]any{"name": "proj-app-web"},
				Links:      map[string]string{reconcile.LinkProject: "https://console.example.com"},
				Logs:       []reconcile.LogEntry{{Message: "Invalid build_container_size, using LARGE", Warning: true, Details: map[string]any{"build_container_size": "huge"}}},
			},
			want: []string{
				"warning: Invalid build_container_size, using LARGE build_container_size=huge",
				"plan: create(proj-app-web)",
				"result: created",
				"name = proj-app-web",
				"Codebuild Project: https://console.example.com",
			},
		},
		{
			name: "retry",
			resp: &reconcile.Response{RetryAfterSeconds: 15, RetryReason: "throttled"},
			want: []string{"plan: no-op", "result: retry after 15s: throttled"},
		},
		{
			name:    "failure",
			resp:    &reconcile.Response{Error: &reconcile.Error{Code: "InvalidInputException", Message: "bad role"}},
			want:    []string{"result: InvalidInputException: bad role"},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Summary(cli.IO{Out: &out}, tc.resp)
			if (err != nil) != tc.wantErr {
				t.Errorf("Summary() error = %v, wantErr %v", err, tc.wantErr)
			}
			for _, w := range tc.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("Summary() output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcileservice

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-logr/logr/testr"
	"github.com/google/build-reconciler/internal/awsctx"
	"github.com/google/build-reconciler/internal/history"
	"github.com/google/build-reconciler/internal/state"
	"github.com/google/build-reconciler/pkg/act"
	"github.com/google/build-reconciler/pkg/act/api"
	"github.com/google/build-reconciler/pkg/project"
	"github.com/google/build-reconciler/pkg/project/projecttest"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testID = reconcile.Identity{Project: "proj", Repo: "app", Component: "web"}

func testDef() reconcile.Definition {
	return reconcile.Definition{
		"s3_bucket":        "src-bucket",
		"s3_object":        "app/web.zip",
		"runtime_versions": map[string]any{"python": "3.9"},
		"build_commands":   []any{"make"},
	}
}

type queued struct {
	URL   string
	Req   reconcile.Request
	Delay time.Duration
}

type fakeQueue struct {
	added []queued
}

func (q *fakeQueue) Add(ctx context.Context, url string, msg act.Input, delay time.Duration) (*taskspb.Task, error) {
	q.added = append(q.added, queued{URL: url, Req: msg.(reconcile.Request), Delay: delay})
	return &taskspb.Task{}, nil
}

type fakeRecorder struct {
	attempts []history.Attempt
}

func (r *fakeRecorder) Record(ctx context.Context, a history.Attempt) error {
	r.attempts = append(r.attempts, a)
	return nil
}

func fixedAccount(context.Context) (awsctx.Context, error) {
	return awsctx.Context{Account: "123456789012", Region: "us-east-1"}, nil
}

func TestReconcileRecordsState(t *testing.T) {
	ctx := context.Background()
	fake := projecttest.NewFakeAPI()
	store := state.NewFilesystemStore(memfs.New())
	rec := &fakeRecorder{}
	deps := &ReconcileDeps{
		Engine:     &reconcile.Engine{API: fake, Log: testr.New(t)},
		AWSContext: fixedAccount,
		State:      store,
		History:    rec,
	}
	req := reconcile.Request{Operation: reconcile.OpUpsert, Definition: testDef(), Identity: testID}
	first, err := Reconcile(ctx, req, deps)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if first.Outcome != reconcile.OutcomeCreated {
		t.Fatalf("Outcome = %s, want %s", first.Outcome, reconcile.OutcomeCreated)
	}
	if got, want := first.Properties[reconcile.PropArn], project.ARN("us-east-1", "123456789012", "proj-app-web"); got != want {
		t.Errorf("arn = %v, want %s", got, want)
	}
	saved, err := store.Load(ctx, testID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.Name() != "proj-app-web" {
		t.Errorf("saved name = %q, want proj-app-web", saved.Name())
	}
	second, err := Reconcile(ctx, req, deps)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if second.Outcome != reconcile.OutcomeNoOp {
		t.Errorf("second Outcome = %s, want %s", second.Outcome, reconcile.OutcomeNoOp)
	}
	want := []string{"Get(proj-app-web)", "Create(proj-app-web)", "Get(proj-app-web)"}
	if diff := cmp.Diff(want, fake.Calls()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
	if len(rec.attempts) != 2 {
		t.Fatalf("recorded %d attempts, want 2", len(rec.attempts))
	}
	if rec.attempts[0].Outcome != reconcile.OutcomeCreated || rec.attempts[1].Outcome != reconcile.OutcomeNoOp {
		t.Errorf("recorded outcomes = %s, %s", rec.attempts[0].Outcome, rec.attempts[1].Outcome)
	}
}

func TestReconcileSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	mock := &projecttest.MockAPI{
		GetFunc: func(ctx context.Context, name string) (*project.Project, error) {
			return nil, &project.APIError{Code: "ThrottlingException", Message: "slow down"}
		},
	}
	store := state.NewFilesystemStore(memfs.New())
	q := &fakeQueue{}
	deps := &ReconcileDeps{
		Engine:     &reconcile.Engine{API: mock, Log: testr.New(t)},
		AWSContext: fixedAccount,
		State:      store,
		Queue:      q,
		SelfURL:    "https://reconciler.example.com/reconcile",
	}
	req := reconcile.Request{Operation: reconcile.OpUpsert, Definition: testDef(), Identity: testID}
	resp, err := Reconcile(ctx, req, deps)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if resp.RetryAfterSeconds != 30 {
		t.Errorf("RetryAfterSeconds = %d, want 30", resp.RetryAfterSeconds)
	}
	want := []queued{{URL: "https://reconciler.example.com/reconcile", Req: req, Delay: 30 * time.Second}}
	if diff := cmp.Diff(want, q.added); diff != "" {
		t.Errorf("queued mismatch (-want +got):\n%s", diff)
	}
	if saved, err := store.Load(ctx, testID); err != nil || saved != nil {
		t.Errorf("Load() = %+v, %v; want nothing saved", saved, err)
	}
}

func TestReconcileAccountUnavailable(t *testing.T) {
	deps := &ReconcileDeps{
		Engine: &reconcile.Engine{API: projecttest.NewFakeAPI(), Log: testr.New(t)},
		AWSContext: func(context.Context) (awsctx.Context, error) {
			return awsctx.Context{}, errors.New("no credentials")
		},
	}
	req := reconcile.Request{Operation: reconcile.OpUpsert, Definition: testDef(), Identity: testID}
	_, err := Reconcile(context.Background(), req, deps)
	if got := status.Code(err); got != codes.Unavailable {
		t.Errorf("status.Code(err) = %s, want %s", got, codes.Unavailable)
	}
}

func TestPlanDoesNotMutate(t *testing.T) {
	fake := projecttest.NewFakeAPI()
	deps := &ReconcileDeps{Engine: &reconcile.Engine{API: fake, Log: testr.New(t)}}
	req := reconcile.Request{Operation: reconcile.OpUpsert, Definition: testDef(), Identity: testID}
	resp, err := Plan(context.Background(), req, deps)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if got, want := resp.Plan.String(), "create(proj-app-web)"; got != want {
		t.Errorf("Plan = %s, want %s", got, want)
	}
	if diff := cmp.Diff([]string{"Get(proj-app-web)"}, fake.Calls()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerRetryAfterHeader(t *testing.T) {
	mock := &projecttest.MockAPI{
		GetFunc: func(ctx context.Context, name string) (*project.Project, error) {
			return nil, errors.New("connection reset")
		},
	}
	deps := &ReconcileDeps{Engine: &reconcile.Engine{API: mock, Log: testr.New(t)}}
	h := api.Handler(func(context.Context) (*ReconcileDeps, error) { return deps, nil }, Reconcile)
	body, err := json.Marshal(reconcile.Request{Operation: reconcile.OpUpsert, Definition: testDef(), Identity: testID})
	if err != nil {
		t.Fatal(err)
	}
	rw := httptest.NewRecorder()
	h(rw, httptest.NewRequest(http.MethodPost, "/reconcile", bytes.NewReader(body)))
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rw.Code, http.StatusOK, rw.Body.String())
	}
	if got := rw.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	var resp reconcile.Response
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RetryReason == "" || resp.Progress != 10 {
		t.Errorf("response = %+v, want retry reason and progress 10", resp)
	}
}

func TestVersion(t *testing.T) {
	t.Setenv("K_REVISION", "")
	resp, err := Version(context.Background(), VersionRequest{}, &VersionDeps{BuildVersion: "v1.2.3"})
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if resp.Version != "v1.2.3" {
		t.Errorf("Version = %q, want v1.2.3", resp.Version)
	}
	t.Setenv("K_REVISION", "reconciler-00042")
	resp, _ = Version(context.Background(), VersionRequest{}, &VersionDeps{BuildVersion: "v1.2.3"})
	if resp.Version != "reconciler-00042" {
		t.Errorf("Version = %q, want reconciler-00042", resp.Version)
	}
}

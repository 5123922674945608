// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package reconcile converges a single build project onto a caller-supplied definition.
package reconcile

import (
	"context"
	"fmt"
	"maps"
	"runtime/debug"

	"github.com/go-logr/logr"
	"github.com/google/build-reconciler/pkg/project"
	"github.com/pkg/errors"
)

// Engine reconciles requests against a provider.
type Engine struct {
	API         project.API
	Resolver    Resolver
	Namer       Namer
	ServiceRole string
	Log         logr.Logger
}

func (e *Engine) options() CompileOptions {
	return CompileOptions{ServiceRole: e.ServiceRole, Resolver: e.Resolver, Namer: e.Namer}
}

// Reconcile converges the project described by req and reports the result.
// Every failure, including panics, is reported in the Response.
func (e *Engine) Reconcile(ctx context.Context, req Request) *Response {
	resp := e.do(ctx, req, true)
	if resp.Succeeded() {
		state := &PreviousState{
			Properties: maps.Clone(resp.Properties),
			Links:      maps.Clone(resp.Links),
		}
		if req.Operation == OpUpsert {
			state.RenderedDefinition = req.Definition
		}
		resp.State = state
	}
	return resp
}

// Preview computes the plan for req without calling any mutating provider operation.
func (e *Engine) Preview(ctx context.Context, req Request) *Response {
	return e.do(ctx, req, false)
}

func (e *Engine) do(ctx context.Context, req Request, apply bool) (resp *Response) {
	t := NewTracker(e.Log.WithValues("operation", string(req.Operation), "component", req.Identity.Component), req.PreviousState)
	defer func() {
		if r := recover(); r != nil {
			t.Error(fmt.Errorf("panic: %v", r), "Unexpected internal error", "stack", string(debug.Stack()))
			t.Fail(CodeInternal, fmt.Sprintf("internal error: %v", r), 0)
			resp = t.Response()
		}
	}()
	if err := e.run(ctx, req, t, apply); err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			t.Fail(CodeConfiguration, cerr.Error(), 0)
		} else {
			t.Error(err, "Unexpected internal error")
			t.Fail(CodeInternal, err.Error(), 0)
		}
	}
	return t.Response()
}

// run drives a single reconciliation. Returned errors are unexpected or configuration
// failures; provider failures are recorded on t.
func (e *Engine) run(ctx context.Context, req Request, t *Tracker, apply bool) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.Operation == OpUpsert {
		same, err := Unchanged(req.Definition, req.PreviousState)
		if err != nil {
			return err
		}
		if same {
			t.Log("Full Trust, No Change")
			t.ReplaceOutput(req.PreviousState.Properties, req.PreviousState.Links)
			return nil
		}
	}
	var (
		compiled *Compiled
		name     string
		err      error
	)
	if req.Operation == OpDelete {
		name, err = ResolveName(req.Definition, req.Identity, e.options())
	} else {
		compiled, err = Compile(req.Definition, req.Identity, e.options(), t)
		if compiled != nil {
			name = compiled.Spec.Name
			t.Log("Compiled desired state", "name", name, PropFingerprint, compiled.Fingerprint)
		}
	}
	if err != nil {
		return err
	}
	var live *project.Project
	if req.Operation == OpUpsert {
		live, err = e.API.Get(ctx, name)
		if err != nil {
			t.Error(err, "Failed to fetch project", "name", name)
			t.Retry(errors.Wrapf(err, "fetching %s", name), RetryAfterDefault, progressGet)
			return nil
		}
	}
	var desired *project.Spec
	if compiled != nil {
		desired = compiled.Spec
	}
	plan, err := PlanChanges(req.Operation, name, desired, live, req.PreviousState, t)
	if err != nil {
		return err
	}
	t.setPlan(plan)
	if !apply {
		return nil
	}
	x := &executor{api: e.API, id: req.Identity, compiled: compiled, t: t}
	x.run(ctx, plan)
	if t.Failed() || req.Operation != OpUpsert || plan.Has(StepCreate) || plan.Has(StepUpdate) {
		return nil
	}
	// Nothing was applied; report the live project under the current properties.
	t.ReplaceOutput(compiled.Properties, nil)
	x.recordIdentity(live, name)
	return nil
}

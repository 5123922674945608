// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"time"

	"github.com/google/build-reconciler/pkg/project"
	"github.com/pkg/errors"
)

// executor applies a Plan through the provider API, recording results on a Tracker.
type executor struct {
	api      project.API
	id       Identity
	compiled *Compiled
	t        *Tracker
}

// run executes steps in order and stops at the first failure.
func (x *executor) run(ctx context.Context, plan Plan) {
	for _, s := range plan {
		switch s.Kind {
		case StepRenameCleanup:
			x.remove(ctx, s, RetryAfterRenameCleanup)
		case StepDelete:
			x.remove(ctx, s, RetryAfterDelete)
		case StepCreate, StepUpdate:
			x.apply(ctx, s)
		default:
			panic("unknown step kind " + string(s.Kind))
		}
		if x.t.Failed() {
			return
		}
		x.t.markExecuted(s)
	}
}

func (x *executor) remove(ctx context.Context, s Step, retryAfter time.Duration) {
	err := x.api.Delete(ctx, s.Name)
	switch {
	case err == nil:
		x.t.Log("Deleted project", "name", s.Name, "step", string(s.Kind))
	case project.IsNotFound(err):
		x.t.Log("Project already absent", "name", s.Name, "step", string(s.Kind))
	default:
		x.t.Error(err, "Failed to delete project", "name", s.Name)
		x.t.Retry(errors.Wrapf(err, "deleting %s", s.Name), retryAfter, progressApply)
		return
	}
	if s.Kind == StepDelete {
		x.t.ReplaceOutput(nil, nil)
	} else {
		x.t.ClearIdentity()
	}
}

func (x *executor) apply(ctx context.Context, s Step) {
	var (
		p         *project.Project
		err       error
		permanent []string
	)
	if x.compiled == nil {
		panic("apply without a compiled spec")
	}
	if s.Kind == StepCreate {
		p, err = x.api.Create(ctx, x.compiled.Spec)
		permanent = createPermanent
	} else {
		p, err = x.api.Update(ctx, x.compiled.Spec)
		permanent = updatePermanent
	}
	if err != nil {
		if code, ok := classify(err, permanent); ok {
			x.t.Fail(code, err.Error(), progressApply)
			return
		}
		x.t.Error(err, "Failed to "+string(s.Kind)+" project", "name", s.Name)
		x.t.Retry(errors.Wrapf(err, "%s %s", s.Kind, s.Name), RetryAfterDefault, progressApply)
		return
	}
	x.t.Log("Applied project", "name", s.Name, "step", string(s.Kind))
	x.t.ReplaceOutput(x.compiled.Properties, nil)
	x.recordIdentity(p, s.Name)
}

// recordIdentity reports the provider's view of the project, falling back to the planned
// name and a derived ARN where the provider omits them.
func (x *executor) recordIdentity(p *project.Project, name string) {
	arn := ""
	if p != nil {
		if p.Name != "" {
			name = p.Name
		}
		arn = p.Arn
	}
	if arn == "" && x.id.Region != "" && x.id.Account != "" {
		arn = project.ARN(x.id.Region, x.id.Account, name)
	}
	x.t.SetIdentity(name, arn, project.ConsoleURL(name, x.id.Region))
}

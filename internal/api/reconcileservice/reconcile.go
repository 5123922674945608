// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcileservice

import (
	"context"
	"log"

	"github.com/google/build-reconciler/internal/awsctx"
	"github.com/google/build-reconciler/internal/history"
	"github.com/google/build-reconciler/internal/state"
	"github.com/google/build-reconciler/internal/taskqueue"
	"github.com/google/build-reconciler/pkg/act/api"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
)

type ReconcileDeps struct {
	Engine *reconcile.Engine
	// AWSContext supplies the account and region when the request omits them.
	AWSContext func(context.Context) (awsctx.Context, error)
	State      state.Store
	History    history.Recorder
	// Queue and SelfURL, when both set, re-invoke requests that asked to be retried.
	Queue   taskqueue.Queue
	SelfURL string
}

func Reconcile(ctx context.Context, req reconcile.Request, deps *ReconcileDeps) (*reconcile.Response, error) {
	orig := req
	if deps.AWSContext != nil && (req.Identity.Account == "" || req.Identity.Region == "") {
		ac, err := deps.AWSContext(ctx)
		if err != nil {
			return nil, api.AsStatus(codes.Unavailable, errors.Wrap(err, "resolving account"), api.RetryAfter(reconcile.RetryAfterDefault))
		}
		if req.Identity.Account == "" {
			req.Identity.Account = ac.Account
		}
		if req.Identity.Region == "" {
			req.Identity.Region = ac.Region
		}
	}
	if req.PreviousState == nil && deps.State != nil {
		prev, err := deps.State.Load(ctx, req.Identity)
		if err != nil {
			return nil, api.AsStatus(codes.Unavailable, errors.Wrap(err, "loading state"), api.RetryAfter(reconcile.RetryAfterDefault))
		}
		req.PreviousState = prev
	}
	resp := deps.Engine.Reconcile(ctx, req)
	if deps.History != nil {
		if err := deps.History.Record(ctx, history.NewAttempt(req, resp)); err != nil {
			log.Printf("recording attempt for %s: %v", req.Identity.Component, err)
		}
	}
	if resp.State != nil && deps.State != nil {
		if err := deps.State.Save(ctx, req.Identity, resp.State); err != nil {
			// A retry re-derives the state from the live project.
			return nil, api.AsStatus(codes.Unavailable, errors.Wrap(err, "saving state"), api.RetryAfter(reconcile.RetryAfterDefault))
		}
	}
	if resp.RetryAfter() > 0 && deps.Queue != nil && deps.SelfURL != "" {
		if _, err := deps.Queue.Add(ctx, deps.SelfURL, orig, resp.RetryAfter()); err != nil {
			log.Printf("scheduling retry for %s: %v", req.Identity.Component, err)
		}
	}
	return resp, nil
}

// Plan reports the changes a reconciliation would make without applying them.
func Plan(ctx context.Context, req reconcile.Request, deps *ReconcileDeps) (*reconcile.Response, error) {
	if req.PreviousState == nil && deps.State != nil {
		prev, err := deps.State.Load(ctx, req.Identity)
		if err != nil {
			return nil, api.AsStatus(codes.Unavailable, errors.Wrap(err, "loading state"))
		}
		req.PreviousState = prev
	}
	return deps.Engine.Preview(ctx, req), nil
}

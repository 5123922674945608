// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package history records each reconciliation attempt for later inspection.
package history

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
)

// Collection is the Firestore collection under which attempts are stored.
const Collection = "attempts"

// Attempt is a single recorded invocation of the reconciler.
type Attempt struct {
	ID         string              `firestore:"id"`
	Project    string              `firestore:"project"`
	Repo       string              `firestore:"repo"`
	Component  string              `firestore:"component"`
	Operation  reconcile.Operation `firestore:"operation"`
	Outcome    reconcile.Outcome   `firestore:"outcome,omitempty"`
	Plan       string              `firestore:"plan"`
	ErrorCode  string              `firestore:"error_code,omitempty"`
	Message    string              `firestore:"message,omitempty"`
	RetryAfter int                 `firestore:"retry_after,omitempty"`
	Progress   int                 `firestore:"progress"`
	Created    time.Time           `firestore:"created"`
}

// NewAttempt summarizes a request and its response.
func NewAttempt(req reconcile.Request, resp *reconcile.Response) Attempt {
	a := Attempt{
		ID:         uuid.New().String(),
		Project:    req.Identity.Project,
		Repo:       req.Identity.Repo,
		Component:  req.Identity.Component,
		Operation:  req.Operation,
		Outcome:    resp.Outcome,
		Plan:       resp.Plan.String(),
		RetryAfter: resp.RetryAfterSeconds,
		Message:    resp.RetryReason,
		Progress:   resp.Progress,
		Created:    time.Now().UTC(),
	}
	if resp.Error != nil {
		a.ErrorCode = resp.Error.Code
		a.Message = resp.Error.Message
	}
	return a
}

// Recorder persists attempts.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// FirestoreRecorder stores attempts as Firestore documents keyed by attempt ID.
type FirestoreRecorder struct {
	Client *firestore.Client
}

var _ Recorder = &FirestoreRecorder{}

func (r *FirestoreRecorder) Record(ctx context.Context, a Attempt) error {
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return t.Create(r.Client.Collection(Collection).Doc(a.ID), a)
	})
	return errors.Wrap(err, "firestore write")
}

// List returns the most recent attempts for a component, newest first.
func (r *FirestoreRecorder) List(ctx context.Context, id reconcile.Identity, limit int) ([]Attempt, error) {
	q := r.Client.Collection(Collection).
		Where("project", "==", id.Project).
		Where("repo", "==", id.Repo).
		Where("component", "==", id.Component).
		OrderBy("created", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []Attempt
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "firestore query")
		}
		var a Attempt
		if err := doc.DataTo(&a); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", doc.Ref.ID)
		}
		out = append(out, a)
	}
	return out, nil
}

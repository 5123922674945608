// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"time"

	"github.com/pkg/errors"
)

// Operation is the top-level action requested of the reconciler.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// Identity carries the identifiers used for name derivation and link generation.
type Identity struct {
	Project   string `json:"project_code"`
	Repo      string `json:"repo_id"`
	Component string `json:"component_name"`
	Account   string `json:"account,omitempty"`
	Region    string `json:"region,omitempty"`
}

// PreviousState is the output recorded by the prior reconciliation.
type PreviousState struct {
	RenderedDefinition Definition        `json:"rendered_definition,omitempty"`
	Properties         map[string]any    `json:"properties,omitempty"`
	Links              map[string]string `json:"links,omitempty"`
}

// Name returns the project name recorded by the prior reconciliation, if any.
func (p *PreviousState) Name() string {
	if p == nil {
		return ""
	}
	name, _ := p.Properties[PropName].(string)
	return name
}

// Request is a single reconciliation request.
type Request struct {
	Operation     Operation      `json:"operation"`
	Definition    Definition     `json:"definition"`
	PreviousState *PreviousState `json:"previous_state,omitempty"`
	Identity      Identity       `json:"identity"`
}

// Validate checks the request envelope. Definition contents are checked during compilation.
func (r Request) Validate() error {
	switch r.Operation {
	case OpUpsert, OpDelete:
	default:
		return errors.Errorf("unknown operation %q", r.Operation)
	}
	if r.Definition == nil {
		return errors.New("definition is required")
	}
	return nil
}

// Outcome summarizes what a successful reconciliation changed.
type Outcome string

const (
	OutcomeNoOp    Outcome = "no-op"
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
	OutcomeRenamed Outcome = "renamed-and-recreated"
)

// Property and link keys reported to the caller.
const (
	PropName            = "name"
	PropArn             = "arn"
	PropFingerprint     = "buildspec_hash"
	PropArtifactsBucket = "artifacts_bucket"
	PropArtifactsKey    = "artifacts_key"
	LinkProject         = "Codebuild Project"
)

// Error is a permanent failure reported to the caller.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the accumulated result of a reconciliation.
type Response struct {
	Outcome    Outcome           `json:"outcome,omitempty"`
	Plan       Plan              `json:"plan,omitempty"`
	Properties map[string]any    `json:"properties,omitempty"`
	Links      map[string]string `json:"links,omitempty"`
	Logs       []LogEntry        `json:"logs,omitempty"`
	Error      *Error            `json:"error,omitempty"`
	// RetryAfterSeconds is set when a transient failure should be retried after a delay.
	RetryAfterSeconds int    `json:"retry_after,omitempty"`
	RetryReason       string `json:"retry_reason,omitempty"`
	Progress          int    `json:"progress"`
	// State is the recorded state for the next invocation; set only on success.
	State *PreviousState `json:"state,omitempty"`
}

// RetryAfter returns the requested retry delay, or zero if no retry was requested.
func (r *Response) RetryAfter() time.Duration {
	return time.Duration(r.RetryAfterSeconds) * time.Second
}

// Succeeded reports whether the reconciliation completed without failure or pending retry.
func (r *Response) Succeeded() bool {
	return r.Error == nil && r.RetryAfterSeconds == 0
}

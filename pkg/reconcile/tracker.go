// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"maps"
	"time"

	"github.com/go-logr/logr"
)

// LogEntry is a log line reported back to the caller.
type LogEntry struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Warning bool           `json:"warning,omitempty"`
	Error   bool           `json:"error,omitempty"`
}

// Tracker accumulates the logs, properties, links and terminal status of one reconciliation.
// It is threaded through each stage and converted into a Response once at the end.
type Tracker struct {
	log      logr.Logger
	logs     []LogEntry
	props    map[string]any
	links    map[string]string
	plan     Plan
	executed []Step
	failure  *Error
	retry    time.Duration
	reason   string
	progress int
}

// NewTracker returns a Tracker seeded with the previously recorded properties and links.
func NewTracker(log logr.Logger, prev *PreviousState) *Tracker {
	t := &Tracker{log: log, props: map[string]any{}, links: map[string]string{}}
	if prev != nil {
		maps.Copy(t.props, prev.Properties)
		maps.Copy(t.links, prev.Links)
	}
	return t
}

// Log records an informational entry. kv holds alternating keys and values.
func (t *Tracker) Log(msg string, kv ...any) {
	t.log.Info(msg, kv...)
	t.logs = append(t.logs, LogEntry{Message: msg, Details: details(kv)})
}

// Warn records an entry flagging input the reconciler corrected.
func (t *Tracker) Warn(msg string, kv ...any) {
	t.log.Info(msg, append([]any{"warning", true}, kv...)...)
	t.logs = append(t.logs, LogEntry{Message: msg, Details: details(kv), Warning: true})
}

// Error records an error entry.
func (t *Tracker) Error(err error, msg string, kv ...any) {
	t.log.Error(err, msg, kv...)
	d := details(kv)
	if d == nil {
		d = map[string]any{}
	}
	d["error"] = err.Error()
	t.logs = append(t.logs, LogEntry{Message: msg, Details: d, Error: true})
}

// AddProps merges properties into the reported set.
func (t *Tracker) AddProps(props map[string]any) {
	maps.Copy(t.props, props)
}

// DropProps removes properties from the reported set.
func (t *Tracker) DropProps(keys ...string) {
	for _, k := range keys {
		delete(t.props, k)
	}
}

// SetIdentity replaces the reported identity of the managed project and its links.
func (t *Tracker) SetIdentity(name, arn, link string) {
	t.DropProps(PropName, PropArn)
	t.props[PropName] = name
	if arn != "" {
		t.props[PropArn] = arn
	}
	t.links = map[string]string{LinkProject: link}
}

// ClearIdentity removes the reported identity and links of the managed project.
func (t *Tracker) ClearIdentity() {
	t.DropProps(PropName, PropArn)
	t.links = map[string]string{}
}

// ReplaceOutput sets properties and links to exactly the given values.
func (t *Tracker) ReplaceOutput(props map[string]any, links map[string]string) {
	t.props = maps.Clone(props)
	t.links = maps.Clone(links)
	if t.props == nil {
		t.props = map[string]any{}
	}
	if t.links == nil {
		t.links = map[string]string{}
	}
}

// Prop returns a reported property.
func (t *Tracker) Prop(key string) any {
	return t.props[key]
}

// Fail marks the reconciliation as permanently failed.
func (t *Tracker) Fail(code, msg string, progress int) {
	t.failure = &Error{Code: code, Message: msg}
	t.progress = progress
	t.Error(fmt.Errorf("%s", msg), "Permanent failure", "code", code)
}

// Retry marks the reconciliation as failed transiently, to be re-invoked after the delay.
func (t *Tracker) Retry(err error, after time.Duration, progress int) {
	t.retry = after
	t.reason = err.Error()
	t.progress = progress
	t.Log("Retrying after transient failure", "retry_after", after.String())
}

// Failed reports whether a permanent or transient failure has been recorded.
func (t *Tracker) Failed() bool {
	return t.failure != nil || t.retry > 0
}

func (t *Tracker) setPlan(p Plan) { t.plan = p }

func (t *Tracker) markExecuted(s Step) { t.executed = append(t.executed, s) }

// Response renders the accumulated state.
func (t *Tracker) Response() *Response {
	r := &Response{
		Plan:       t.plan,
		Properties: maps.Clone(t.props),
		Links:      maps.Clone(t.links),
		Logs:       t.logs,
		Error:      t.failure,
		Progress:   t.progress,
	}
	if t.retry > 0 {
		r.RetryAfterSeconds = int(t.retry.Seconds())
		r.RetryReason = t.reason
	}
	if !t.Failed() {
		r.Outcome = outcome(t.executed)
		r.Progress = 100
	}
	return r
}

func outcome(executed []Step) Outcome {
	var renamed bool
	result := OutcomeNoOp
	for _, s := range executed {
		switch s.Kind {
		case StepRenameCleanup:
			renamed = true
		case StepCreate:
			result = OutcomeCreated
		case StepUpdate:
			result = OutcomeUpdated
		case StepDelete:
			result = OutcomeDeleted
		}
	}
	if renamed && (result == OutcomeCreated || result == OutcomeNoOp) {
		return OutcomeRenamed
	}
	return result
}

func details(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	d := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		d[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return d
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/build-reconciler/pkg/project"
	"github.com/pkg/errors"
)

// StepKind identifies the provider action a Step performs.
type StepKind string

const (
	// StepRenameCleanup deletes the project recorded under a previous name.
	StepRenameCleanup StepKind = "rename-cleanup"
	StepCreate        StepKind = "create"
	StepUpdate        StepKind = "update"
	StepDelete        StepKind = "delete"
)

// Step is a single planned action against the named project.
type Step struct {
	Kind StepKind `json:"kind"`
	Name string   `json:"name"`
}

func (s Step) String() string {
	return string(s.Kind) + "(" + s.Name + ")"
}

// Plan is the ordered set of actions that reconciles live state to the desired state.
type Plan []Step

func (p Plan) String() string {
	if len(p) == 0 {
		return "no-op"
	}
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// Has reports whether the plan contains a step of the given kind.
func (p Plan) Has(kind StepKind) bool {
	return slices.ContainsFunc(p, func(s Step) bool { return s.Kind == kind })
}

// PlanChanges computes the steps required to move the project named name to desired.
// For OpDelete, desired and live are ignored.
func PlanChanges(op Operation, name string, desired *project.Spec, live *project.Project, prev *PreviousState, t *Tracker) (Plan, error) {
	var plan Plan
	if old := prev.Name(); old != "" && old != name {
		t.Log("Project name changed, removing previous project", "old", old, "new", name)
		plan = append(plan, Step{Kind: StepRenameCleanup, Name: old})
	}
	switch op {
	case OpDelete:
		return append(plan, Step{Kind: StepDelete, Name: name}), nil
	case OpUpsert:
	default:
		return nil, errors.Errorf("unknown operation %q", op)
	}
	if desired == nil {
		return nil, errors.New("no desired spec for upsert")
	}
	if live == nil {
		t.Log("Project does not exist", "name", name)
		return append(plan, Step{Kind: StepCreate, Name: name}), nil
	}
	field, err := firstMismatch(desired, live)
	if err != nil {
		return nil, err
	}
	if field == "" {
		t.Log("Live project matches desired state", "name", name)
		return plan, nil
	}
	t.Log("Live project differs from desired state", "name", name, "field", field)
	return append(plan, Step{Kind: StepUpdate, Name: name}), nil
}

// firstMismatch returns the first top-level field, in key order, for which live does not
// satisfy desired. It returns "" when every field matches.
func firstMismatch(desired *project.Spec, live *project.Project) (string, error) {
	want, err := desired.Fields()
	if err != nil {
		return "", errors.Wrap(err, "serializing desired spec")
	}
	got, err := live.Fields()
	if err != nil {
		return "", errors.Wrap(err, "serializing live project")
	}
	// Tags are owned even when none are desired, so that removing the last one is seen.
	if _, ok := want["tags"]; !ok {
		want["tags"] = nil
	}
	for _, k := range slices.Sorted(maps.Keys(want)) {
		if k == "tags" {
			if !maps.Equal(project.UnformatTags(desired.Tags), project.UnformatTags(live.Tags)) {
				return k, nil
			}
			continue
		}
		if !covers(got[k], want[k]) {
			return k, nil
		}
	}
	return "", nil
}

// covers reports whether got satisfies want. An empty wanted value is satisfied only by a
// zero live value, so a field cleared in the desired state is still compared. Keys only
// the provider reports are ignored while their values are zero.
func covers(got, want any) bool {
	if isEmpty(want) {
		return isZero(got)
	}
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range w {
			if !covers(g[k], v) {
				return false
			}
		}
		for k, v := range g {
			if _, ok := w[k]; !ok && !isZero(v) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !covers(g[i], w[i]) {
				return false
			}
		}
		return true
	default:
		switch got.(type) {
		case map[string]any, []any:
			return false
		}
		return got == want
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// isZero extends isEmpty to the defaults a provider reports for unset fields.
func isZero(v any) bool {
	switch x := v.(type) {
	case bool:
		return !x
	case float64:
		return x == 0
	case map[string]any:
		for _, e := range x {
			if !isZero(e) {
				return false
			}
		}
		return true
	}
	return isEmpty(v)
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package projecttest provides test doubles for project.API.
package projecttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/build-reconciler/pkg/project"
)

// MockAPI implements project.API for testing.
type MockAPI struct {
	GetFunc    func(ctx context.Context, name string) (*project.Project, error)
	CreateFunc func(ctx context.Context, spec *project.Spec) (*project.Project, error)
	UpdateFunc func(ctx context.Context, spec *project.Spec) (*project.Project, error)
	DeleteFunc func(ctx context.Context, name string) error
}

var _ project.API = &MockAPI{}

func (m *MockAPI) Get(ctx context.Context, name string) (*project.Project, error) {
	return m.GetFunc(ctx, name)
}

func (m *MockAPI) Create(ctx context.Context, spec *project.Spec) (*project.Project, error) {
	return m.CreateFunc(ctx, spec)
}

func (m *MockAPI) Update(ctx context.Context, spec *project.Spec) (*project.Project, error) {
	return m.UpdateFunc(ctx, spec)
}

func (m *MockAPI) Delete(ctx context.Context, name string) error {
	return m.DeleteFunc(ctx, name)
}

// FakeAPI is an in-memory project.API that records the calls made against it.
type FakeAPI struct {
	Region   string
	Account  string
	mu       sync.Mutex
	projects map[string]*project.Project
	calls    []string
}

var _ project.API = &FakeAPI{}

// NewFakeAPI returns a FakeAPI holding the given projects.
func NewFakeAPI(projects ...*project.Project) *FakeAPI {
	f := &FakeAPI{Region: "us-east-1", Account: "123456789012", projects: make(map[string]*project.Project)}
	for _, p := range projects {
		f.projects[p.Name] = clone(p)
	}
	return f
}

// Calls returns the operations issued so far, formatted as "Verb(name)".
func (f *FakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Project returns the stored project with the given name.
func (f *FakeAPI) Project(name string) *project.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[name]; ok {
		return clone(p)
	}
	return nil
}

func (f *FakeAPI) record(verb, name string) {
	f.calls = append(f.calls, fmt.Sprintf("%s(%s)", verb, name))
}

func (f *FakeAPI) Get(ctx context.Context, name string) (*project.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Get", name)
	if p, ok := f.projects[name]; ok {
		return clone(p), nil
	}
	return nil, nil
}

func (f *FakeAPI) Create(ctx context.Context, spec *project.Spec) (*project.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create", spec.Name)
	if _, ok := f.projects[spec.Name]; ok {
		return nil, &project.APIError{Code: project.CodeResourceExists, Message: spec.Name}
	}
	p := &project.Project{Spec: *spec, Arn: project.ARN(f.Region, f.Account, spec.Name)}
	f.projects[spec.Name] = clone(p)
	return p, nil
}

func (f *FakeAPI) Update(ctx context.Context, spec *project.Spec) (*project.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Update", spec.Name)
	if _, ok := f.projects[spec.Name]; !ok {
		return nil, &project.APIError{Code: project.CodeResourceNotFound, Message: spec.Name}
	}
	p := &project.Project{Spec: *spec, Arn: project.ARN(f.Region, f.Account, spec.Name)}
	f.projects[spec.Name] = clone(p)
	return p, nil
}

func (f *FakeAPI) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete", name)
	delete(f.projects, name)
	return nil
}

func clone(p *project.Project) *project.Project {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	var out project.Project
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

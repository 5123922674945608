// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/build-reconciler/pkg/project"
)

// Stable error codes for failures that do not originate from the provider.
const (
	CodeConfiguration = "ConfigurationError"
	CodeInternal      = "InternalError"
)

// Retry delays requested of the caller after transient failures.
const (
	RetryAfterDefault       = 30 * time.Second
	RetryAfterDelete        = 15 * time.Second
	RetryAfterRenameCleanup = 60 * time.Second
)

// Progress reported alongside permanent failures of each stage.
const (
	progressGet   = 10
	progressApply = 20
)

// ConfigError is a definition that cannot be satisfied as written.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid definition: %s: %s", e.Field, e.Reason)
}

// Provider error codes that are the caller's to fix, per operation.
var (
	createPermanent = []string{project.CodeInvalidInput, project.CodeAccountLimitExceeded}
	updatePermanent = []string{project.CodeInvalidInput, project.CodeResourceNotFound}
)

// classify returns the provider code carried by err and whether it is permanent.
// Errors without a provider code are treated as transient.
func classify(err error, permanent []string) (code string, isPermanent bool) {
	code, ok := project.ErrorCode(err)
	if !ok {
		return "", false
	}
	return code, slices.Contains(permanent, code)
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"fmt"

	"github.com/pkg/errors"
)

// Provider error codes with special handling.
const (
	CodeInvalidInput         = "InvalidInputException"
	CodeAccountLimitExceeded = "AccountLimitExceededException"
	CodeResourceNotFound     = "ResourceNotFoundException"
	CodeResourceExists       = "ResourceAlreadyExistsException"
	// CodeTransport is used for failures that never produced a provider response.
	CodeTransport = "TransportError"
)

// APIError is an error reported by the provider.
type APIError struct {
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// ErrorCode returns the provider error code carried by err, if any.
func ErrorCode(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return "", false
}

// IsNotFound reports whether err indicates the target project does not exist.
func IsNotFound(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeResourceNotFound
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcileservice

import (
	"context"
	"os"

	"github.com/google/build-reconciler/internal/serviceid"
	"github.com/google/build-reconciler/pkg/act"
)

type VersionRequest struct{}

func (VersionRequest) Validate() error { return nil }

type VersionResponse struct {
	Version string            `json:"version"`
	Source  *serviceid.Source `json:"source,omitempty"`
}

type VersionDeps struct {
	BuildRepo    string
	BuildVersion string
}

// Version reports the serving revision, falling back to the build version.
func Version(ctx context.Context, req VersionRequest, deps *VersionDeps) (*VersionResponse, error) {
	resp := &VersionResponse{Version: os.Getenv("K_REVISION")}
	if resp.Version == "" {
		resp.Version = deps.BuildVersion
	}
	if src, err := serviceid.Parse(deps.BuildRepo, deps.BuildVersion); err == nil {
		resp.Source = &src
	}
	return resp, nil
}

var _ act.Action[VersionRequest, VersionResponse, *VersionDeps] = Version

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package project defines the build project resource and the provider API used to manage it.
package project

import (
	"context"
	"encoding/json"
)

// ComputeType is the capacity tier of a build environment.
type ComputeType string

const (
	ComputeSmall   ComputeType = "BUILD_GENERAL1_SMALL"
	ComputeMedium  ComputeType = "BUILD_GENERAL1_MEDIUM"
	ComputeLarge   ComputeType = "BUILD_GENERAL1_LARGE"
	Compute2XLarge ComputeType = "BUILD_GENERAL1_2XLARGE"
)

// ComputeTypes lists the canonical tiers in ascending order of capacity.
var ComputeTypes = []ComputeType{ComputeSmall, ComputeMedium, ComputeLarge, Compute2XLarge}

// EnvironmentType is the container flavor a build runs in.
type EnvironmentType string

const (
	LinuxContainer EnvironmentType = "LINUX_CONTAINER"
	ARMContainer   EnvironmentType = "ARM_CONTAINER"
)

const (
	// SourceS3 is the source type for objects stored in a bucket.
	SourceS3 = "S3"
	// NoArtifacts is the artifact type for projects producing no output.
	NoArtifacts = "NO_ARTIFACTS"
	// PackagingZip is the artifact packaging that archives the output.
	PackagingZip = "ZIP"
	// CodeBuildCredentials pulls images with the service's own credentials.
	CodeBuildCredentials = "CODEBUILD"
)

// Source describes where a project's input comes from and how it is built.
type Source struct {
	Type                string               `json:"type,omitempty"`
	Location            string               `json:"location,omitempty"`
	Auth                *SourceAuth          `json:"auth,omitempty"`
	BuildStatusConfig   *BuildStatusConfig   `json:"buildStatusConfig,omitempty"`
	Buildspec           string               `json:"buildspec,omitempty"`
	GitCloneDepth       *int32               `json:"gitCloneDepth,omitempty"`
	GitSubmodulesConfig *GitSubmodulesConfig `json:"gitSubmodulesConfig,omitempty"`
	InsecureSsl         *bool                `json:"insecureSsl,omitempty"`
	ReportBuildStatus   *bool                `json:"reportBuildStatus,omitempty"`
	SourceIdentifier    string               `json:"sourceIdentifier,omitempty"`
}

// SourceAuth names the credentials used to reach a source repository.
type SourceAuth struct {
	Type     string `json:"type,omitempty"`
	Resource string `json:"resource,omitempty"`
}

// BuildStatusConfig controls how build status is reported back to the source provider.
type BuildStatusConfig struct {
	Context   string `json:"context,omitempty"`
	TargetURL string `json:"targetUrl,omitempty"`
}

type GitSubmodulesConfig struct {
	FetchSubmodules *bool `json:"fetchSubmodules,omitempty"`
}

// Artifacts describes the output of a project's builds.
type Artifacts struct {
	Type                 string `json:"type,omitempty"`
	Location             string `json:"location,omitempty"`
	Path                 string `json:"path,omitempty"`
	Name                 string `json:"name,omitempty"`
	Packaging            string `json:"packaging,omitempty"`
	NamespaceType        string `json:"namespaceType,omitempty"`
	EncryptionDisabled   *bool  `json:"encryptionDisabled,omitempty"`
	OverrideArtifactName *bool  `json:"overrideArtifactName,omitempty"`
	ArtifactIdentifier   string `json:"artifactIdentifier,omitempty"`
}

// Environment describes the container a project's builds run in.
type Environment struct {
	Type                     EnvironmentType `json:"type"`
	Image                    string          `json:"image"`
	ComputeType              ComputeType     `json:"computeType"`
	ImagePullCredentialsType string          `json:"imagePullCredentialsType"`
	PrivilegedMode           bool            `json:"privilegedMode"`
}

// Tag is a single key/value label attached to a project.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Spec is the desired configuration of a project as submitted to the provider.
type Spec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Source      *Source     `json:"source"`
	Artifacts   Artifacts   `json:"artifacts"`
	Environment Environment `json:"environment"`
	ServiceRole string      `json:"serviceRole"`
	Tags        []Tag       `json:"tags,omitempty"`
}

// Project is a project as described by the provider.
type Project struct {
	Spec
	Arn string `json:"arn,omitempty"`
}

// Fields returns the spec as a generic key/value mapping keyed by its serialized field names.
func (s Spec) Fields() (map[string]any, error) {
	return toFields(s)
}

// Fields returns the project as a generic key/value mapping keyed by its serialized field names.
func (p Project) Fields() (map[string]any, error) {
	return toFields(p)
}

func toFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// API is the set of provider operations used to manage projects.
type API interface {
	// Get returns the named project, or nil with no error if it does not exist.
	Get(ctx context.Context, name string) (*Project, error)
	Create(ctx context.Context, spec *Spec) (*Project, error)
	Update(ctx context.Context, spec *Spec) (*Project, error)
	// Delete removes the named project. Deleting an absent project may return a NotFound APIError.
	Delete(ctx context.Context, name string) error
}

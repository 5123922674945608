// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package codebuild implements project.API on AWS CodeBuild.
package codebuild

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/aws/smithy-go"
	"github.com/google/build-reconciler/pkg/project"
	"github.com/pkg/errors"
)

// Client is the subset of the CodeBuild SDK client used to manage projects.
type Client interface {
	BatchGetProjects(context.Context, *codebuild.BatchGetProjectsInput, ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error)
	CreateProject(context.Context, *codebuild.CreateProjectInput, ...func(*codebuild.Options)) (*codebuild.CreateProjectOutput, error)
	UpdateProject(context.Context, *codebuild.UpdateProjectInput, ...func(*codebuild.Options)) (*codebuild.UpdateProjectOutput, error)
	DeleteProject(context.Context, *codebuild.DeleteProjectInput, ...func(*codebuild.Options)) (*codebuild.DeleteProjectOutput, error)
}

var _ Client = &codebuild.Client{}

// API adapts a CodeBuild client to project.API.
type API struct {
	Client Client
}

var _ project.API = &API{}

// New returns an API using the given AWS configuration.
func New(cfg aws.Config) *API {
	return &API{Client: codebuild.NewFromConfig(cfg)}
}

func (a *API) Get(ctx context.Context, name string) (*project.Project, error) {
	out, err := a.Client.BatchGetProjects(ctx, &codebuild.BatchGetProjectsInput{Names: []string{name}})
	if err != nil {
		return nil, wrapError(err)
	}
	for _, p := range out.Projects {
		if aws.ToString(p.Name) == name {
			return fromSDK(&p), nil
		}
	}
	return nil, nil
}

func (a *API) Create(ctx context.Context, spec *project.Spec) (*project.Project, error) {
	in := toSDK(spec)
	out, err := a.Client.CreateProject(ctx, &codebuild.CreateProjectInput{
		Name:        in.Name,
		Description: in.Description,
		Source:      in.Source,
		Artifacts:   in.Artifacts,
		Environment: in.Environment,
		ServiceRole: in.ServiceRole,
		Tags:        in.Tags,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return fromSDK(out.Project), nil
}

func (a *API) Update(ctx context.Context, spec *project.Spec) (*project.Project, error) {
	in := toSDK(spec)
	out, err := a.Client.UpdateProject(ctx, &codebuild.UpdateProjectInput{
		Name:        in.Name,
		Description: in.Description,
		Source:      in.Source,
		Artifacts:   in.Artifacts,
		Environment: in.Environment,
		ServiceRole: in.ServiceRole,
		Tags:        in.Tags,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return fromSDK(out.Project), nil
}

func (a *API) Delete(ctx context.Context, name string) error {
	_, err := a.Client.DeleteProject(ctx, &codebuild.DeleteProjectInput{Name: aws.String(name)})
	return wrapError(err)
}

// wrapError converts SDK errors into project.APIError, keeping the original in the chain.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return &project.APIError{Code: ae.ErrorCode(), Message: ae.ErrorMessage(), Err: err}
	}
	return &project.APIError{Code: project.CodeTransport, Message: err.Error(), Err: err}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// unsetIfNone maps the NONE the service reports for an omitted enum back to unset.
func unsetIfNone(s string) string {
	if s == "NONE" {
		return ""
	}
	return s
}

func toSDK(s *project.Spec) *types.Project {
	p := &types.Project{
		Name:        aws.String(s.Name),
		Description: optional(s.Description),
		ServiceRole: optional(s.ServiceRole),
		Artifacts: &types.ProjectArtifacts{
			Type:                 types.ArtifactsType(s.Artifacts.Type),
			Location:             optional(s.Artifacts.Location),
			Path:                 optional(s.Artifacts.Path),
			Name:                 optional(s.Artifacts.Name),
			Packaging:            types.ArtifactPackaging(s.Artifacts.Packaging),
			NamespaceType:        types.ArtifactNamespace(s.Artifacts.NamespaceType),
			EncryptionDisabled:   s.Artifacts.EncryptionDisabled,
			OverrideArtifactName: s.Artifacts.OverrideArtifactName,
			ArtifactIdentifier:   optional(s.Artifacts.ArtifactIdentifier),
		},
		Environment: &types.ProjectEnvironment{
			Type:                     types.EnvironmentType(s.Environment.Type),
			Image:                    aws.String(s.Environment.Image),
			ComputeType:              types.ComputeType(s.Environment.ComputeType),
			ImagePullCredentialsType: types.ImagePullCredentialsType(s.Environment.ImagePullCredentialsType),
			PrivilegedMode:           aws.Bool(s.Environment.PrivilegedMode),
		},
	}
	if s.Source != nil {
		p.Source = &types.ProjectSource{
			Type:              types.SourceType(s.Source.Type),
			Location:          optional(s.Source.Location),
			Buildspec:         optional(s.Source.Buildspec),
			GitCloneDepth:     s.Source.GitCloneDepth,
			InsecureSsl:       s.Source.InsecureSsl,
			ReportBuildStatus: s.Source.ReportBuildStatus,
			SourceIdentifier:  optional(s.Source.SourceIdentifier),
		}
		if a := s.Source.Auth; a != nil {
			p.Source.Auth = &types.SourceAuth{Type: types.SourceAuthType(a.Type), Resource: optional(a.Resource)}
		}
		if c := s.Source.BuildStatusConfig; c != nil {
			p.Source.BuildStatusConfig = &types.BuildStatusConfig{Context: optional(c.Context), TargetUrl: optional(c.TargetURL)}
		}
		if g := s.Source.GitSubmodulesConfig; g != nil {
			p.Source.GitSubmodulesConfig = &types.GitSubmodulesConfig{FetchSubmodules: g.FetchSubmodules}
		}
	}
	// An empty list, not nil, so that an update clears tags the project already carries.
	p.Tags = make([]types.Tag, 0, len(s.Tags))
	for _, t := range s.Tags {
		p.Tags = append(p.Tags, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return p
}

func fromSDK(p *types.Project) *project.Project {
	if p == nil {
		return nil
	}
	out := &project.Project{
		Spec: project.Spec{
			Name:        aws.ToString(p.Name),
			Description: aws.ToString(p.Description),
			ServiceRole: aws.ToString(p.ServiceRole),
		},
		Arn: aws.ToString(p.Arn),
	}
	if s := p.Source; s != nil {
		out.Source = &project.Source{
			Type:              string(s.Type),
			Location:          aws.ToString(s.Location),
			Buildspec:         aws.ToString(s.Buildspec),
			GitCloneDepth:     s.GitCloneDepth,
			InsecureSsl:       s.InsecureSsl,
			ReportBuildStatus: s.ReportBuildStatus,
			SourceIdentifier:  aws.ToString(s.SourceIdentifier),
		}
		if a := s.Auth; a != nil {
			out.Source.Auth = &project.SourceAuth{Type: string(a.Type), Resource: aws.ToString(a.Resource)}
		}
		if c := s.BuildStatusConfig; c != nil {
			out.Source.BuildStatusConfig = &project.BuildStatusConfig{Context: aws.ToString(c.Context), TargetURL: aws.ToString(c.TargetUrl)}
		}
		if g := s.GitSubmodulesConfig; g != nil {
			out.Source.GitSubmodulesConfig = &project.GitSubmodulesConfig{FetchSubmodules: g.FetchSubmodules}
		}
	}
	if a := p.Artifacts; a != nil {
		out.Artifacts = project.Artifacts{
			Type:                 string(a.Type),
			Location:             aws.ToString(a.Location),
			Path:                 aws.ToString(a.Path),
			Name:                 aws.ToString(a.Name),
			Packaging:            unsetIfNone(string(a.Packaging)),
			NamespaceType:        unsetIfNone(string(a.NamespaceType)),
			EncryptionDisabled:   a.EncryptionDisabled,
			OverrideArtifactName: a.OverrideArtifactName,
			ArtifactIdentifier:   aws.ToString(a.ArtifactIdentifier),
		}
	}
	if e := p.Environment; e != nil {
		out.Environment = project.Environment{
			Type:                     project.EnvironmentType(e.Type),
			Image:                    aws.ToString(e.Image),
			ComputeType:              project.ComputeType(e.ComputeType),
			ImagePullCredentialsType: string(e.ImagePullCredentialsType),
			PrivilegedMode:           aws.ToBool(e.PrivilegedMode),
		}
	}
	for _, t := range p.Tags {
		out.Tags = append(out.Tags, project.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"crypto"
	_ "crypto/md5"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/build-reconciler/internal/hashext"
	"github.com/google/build-reconciler/pkg/image"
	"github.com/google/build-reconciler/pkg/naming"
	"github.com/google/build-reconciler/pkg/project"
	"github.com/pkg/errors"
)

// maxNameChars bounds derived project names.
const maxNameChars = 255

// Resolver selects an image providing the requested runtimes.
type Resolver interface {
	Resolve(runtimes map[string]any) (string, error)
}

// Namer derives a safe project name from component identifiers.
type Namer interface {
	SafeName(project, repo, component string, maxChars int) string
}

// CompileOptions holds the collaborators and environment used to compile a definition.
type CompileOptions struct {
	ServiceRole string
	Resolver    Resolver
	Namer       Namer
}

func (o CompileOptions) resolver() Resolver {
	if o.Resolver == nil {
		return image.DefaultCatalog
	}
	return o.Resolver
}

func (o CompileOptions) namer() Namer {
	if o.Namer == nil {
		return naming.Namer{}
	}
	return o.Namer
}

// Compiled is the canonical specification derived from a definition.
type Compiled struct {
	Spec        *project.Spec
	Fingerprint string
	// Properties are the reportable values derived during compilation.
	Properties map[string]any
}

// ResolveName returns the project name a definition targets.
func ResolveName(def Definition, id Identity, opts CompileOptions) (string, error) {
	name, err := def.String(FieldName)
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	return opts.namer().SafeName(id.Project, id.Repo, id.Component, maxNameChars), nil
}

// Compile normalizes a definition into a canonical project specification.
func Compile(def Definition, id Identity, opts CompileOptions, t *Tracker) (*Compiled, error) {
	name, err := ResolveName(def, id, opts)
	if err != nil {
		return nil, err
	}
	env, err := compileEnvironment(def, opts, t)
	if err != nil {
		return nil, err
	}
	src, err := compileSource(def)
	if err != nil {
		return nil, err
	}
	props := map[string]any{}
	artifacts, err := compileArtifacts(def, props)
	if err != nil {
		return nil, err
	}
	tags, err := def.StringMap(FieldTags)
	if err != nil {
		return nil, err
	}
	spec := &project.Spec{
		Name:        name,
		Description: fmt.Sprintf("Codebuild project for component %s in app %s", id.Component, id.Repo),
		Source:      src,
		Artifacts:   artifacts,
		Environment: env,
		ServiceRole: opts.ServiceRole,
		Tags:        project.FormatTags(tags),
	}
	fp, err := Fingerprint(spec)
	if err != nil {
		return nil, err
	}
	props[PropFingerprint] = fp
	return &Compiled{Spec: spec, Fingerprint: fp, Properties: props}, nil
}

// Fingerprint hashes the key-sorted serialization of a specification.
func Fingerprint(spec *project.Spec) (string, error) {
	fields, err := spec.Fields()
	if err != nil {
		return "", errors.Wrap(err, "serializing spec")
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Wrap(err, "serializing spec")
	}
	h := hashext.NewTypedHash(crypto.MD5)
	h.Write(b)
	return h.Hex(), nil
}

// ComputeType normalizes a capacity tier given as a size name, canonical token or 1-4.
// Unset values (nil, "", 0 and false) select the default without complaint.
// The second result is false when the value was not recognized and the default was used.
func ComputeType(v any) (project.ComputeType, bool) {
	switch c := v.(type) {
	case nil:
		return project.ComputeLarge, true
	case bool:
		if !c {
			return project.ComputeLarge, true
		}
	case string:
		switch strings.ToLower(c) {
		case "":
			return project.ComputeLarge, true
		case "small":
			return project.ComputeSmall, true
		case "medium":
			return project.ComputeMedium, true
		case "large":
			return project.ComputeLarge, true
		case "2xlarge", "xxlarge":
			return project.Compute2XLarge, true
		}
		for _, ct := range project.ComputeTypes {
			if c == string(ct) {
				return ct, true
			}
		}
	case int:
		return computeOrdinal(int64(c))
	case int64:
		return computeOrdinal(c)
	case uint64:
		return computeOrdinal(int64(c))
	case float64:
		if c == float64(int64(c)) {
			return computeOrdinal(int64(c))
		}
	case json.Number:
		if n, err := c.Int64(); err == nil {
			return computeOrdinal(n)
		}
	}
	return project.ComputeLarge, false
}

func computeOrdinal(n int64) (project.ComputeType, bool) {
	if n == 0 {
		return project.ComputeLarge, true
	}
	if n < 1 || n > int64(len(project.ComputeTypes)) {
		return project.ComputeLarge, false
	}
	return project.ComputeTypes[n-1], true
}

func compileEnvironment(def Definition, opts CompileOptions, t *Tracker) (project.Environment, error) {
	size := def[FieldBuildContainerSize]
	compute, ok := ComputeType(size)
	if !ok {
		t.Warn("Invalid build_container_size, using LARGE", FieldBuildContainerSize, size)
	}
	img, err := def.String(FieldContainerImage)
	if err != nil {
		return project.Environment{}, err
	}
	if img == "" {
		runtimes, err := def.Map(FieldRuntimeVersions)
		if err != nil {
			return project.Environment{}, err
		}
		img, err = opts.resolver().Resolve(runtimes)
		if errors.Is(err, image.ErrNoImage) {
			return project.Environment{}, &ConfigError{Field: FieldRuntimeVersions, Reason: err.Error()}
		} else if err != nil {
			return project.Environment{}, errors.Wrap(err, "resolving image")
		}
		t.Log("Resolved container image", "image", img, "runtimes", runtimes)
	}
	privileged, err := def.Bool(FieldPrivilegedMode, false)
	if err != nil {
		return project.Environment{}, err
	}
	envType := project.LinuxContainer
	if image.Architecture(img) == image.ArchARM {
		envType = project.ARMContainer
	}
	return project.Environment{
		Type:                     envType,
		Image:                    img,
		ComputeType:              compute,
		ImagePullCredentialsType: project.CodeBuildCredentials,
		PrivilegedMode:           privileged,
	}, nil
}

func compileSource(def Definition) (*project.Source, error) {
	fromS3, err := def.Bool(FieldSourcedFromS3, true)
	if err != nil {
		return nil, err
	}
	if !fromS3 {
		raw, err := def.Map(FieldSource)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, &ConfigError{Field: FieldSource, Reason: "required when sourced_from_s3 is false"}
		}
		var src project.Source
		if err := decodeInto(raw, &src); err != nil {
			return nil, &ConfigError{Field: FieldSource, Reason: err.Error()}
		}
		return &src, nil
	}
	bucket, err := def.String(FieldS3Bucket)
	if err != nil {
		return nil, err
	}
	object, err := def.String(FieldS3Object)
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, &ConfigError{Field: FieldS3Bucket, Reason: "required when sourced_from_s3 is true"}
	}
	if object == "" {
		return nil, &ConfigError{Field: FieldS3Object, Reason: "required when sourced_from_s3 is true"}
	}
	spec, err := Buildspec(def)
	if err != nil {
		return nil, err
	}
	return &project.Source{
		Type:      project.SourceS3,
		Location:  bucket + "/" + object,
		Buildspec: spec,
	}, nil
}

// Buildspec assembles the inline build script from the definition's command phases.
func Buildspec(def Definition) (string, error) {
	doc := map[string]any{"version": 0.2}
	vars, err := def.StringMap(FieldEnvironmentVars)
	if err != nil {
		return "", err
	}
	if len(vars) > 0 {
		doc["env"] = map[string]any{"variables": vars}
	}
	phases := map[string]any{}
	install := map[string]any{}
	runtimes, err := def.Map(FieldRuntimeVersions)
	if err != nil {
		return "", err
	}
	if len(runtimes) > 0 {
		versions := make(map[string]string, len(runtimes))
		for rt, v := range runtimes {
			s, err := image.Version(v)
			if err != nil {
				return "", &ConfigError{Field: FieldRuntimeVersions + "." + rt, Reason: err.Error()}
			}
			versions[rt] = s
		}
		install["runtime-versions"] = versions
	}
	for _, phase := range []struct {
		name  string
		field string
		into  map[string]any
	}{
		{"install", FieldInstallCommands, install},
		{"pre_build", FieldPreBuildCommands, nil},
		{"build", FieldBuildCommands, nil},
		{"post_build", FieldPostBuildCommands, nil},
	} {
		cmds, err := def.StringList(phase.field)
		if err != nil {
			return "", err
		}
		body := phase.into
		if body == nil {
			body = map[string]any{}
		}
		if len(cmds) > 0 {
			body["commands"] = cmds
		}
		if len(body) > 0 {
			phases[phase.name] = body
		}
	}
	doc["phases"] = phases
	artifacts, err := def.Map(FieldBuildspecArtifacts)
	if err != nil {
		return "", err
	}
	if artifacts != nil {
		doc["artifacts"] = artifacts
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "encoding buildspec")
	}
	return string(b), nil
}

func compileArtifacts(def Definition, props map[string]any) (project.Artifacts, error) {
	raw, err := def.Map(FieldArtifacts)
	if err != nil {
		return project.Artifacts{}, err
	}
	if raw == nil {
		return project.Artifacts{Type: project.NoArtifacts}, nil
	}
	var a project.Artifacts
	if err := decodeInto(raw, &a); err != nil {
		return project.Artifacts{}, &ConfigError{Field: FieldArtifacts, Reason: err.Error()}
	}
	if strings.EqualFold(a.Packaging, project.PackagingZip) {
		if a.Location == "" || a.Name == "" {
			return project.Artifacts{}, &ConfigError{Field: FieldArtifacts, Reason: "location and name are required for ZIP packaging"}
		}
		props[PropArtifactsBucket] = a.Location
		props[PropArtifactsKey] = path.Join(a.Path, a.Name)
	}
	return a, nil
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Definition fields.
const (
	FieldName               = "name"
	FieldTrustLevel         = "trust_level"
	FieldContainerImage     = "container_image"
	FieldRuntimeVersions    = "runtime_versions"
	FieldBuildContainerSize = "build_container_size"
	FieldEnvironmentVars    = "environment_variables"
	FieldInstallCommands    = "install_commands"
	FieldPreBuildCommands   = "pre_build_commands"
	FieldBuildCommands      = "build_commands"
	FieldPostBuildCommands  = "post_build_commands"
	FieldBuildspecArtifacts = "buildspec_artifacts"
	FieldPrivilegedMode     = "privileged_mode"
	FieldArtifacts          = "artifacts"
	FieldSourcedFromS3      = "sourced_from_s3"
	FieldS3Bucket           = "s3_bucket"
	FieldS3Object           = "s3_object"
	FieldSource             = "source"
	FieldTags               = "tags"

	// TrustFull marks a definition as already validated and eligible for the short-circuit.
	TrustFull = "full"
)

// Definition is the caller-supplied, loosely typed description of the desired project.
// Accessors treat absent and null fields alike and report shape mismatches as errors.
type Definition map[string]any

// String returns a string field, or "" if unset.
func (d Definition) String(key string) (string, error) {
	switch v := d[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", shapeError(key, "string", v)
	}
}

// Bool returns a boolean field, or def if unset.
func (d Definition) Bool(key string, def bool) (bool, error) {
	switch v := d[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	default:
		return false, shapeError(key, "bool", v)
	}
}

// StringList returns a list-of-strings field, or nil if unset.
func (d Definition) StringList(key string) ([]string, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, shapeError(fmt.Sprintf("%s[%d]", key, i), "string", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, shapeError(key, "list", v)
	}
}

// Map returns a mapping field, or nil if unset.
func (d Definition) Map(key string) (map[string]any, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case Definition:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = e
		}
		return out, nil
	default:
		return nil, shapeError(key, "mapping", v)
	}
}

// StringMap returns a mapping field with scalar values rendered as strings, or nil if unset.
func (d Definition) StringMap(key string) (map[string]string, error) {
	m, err := d.Map(key)
	if err != nil || m == nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := scalarString(v)
		if !ok {
			return nil, shapeError(key+"."+k, "scalar", v)
		}
		out[k] = s
	}
	return out, nil
}

// TrustLevel returns the declared trust level, ignoring malformed values.
func (d Definition) TrustLevel() string {
	s, _ := d[FieldTrustLevel].(string)
	return s
}

// Without returns a shallow copy of d lacking the given keys.
func (d Definition) Without(keys ...string) Definition {
	out := make(Definition, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// CanonicalJSON encodes d with sorted keys so equal definitions encode identically
// regardless of key order or numeric representation.
func (d Definition) CanonicalJSON() ([]byte, error) {
	if d == nil {
		d = Definition{}
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, errors.Wrap(err, "encoding definition")
	}
	// Round-trip so nested values decoded from different sources share one representation.
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, errors.Wrap(err, "decoding definition")
	}
	return json.Marshal(generic)
}

// decodeInto converts a generic mapping into a typed struct via its JSON form.
// Keys with no corresponding struct field are an error.
func decodeInto(m map[string]any, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

func shapeError(key, want string, got any) error {
	return &ConfigError{Field: key, Reason: fmt.Sprintf("expected %s, got %T", want, got)}
}

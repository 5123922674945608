// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package image selects a build environment image able to provide a set of language runtimes.
package image

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoImage is returned when no catalog image provides every requested runtime.
var ErrNoImage = errors.New("no image satisfies the requested runtimes")

// Image is a build environment image and the runtime tokens it provides.
type Image struct {
	Name     string
	Runtimes []string
}

// Provides reports whether every token is among the image's runtimes.
func (i Image) Provides(tokens []string) bool {
	for _, t := range tokens {
		if !slices.Contains(i.Runtimes, t) {
			return false
		}
	}
	return true
}

// Catalog is an ordered list of images. Resolution picks the first match, so order matters.
type Catalog []Image

// Resolve returns the first image providing every requested runtime.
// An empty request is satisfied by the first image.
func (c Catalog) Resolve(runtimes map[string]any) (string, error) {
	tokens, err := Tokens(runtimes)
	if err != nil {
		return "", err
	}
	for _, img := range c {
		if img.Provides(tokens) {
			return img.Name, nil
		}
	}
	return "", errors.Wrapf(ErrNoImage, "runtimes %v", tokens)
}

// Tokens converts a runtime→version mapping into sorted capability tokens.
func Tokens(runtimes map[string]any) ([]string, error) {
	var tokens []string
	for runtime, version := range runtimes {
		t, err := Token(runtime, version)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	slices.Sort(tokens)
	return tokens, nil
}

// Token returns the capability token for a runtime at a version, e.g. "python3.9".
func Token(runtime string, version any) (string, error) {
	v, err := Version(version)
	if err != nil {
		return "", errors.Wrapf(err, "runtime %s", runtime)
	}
	return runtime + v, nil
}

// Version normalizes a runtime version given as a string or a number.
func Version(version any) (string, error) {
	switch v := version.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported version type %T", version)
	}
}

// Arch is the CPU architecture of an image.
type Arch string

const (
	ArchX86 Arch = "x86_64"
	ArchARM Arch = "aarch64"
)

// Architecture infers the CPU architecture from an image name.
func Architecture(name string) Arch {
	n := strings.ToLower(name)
	if strings.Contains(n, "aarch64") || strings.Contains(n, "arm64") || strings.Contains(n, "-arm-") {
		return ArchARM
	}
	return ArchX86
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package serviceid identifies the source a service binary was built from, given a
// repository URI and a Go module pseudo-version embedded at build time:
//
//	$ go build -ldflags "-X main.BuildRepo=... -X main.BuildVersion=..."
package serviceid

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var goPseudoVersion = regexp.MustCompile(`^v0\.0\.0-\d{14}-[a-f0-9]{12}$`)

// Source is the repository and commit-derived version of a service build.
type Source struct {
	Repo string `json:"repo"`
	Ref  string `json:"ref"`
}

// Parse validates and canonicalizes the embedded build identifiers.
func Parse(repo, version string) (Source, error) {
	if repo == "" {
		return Source{}, errors.New("empty repo")
	}
	u, err := url.Parse(repo)
	if err != nil {
		return Source{}, errors.Wrap(err, "parsing repo URI")
	}
	switch u.Scheme {
	case "file":
	case "http", "https":
		u.Scheme = "https"
		u.Host = strings.ToLower(u.Host)
		u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), ".git")
	default:
		return Source{}, errors.Errorf("unsupported scheme for repo '%s'", repo)
	}
	if !goPseudoVersion.MatchString(version) {
		return Source{}, errors.New("version must be a go mod pseudo-version: https://go.dev/ref/mod#pseudo-versions")
	}
	return Source{Repo: u.String(), Ref: version}, nil
}

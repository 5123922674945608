// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"fmt"
	"net/url"
	"slices"
)

// FormatTags converts a tag mapping into the provider's list form, ordered by key.
func FormatTags(tags map[string]string) []Tag {
	if len(tags) == 0 {
		return nil
	}
	var out []Tag
	for k, v := range tags {
		out = append(out, Tag{Key: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Tag) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return out
}

// UnformatTags converts the provider's list form into a mapping.
func UnformatTags(tags []Tag) map[string]string {
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[t.Key] = t.Value
	}
	return out
}

// ConsoleURL returns the console location of the named project.
func ConsoleURL(name, region string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "console.aws.amazon.com",
		Path:   "/codesuite/codebuild/projects/" + name,
	}
	if region != "" {
		u.RawQuery = url.Values{"region": {region}}.Encode()
	}
	return u.String()
}

// ARN returns the resource name of the named project.
func ARN(region, account, name string) string {
	return fmt.Sprintf("arn:aws:codebuild:%s:%s:project/%s", region, account, name)
}

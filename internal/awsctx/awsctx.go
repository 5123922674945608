// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package awsctx resolves the account and region that reconciliations run against.
package awsctx

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/build-reconciler/internal/cache"
	"github.com/pkg/errors"
)

// Context identifies the account and region requests are issued in.
type Context struct {
	Account string
	Region  string
}

// LoadConfig loads the default AWS configuration, overriding the region when non-empty.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "loading AWS config")
	}
	return cfg, nil
}

// IdentityClient is the subset of the STS client used to discover the caller's account.
type IdentityClient interface {
	GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Resolver discovers and caches the account context for a region.
type Resolver struct {
	Client IdentityClient
	Region string
	cache  cache.Coalescing[string, Context]
}

// NewResolver returns a Resolver using the given configuration.
func NewResolver(cfg aws.Config) *Resolver {
	return &Resolver{Client: sts.NewFromConfig(cfg), Region: cfg.Region}
}

// Resolve returns the caller's account and the configured region.
func (r *Resolver) Resolve(ctx context.Context) (Context, error) {
	return r.cache.GetOrSet(r.Region, func() (Context, error) {
		out, err := r.Client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return Context{}, errors.Wrap(err, "getting caller identity")
		}
		return Context{Account: aws.ToString(out.Account), Region: r.Region}, nil
	})
}

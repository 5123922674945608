// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package oauth provides HTTP clients authenticated to the reconciler service.
package oauth

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
	gapihttp "google.golang.org/api/transport/http"
)

// IDClient returns a client attaching an ID token for audience to each request.
// Service account credentials mint audience-bound tokens. User credentials,
// which idtoken does not accept, fall back to the id_token of the user's grant.
func IDClient(ctx context.Context, audience string) (*http.Client, error) {
	if c, err := idtoken.NewClient(ctx, audience); err == nil {
		return c, nil
	}
	ts, err := google.DefaultTokenSource(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "finding default credentials")
	}
	ht := http.DefaultTransport.(*http.Transport).Clone()
	ht.MaxIdleConnsPerHost = 16
	t, err := gapihttp.NewTransport(ctx, ht, option.WithTokenSource(UserIDTokenSource(ts)))
	if err != nil {
		return nil, errors.Wrap(err, "creating transport")
	}
	return &http.Client{Transport: t}, nil
}

// UserIDTokenSource exposes the id_token carried by tokens from ts as the access token.
func UserIDTokenSource(ts oauth2.TokenSource) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, idTokenSource{ts})
}

type idTokenSource struct {
	oauth2.TokenSource
}

func (s idTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.TokenSource.Token()
	if err != nil {
		return nil, err
	}
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, errors.New("token did not contain an id_token")
	}
	return &oauth2.Token{AccessToken: idToken, TokenType: "Bearer", Expiry: token.Expiry}, nil
}

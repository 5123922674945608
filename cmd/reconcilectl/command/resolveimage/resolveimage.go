// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolveimage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/build-reconciler/pkg/act/cli"
	"github.com/google/build-reconciler/pkg/image"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for the resolve-image command.
type Config struct {
	Runtimes map[string]any
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	for rt := range c.Runtimes {
		if rt == "" {
			return errors.New("runtime name is required")
		}
	}
	return nil
}

// Result is the image selected for the requested runtimes.
type Result struct {
	Image  string   `json:"image"`
	Tokens []string `json:"tokens"`
}

// Deps holds dependencies for the command.
type Deps struct {
	IO      cli.IO
	Catalog image.Catalog
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{Catalog: image.DefaultCatalog}, nil
}

func parseArgs(cfg *Config, args []string) error {
	cfg.Runtimes = make(map[string]any, len(args))
	for _, arg := range args {
		rt, version, ok := strings.Cut(arg, "=")
		if !ok || version == "" {
			return errors.Errorf("expected <runtime>=<version>, got %q", arg)
		}
		cfg.Runtimes[rt] = version
	}
	return nil
}

// Handler selects the first catalog image providing every requested runtime.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*Result, error) {
	tokens, err := image.Tokens(cfg.Runtimes)
	if err != nil {
		return nil, err
	}
	img, err := deps.Catalog.Resolve(cfg.Runtimes)
	if err != nil {
		return nil, err
	}
	return &Result{Image: img, Tokens: tokens}, nil
}

func render(cio cli.IO, r *Result) error {
	_, err := fmt.Fprintln(cio.Out, r.Image)
	return err
}

// Command creates a new resolve-image command instance.
func Command() *cobra.Command {
	cfg := Config{}
	return &cobra.Command{
		Use:   "resolve-image [<runtime>=<version>...]",
		Short: "Print the build image providing the given runtimes",
		RunE: cli.RunE(
			&cfg,
			parseArgs,
			InitDeps,
			Handler,
			render,
		),
	}
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"

	"github.com/google/build-reconciler/pkg/act"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type Deps interface {
	SetIO(IO)
}

// ParseArgs populates an Input from positional arguments.
type ParseArgs[I act.Input] func(in *I, args []string) error

// SkipArgs is a ParseArgs that sets no arguments.
func SkipArgs[I act.Input](cfg *I, args []string) error {
	return nil
}

// Render writes an action's output to the command's streams.
type Render[O any] func(IO, *O) error

// JSON is a Render that writes the output as indented JSON.
func JSON[O any](cio IO, o *O) error {
	enc := json.NewEncoder(cio.Out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(o), "encoding output")
}

// RunE constructs a cobra.Command.RunE from act components.
// Arguments are parsed into cfg and validated before dependencies are
// initialized. A nil render discards the output.
func RunE[I act.Input, O any, D Deps](
	cfg *I,
	parseArgs ParseArgs[I],
	initDeps act.InitDeps[D],
	action act.Action[I, O, D],
	render Render[O],
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := parseArgs(cfg, args); err != nil {
			return err
		}
		if err := (*cfg).Validate(); err != nil {
			return err
		}
		deps, err := initDeps(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "initializing dependencies")
		}
		cio := IO{
			In:  cmd.InOrStdin(),
			Out: cmd.OutOrStdout(),
			Err: cmd.ErrOrStderr(),
		}
		deps.SetIO(cio)
		o, err := action(cmd.Context(), *cfg, deps)
		if err != nil {
			return err
		}
		if render == nil || o == nil {
			return nil
		}
		return render(cio, o)
	}
}

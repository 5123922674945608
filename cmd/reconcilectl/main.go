// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// main contains the reconcilectl CLI for reconciling components locally or through the service.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/google/build-reconciler/cmd/reconcilectl/command/component"
	"github.com/google/build-reconciler/cmd/reconcilectl/command/resolveimage"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reconcilectl [subcommand]",
	Short: "A CLI tool for reconciling build projects",
	// Errors are printed by main.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(component.Command("upsert", "Create or update the project for a component", reconcile.OpUpsert, false))
	rootCmd.AddCommand(component.Command("delete", "Delete the project for a component", reconcile.OpDelete, false))
	rootCmd.AddCommand(component.Command("plan", "Show the changes an upsert would make", reconcile.OpUpsert, true))
	rootCmd.AddCommand(resolveimage.Command())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

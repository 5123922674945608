// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package component implements the upsert, delete and plan commands.
package component

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-logr/stdr"
	"github.com/google/build-reconciler/internal/api/reconcileservice"
	"github.com/google/build-reconciler/internal/awsctx"
	"github.com/google/build-reconciler/internal/codebuild"
	"github.com/google/build-reconciler/internal/httpx"
	"github.com/google/build-reconciler/internal/oauth"
	"github.com/google/build-reconciler/internal/state"
	"github.com/google/build-reconciler/pkg/act/api"
	"github.com/google/build-reconciler/pkg/act/cli"
	"github.com/google/build-reconciler/pkg/defset"
	"github.com/google/build-reconciler/pkg/project"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds all configuration for a component command.
type Config struct {
	Operation       reconcile.Operation
	DryRun          bool
	Component       string
	Project         string
	Repo            string
	Definitions     string
	DefinitionsRef  string
	DefinitionsPath string
	StateDir        string
	API             string
	Region          string
	ServiceRole     string
	Output          string
}

// Validate ensures the configuration is valid.
func (c Config) Validate() error {
	switch c.Operation {
	case reconcile.OpUpsert, reconcile.OpDelete:
	default:
		return errors.Errorf("unknown operation %q", c.Operation)
	}
	if c.Component == "" {
		return errors.New("component is required")
	}
	if c.Project == "" {
		return errors.New("project is required")
	}
	if c.Repo == "" {
		return errors.New("repo is required")
	}
	if c.Definitions == "" {
		return errors.New("definitions is required")
	}
	if c.API != "" && c.StateDir != "" {
		return errors.New("state-dir is not supported with api; the service records state")
	}
	if !slices.Contains([]string{"summary", "json"}, c.Output) {
		return errors.Errorf("unknown output %q. Expected one of 'summary' or 'json'", c.Output)
	}
	return nil
}

func (c Config) identity() reconcile.Identity {
	return reconcile.Identity{Project: c.Project, Repo: c.Repo, Component: c.Component, Region: c.Region}
}

// Version is reported to the service in the User-Agent header.
// Set at link time with -ldflags "-X github.com/google/build-reconciler/cmd/reconcilectl/command/component.Version=...".
var Version = "dev"

// Deps holds dependencies for the command.
type Deps struct {
	IO cli.IO
	// NewAPI connects to the provider for local reconciliation.
	NewAPI func(ctx context.Context, region string) (project.API, error)
	// NewClient returns the HTTP client used to reach the service at u.
	NewClient func(ctx context.Context, u *url.URL) (httpx.BasicClient, error)
}

func (d *Deps) SetIO(cio cli.IO) { d.IO = cio }

// InitDeps initializes Deps.
func InitDeps(context.Context) (*Deps, error) {
	return &Deps{
		NewAPI: func(ctx context.Context, region string) (project.API, error) {
			cfg, err := awsctx.LoadConfig(ctx, region)
			if err != nil {
				return nil, err
			}
			return codebuild.New(cfg), nil
		},
		NewClient: func(ctx context.Context, u *url.URL) (httpx.BasicClient, error) {
			var c httpx.BasicClient = http.DefaultClient
			if strings.Contains(u.Host, "run.app") {
				u.Scheme = "https"
				idc, err := oauth.IDClient(ctx, u.Scheme+"://"+u.Host)
				if err != nil {
					return nil, err
				}
				c = idc
			}
			return &httpx.WithUserAgent{BasicClient: c, UserAgent: "reconcilectl/" + Version}, nil
		},
	}, nil
}

func isRemote(loc string) bool {
	return strings.Contains(loc, "://") || strings.HasPrefix(loc, "git@")
}

func openDefinitions(ctx context.Context, cfg Config) (defset.DefinitionSet, error) {
	if !isRemote(cfg.Definitions) {
		return defset.NewFilesystemDefinitionSet(osfs.New(cfg.Definitions)), nil
	}
	opts := &defset.GitOptions{
		CloneOptions: git.CloneOptions{URL: cfg.Definitions, Depth: 1, SingleBranch: true},
		RelativePath: cfg.DefinitionsPath,
	}
	if cfg.DefinitionsRef != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(cfg.DefinitionsRef)
	}
	return defset.NewGitDefinitionSet(ctx, opts)
}

// Handler reconciles or previews a single component.
func Handler(ctx context.Context, cfg Config, deps *Deps) (*reconcile.Response, error) {
	defs, err := openDefinitions(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "opening definitions")
	}
	def, err := defs.Get(ctx, cfg.Component)
	if errors.Is(err, defset.ErrNotFound) && cfg.Operation == reconcile.OpDelete {
		// The project name is derived from the identity alone.
		def = reconcile.Definition{}
	} else if err != nil {
		return nil, err
	}
	req := reconcile.Request{Operation: cfg.Operation, Definition: def, Identity: cfg.identity()}
	if cfg.API != "" {
		return handleRemote(ctx, cfg, deps, req)
	}
	return handleLocal(ctx, cfg, deps, req)
}

func handleLocal(ctx context.Context, cfg Config, deps *Deps, req reconcile.Request) (*reconcile.Response, error) {
	providerAPI, err := deps.NewAPI(ctx, cfg.Region)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to provider")
	}
	sd := &reconcileservice.ReconcileDeps{
		Engine: &reconcile.Engine{
			API:         providerAPI,
			ServiceRole: cfg.ServiceRole,
			Log:         stdr.New(log.New(deps.IO.Err, "", 0)),
		},
	}
	if cfg.StateDir != "" {
		sd.State = state.NewFilesystemStore(osfs.New(cfg.StateDir))
	}
	if cfg.DryRun {
		return reconcileservice.Plan(ctx, req, sd)
	}
	return reconcileservice.Reconcile(ctx, req, sd)
}

func handleRemote(ctx context.Context, cfg Config, deps *Deps, req reconcile.Request) (*reconcile.Response, error) {
	u, err := url.Parse(cfg.API)
	if err != nil {
		return nil, errors.Wrap(err, "parsing API endpoint")
	}
	client, err := deps.NewClient(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "creating HTTP client")
	}
	endpoint := "reconcile"
	if cfg.DryRun {
		endpoint = "plan"
	}
	stub := api.Stub[reconcile.Request, reconcile.Response](client, u.JoinPath(endpoint))
	resp, err := stub(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", endpoint)
	}
	return resp, nil
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Summary renders a response for a terminal.
func Summary(cio cli.IO, resp *reconcile.Response) error {
	w := cio.Out
	for _, l := range resp.Logs {
		switch {
		case l.Error:
			fmt.Fprintf(w, "%s %s %s\n", red("error:"), l.Message, formatDetails(l.Details))
		case l.Warning:
			fmt.Fprintf(w, "%s %s %s\n", yellow("warning:"), l.Message, formatDetails(l.Details))
		}
	}
	fmt.Fprintf(w, "%s %s\n", bold("plan:"), resp.Plan)
	switch {
	case resp.Error != nil:
		fmt.Fprintf(w, "%s %s: %s\n", bold("result:"), red(resp.Error.Code), resp.Error.Message)
	case resp.RetryAfterSeconds > 0:
		fmt.Fprintf(w, "%s %s after %ds: %s\n", bold("result:"), yellow("retry"), resp.RetryAfterSeconds, resp.RetryReason)
	default:
		fmt.Fprintf(w, "%s %s\n", bold("result:"), green(string(resp.Outcome)))
	}
	for _, k := range sortedKeys(resp.Properties) {
		fmt.Fprintf(w, "  %s = %v\n", k, resp.Properties[k])
	}
	for _, k := range sortedKeys(resp.Links) {
		fmt.Fprintf(w, "  %s: %s\n", k, resp.Links[k])
	}
	if !resp.Succeeded() && resp.RetryAfterSeconds == 0 {
		return errors.New("reconciliation failed")
	}
	return nil
}

func formatDetails(d map[string]any) string {
	var parts []string
	for _, k := range sortedKeys(d) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d[k]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func parseArgs(cfg *Config, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly 1 argument: component")
	}
	cfg.Component = args[0]
	return nil
}

// Command creates a component command for the given operation.
// A dry run reports the plan without applying it.
func Command(use, short string, op reconcile.Operation, dryRun bool) *cobra.Command {
	cfg := Config{Operation: op, DryRun: dryRun}
	cmd := &cobra.Command{
		Use:   use + " <component> --definitions <DIR|GIT_URL> --project <CODE> --repo <ID> [--api <URI> | --state-dir <DIR>]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: cli.RunE(
			&cfg,
			parseArgs,
			InitDeps,
			Handler,
			func(cio cli.IO, resp *reconcile.Response) error {
				if cfg.Output == "json" {
					return cli.JSON(cio, resp)
				}
				return Summary(cio, resp)
			},
		),
	}
	cmd.Flags().AddGoFlagSet(flagSet(cmd.Name(), &cfg))
	return cmd
}

// flagSet returns the command-line flags for the Config struct.
func flagSet(name string, cfg *Config) *flag.FlagSet {
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	set.StringVar(&cfg.Project, "project", "", "the project code")
	set.StringVar(&cfg.Repo, "repo", "", "the application repo identifier")
	set.StringVar(&cfg.Definitions, "definitions", "", "directory or git URL holding <component>.yaml definitions")
	set.StringVar(&cfg.DefinitionsRef, "definitions-ref", "", "branch to read from a git definitions repository")
	set.StringVar(&cfg.DefinitionsPath, "definitions-path", "", "directory within a git definitions repository")
	set.StringVar(&cfg.StateDir, "state-dir", "", "directory in which to record state between local runs")
	set.StringVar(&cfg.API, "api", "", "reconciler service endpoint URI; reconciles locally when unset")
	set.StringVar(&cfg.Region, "region", "", "AWS region for local reconciliation")
	set.StringVar(&cfg.ServiceRole, "service-role", "", "IAM role ARN assumed by the project for local reconciliation")
	set.StringVar(&cfg.Output, "output", "summary", "output format [summary, json]")
	return set
}

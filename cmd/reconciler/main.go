// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// main serves the reconciler over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-logr/stdr"
	"github.com/google/build-reconciler/internal/api/reconcileservice"
	"github.com/google/build-reconciler/internal/awsctx"
	"github.com/google/build-reconciler/internal/codebuild"
	"github.com/google/build-reconciler/internal/config"
	"github.com/google/build-reconciler/internal/history"
	"github.com/google/build-reconciler/internal/state"
	"github.com/google/build-reconciler/internal/taskqueue"
	"github.com/google/build-reconciler/pkg/act/api"
	"github.com/google/build-reconciler/pkg/reconcile"
	"github.com/pkg/errors"
)

// Link-time configured service identity
var (
	// Repo from which the service was built
	BuildRepo string
	// Golang version identifier of the service container builds
	BuildVersion string
)

var (
	configPath = flag.String("config", "", "path to a TOML config file; flags take precedence")
	verbosity  = flag.Int("v", 0, "log verbosity")
	cfgFlags   = config.RegisterFlags(flag.CommandLine)
	cfg        config.Config
)

var reconcileDeps = sync.OnceValues(func() (*reconcileservice.ReconcileDeps, error) {
	ctx := context.Background()
	var d reconcileservice.ReconcileDeps
	awsCfg, err := awsctx.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	d.Engine = &reconcile.Engine{
		API:         codebuild.New(awsCfg),
		ServiceRole: cfg.ServiceRole,
		Log:         stdr.New(log.New(os.Stderr, "", log.LstdFlags)),
	}
	if cfg.Account != "" {
		fixed := awsctx.Context{Account: cfg.Account, Region: awsCfg.Region}
		d.AWSContext = func(context.Context) (awsctx.Context, error) { return fixed, nil }
	} else {
		d.AWSContext = awsctx.NewResolver(awsCfg).Resolve
	}
	switch loc := cfg.StateLocation; {
	case strings.HasPrefix(loc, "gs://"):
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "creating gcs client")
		}
		d.State = state.NewGCSStore(client, loc)
	case loc != "":
		d.State = state.NewFilesystemStore(osfs.New(loc))
	}
	if cfg.FirestoreProject != "" {
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, errors.Wrap(err, "creating firestore client")
		}
		d.History = &history.FirestoreRecorder{Client: client}
	}
	if cfg.TaskQueuePath != "" {
		d.Queue, err = taskqueue.NewQueue(ctx, cfg.TaskQueuePath, cfg.TaskQueueEmail)
		if err != nil {
			return nil, err
		}
		d.SelfURL = cfg.SelfURL
	}
	return &d, nil
})

func ReconcileInit(ctx context.Context) (*reconcileservice.ReconcileDeps, error) {
	return reconcileDeps()
}

func VersionInit(ctx context.Context) (*reconcileservice.VersionDeps, error) {
	return &reconcileservice.VersionDeps{BuildRepo: BuildRepo, BuildVersion: BuildVersion}, nil
}

func main() {
	flag.Parse()
	stdr.SetVerbosity(*verbosity)
	var err error
	cfg, err = config.Load(*configPath, cfgFlags)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("starting reconciler repo=%s version=%s region=%s", BuildRepo, BuildVersion, cfg.Region)
	http.HandleFunc("/reconcile", api.Handler(ReconcileInit, reconcileservice.Reconcile))
	http.HandleFunc("/plan", api.Handler(ReconcileInit, reconcileservice.Plan))
	http.HandleFunc("/version", api.Handler(VersionInit, reconcileservice.Version))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), nil); err != nil {
		log.Fatalln(err)
	}
}

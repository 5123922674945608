// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package config loads reconciler settings from a TOML file and command-line flags.
package config

import (
	"bytes"
	"flag"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config holds the settings shared by the reconciler binaries.
type Config struct {
	Region      string `toml:"region"`
	Account     string `toml:"account"`
	ServiceRole string `toml:"service_role"`
	// StateLocation is a gs:// URL or a local directory holding recorded state.
	StateLocation string `toml:"state_location"`
	// FirestoreProject enables attempt history when set.
	FirestoreProject string `toml:"firestore_project"`
	// TaskQueuePath and TaskQueueEmail enable scheduled retries when both set.
	TaskQueuePath  string `toml:"task_queue_path"`
	TaskQueueEmail string `toml:"task_queue_email"`
	SelfURL        string `toml:"self_url"`
	Port           int    `toml:"port"`
}

// Default returns the settings used for keys absent from both file and flags.
func Default() Config {
	return Config{Port: 8080}
}

func (c *Config) strings() map[string]*string {
	return map[string]*string{
		"region":            &c.Region,
		"account":           &c.Account,
		"service-role":      &c.ServiceRole,
		"state-location":    &c.StateLocation,
		"firestore-project": &c.FirestoreProject,
		"task-queue-path":   &c.TaskQueuePath,
		"task-queue-email":  &c.TaskQueueEmail,
		"self-url":          &c.SelfURL,
	}
}

var usage = map[string]string{
	"region":            "AWS region to manage projects in",
	"account":           "AWS account ID; discovered from credentials when unset",
	"service-role":      "IAM role ARN assumed by managed projects",
	"state-location":    "gs://bucket/prefix or directory for recorded state",
	"firestore-project": "GCP project for attempt history",
	"task-queue-path":   "Cloud Tasks queue for scheduled retries",
	"task-queue-email":  "service account used to authenticate scheduled retries",
	"self-url":          "URL at which this service receives scheduled retries",
}

// Flags binds each setting to a flag on fs. Values are applied by Load.
type Flags struct {
	fs     *flag.FlagSet
	values Config
}

// RegisterFlags registers the settings on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	for name, p := range f.values.strings() {
		fs.StringVar(p, name, "", usage[name])
	}
	fs.IntVar(&f.values.Port, "port", 0, "port on which to serve HTTP")
	return f
}

// Load reads the TOML file at path, if any, over the defaults and applies explicitly set flags on top.
func Load(path string, flags *Flags) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading config %s", path)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing config %s", path)
		}
	}
	if flags != nil {
		set := flags.values.strings()
		dst := cfg.strings()
		flags.fs.Visit(func(f *flag.Flag) {
			if p, ok := set[f.Name]; ok {
				*dst[f.Name] = *p
			} else if f.Name == "port" {
				cfg.Port = flags.values.Port
			}
		})
	}
	return cfg, cfg.Validate()
}

// Parse decodes TOML settings into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Validate checks that dependent settings are provided together.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if (c.TaskQueuePath == "") != (c.TaskQueueEmail == "") {
		return errors.New("task_queue_path and task_queue_email must be set together")
	}
	if c.TaskQueuePath != "" && c.SelfURL == "" {
		return errors.New("self_url is required for scheduled retries")
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "reconciler.toml")
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad(t *testing.T) {
	file := writeConfig(t, `
region = "eu-west-1"
service_role = "arn:aws:iam::123456789012:role/build"
state_location = "gs://state/reconciler"
port = 9000
`)
	for _, tc := range []struct {
		name    string
		path    string
		args    []string
		want    Config
		wantErr string
	}{
		{
			name: "defaults",
			want: Config{Port: 8080},
		},
		{
			name: "file",
			path: file,
			want: Config{Region: "eu-west-1", ServiceRole: "arn:aws:iam::123456789012:role/build", StateLocation: "gs://state/reconciler", Port: 9000},
		},
		{
			name: "flags override file",
			path: file,
			args: []string{"--region=us-west-2", "--port=8081"},
			want: Config{Region: "us-west-2", ServiceRole: "arn:aws:iam::123456789012:role/build", StateLocation: "gs://state/reconciler", Port: 8081},
		},
		{
			name: "explicitly empty flag clears file value",
			path: file,
			args: []string{"--state-location="},
			want: Config{Region: "eu-west-1", ServiceRole: "arn:aws:iam::123456789012:role/build", Port: 9000},
		},
		{
			name:    "queue without self url",
			args:    []string{"--task-queue-path=projects/p/locations/l/queues/q", "--task-queue-email=sa@p.iam.gserviceaccount.com"},
			wantErr: "self_url",
		},
		{
			name:    "queue without email",
			args:    []string{"--task-queue-path=projects/p/locations/l/queues/q"},
			wantErr: "must be set together",
		},
		{
			name:    "missing file",
			path:    filepath.Join(t.TempDir(), "absent.toml"),
			wantErr: "reading config",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			flags := RegisterFlags(fs)
			if err := fs.Parse(tc.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			got, err := Load(tc.path, flags)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseUnknownKey(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte(`regoin = "us-east-1"`), &cfg); err == nil {
		t.Error("Parse() accepted unknown key")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	want := Config{Region: "us-east-1", TaskQueuePath: "q", TaskQueueEmail: "sa", SelfURL: "https://x", Port: 8080}
	b, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var got Config
	if err := Parse(b, &got); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

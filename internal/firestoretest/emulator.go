// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package firestoretest runs a local Firestore emulator for tests.
package firestoretest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

// EmulatorHostEnv is read by the Firestore client to redirect traffic to an emulator.
const EmulatorHostEnv = "FIRESTORE_EMULATOR_HOST"

func freePort() (int, error) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func exited(cmd *exec.Cmd) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	return done
}

func waitReachable(ctx context.Context, addr string) <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for {
			if c, err := net.Dial("tcp", addr); err == nil {
				c.Close()
				close(ready)
				return
			}
			select {
			case <-time.After(300 * time.Millisecond):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ready
}

// NewClient starts an emulator and returns a client connected to it.
// The test is skipped when gcloud is not installed.
func NewClient(ctx context.Context, t *testing.T, project string) *firestore.Client {
	t.Helper()
	if _, err := exec.LookPath("gcloud"); err != nil {
		t.Skip("gcloud not available; skipping firestore emulator test")
	}
	port, err := freePort()
	if err != nil {
		t.Fatalf("freePort(): %v", err)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	cmd := exec.Command("gcloud", "emulators", "firestore", "start", "--host-port="+addr)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting firestore emulator: %v", err)
	}
	done := exited(cmd)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/shutdown", nil)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			cmd.Process.Kill()
		}
	})
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	select {
	case <-waitReachable(startCtx, addr):
	case <-done:
		t.Fatal(errors.Errorf("firestore emulator exited: %s", cmd.ProcessState))
	case <-startCtx.Done():
		t.Fatalf("waiting for firestore emulator: %v", startCtx.Err())
	}
	t.Setenv(EmulatorHostEnv, addr)
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		t.Fatalf("firestore.NewClient(): %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestCoalescingGetOrSetDel(t *testing.T) {
	var c Coalescing[string, int]
	if _, err := c.Get("key"); err != ErrNotExist {
		t.Fatalf("Get() on empty cache = %v, want ErrNotExist", err)
	}
	got, err := c.GetOrSet("key", func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("GetOrSet() = %d, %v", got, err)
	}
	got, err = c.GetOrSet("key", func() (int, error) { return 7, nil })
	if err != nil || got != 42 {
		t.Fatalf("GetOrSet() second call = %d, %v; want cached 42", got, err)
	}
	c.Del("key")
	if _, err := c.Get("key"); err != ErrNotExist {
		t.Fatalf("Get() after Del = %v, want ErrNotExist", err)
	}
}

func TestCoalescingErrorNotRetained(t *testing.T) {
	var c Coalescing[string, string]
	foo := errors.New("foo")
	if _, err := c.GetOrSet("key", func() (string, error) { return "", foo }); err != foo {
		t.Fatalf("GetOrSet() = %v, want foo", err)
	}
	if _, err := c.Get("key"); err != ErrNotExist {
		t.Fatalf("Get() after failure = %v, want ErrNotExist", err)
	}
	got, err := c.GetOrSet("key", func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("GetOrSet() retry = %q, %v", got, err)
	}
}

func TestCoalescingConcurrent(t *testing.T) {
	var c Coalescing[string, string]
	var calls atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := c.GetOrSet("key", func() (string, error) {
				calls.Add(1)
				time.Sleep(100 * time.Millisecond)
				return "value", nil
			})
			if err != nil || val != "value" {
				t.Errorf("GetOrSet() = %q, %v", val, err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
}

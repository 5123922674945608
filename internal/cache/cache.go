// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package cache provides an in-memory cache for values that are expensive to look up.
package cache

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNotExist is returned when a key does not exist in the cache.
var ErrNotExist = errors.New("does not exist")

// Coalescing is a typed memory cache that coalesces concurrent lookups for the same key.
// Failed lookups are not retained.
type Coalescing[K comparable, V any] struct {
	data sync.Map // K -> *entry[V]
}

type entry[V any] struct {
	get func() (V, error)
}

func (c *Coalescing[K, V]) valueOrClear(key K, e *entry[V]) (V, error) {
	val, err := e.get()
	if err != nil {
		c.data.CompareAndDelete(key, e)
	}
	return val, err
}

// Get returns the value for the given key.
func (c *Coalescing[K, V]) Get(key K) (V, error) {
	e, ok := c.data.Load(key)
	if !ok {
		var zero V
		return zero, ErrNotExist
	}
	return c.valueOrClear(key, e.(*entry[V]))
}

// GetOrSet returns the value for the given key, calling fetch to populate it if absent.
// Simultaneous callers for the same key share a single fetch.
func (c *Coalescing[K, V]) GetOrSet(key K, fetch func() (V, error)) (V, error) {
	e, _ := c.data.LoadOrStore(key, &entry[V]{get: sync.OnceValues(fetch)})
	return c.valueOrClear(key, e.(*entry[V]))
}

// Del deletes the value for the given key.
func (c *Coalescing[K, V]) Del(key K) {
	c.data.Delete(key)
}

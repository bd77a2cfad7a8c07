// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package engine

import (
	"context"
	"sync"

	"github.com/poiesic/docflow/core"
)

// CacheSlot is a single-writer, any-reader hand-off of items within one
// run. Readers block until the writer closes the slot, so the two sides may
// live in disconnected components of the graph.
type CacheSlot struct {
	name string

	mu     sync.Mutex
	items  []*core.DataValue
	closed bool
	done   chan struct{}
}

func newCacheSlot(name string) *CacheSlot {
	return &CacheSlot{name: name, done: make(chan struct{})}
}

// Name returns the slot's name.
func (s *CacheSlot) Name() string { return s.name }

// Write appends items. Writing after Close fails with CacheSlotClosedError.
func (s *CacheSlot) Write(items ...*core.DataValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &CacheSlotClosedError{Slot: s.name}
	}
	s.items = append(s.items, items...)
	return nil
}

// Close marks the slot complete and releases blocked readers. Idempotent.
func (s *CacheSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Read blocks until the slot is closed, then returns its items.
func (s *CacheSlot) Read(ctx context.Context) ([]*core.DataValue, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*core.DataValue(nil), s.items...), nil
}

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


// Package memory is an in-memory connector for tests.
package memory

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/poiesic/docflow/connector"
	"github.com/poiesic/docflow/core"
)

// Store holds data values per locator. It implements both connector.Reader
// and connector.Writer and is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[string][]*core.DataValue
}

// New creates an empty store.
func New() *Store {
	return &Store{items: make(map[string][]*core.DataValue)}
}

var (
	_ connector.Reader = (*Store)(nil)
	_ connector.Writer = (*Store)(nil)
)

// Seed replaces the items stored under a locator.
func (s *Store) Seed(locator string, items ...*core.DataValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[locator] = append([]*core.DataValue(nil), items...)
}

// Items returns a snapshot of the items stored under a locator.
func (s *Store) Items(locator string) []*core.DataValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*core.DataValue(nil), s.items[locator]...)
}

// Read streams the locator's items in ascending path order. The cursor is
// the path of the last item yielded.
func (s *Store) Read(ctx context.Context, locator string, resume connector.Cursor) (connector.ItemStream, error) {
	s.mu.RLock()
	snapshot := make([]*core.DataValue, 0, len(s.items[locator]))
	for _, item := range s.items[locator] {
		if string(resume) != "" && item.Path <= string(resume) {
			continue
		}
		snapshot = append(snapshot, item.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Path < snapshot[j].Path })
	return &sliceStream{items: snapshot}, nil
}

// Write appends clones of the items under the locator.
func (s *Store) Write(ctx context.Context, locator string, items []*core.DataValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		s.items[locator] = append(s.items[locator], item.Clone())
	}
	return nil
}

type sliceStream struct {
	items []*core.DataValue
	pos   int
}

func (st *sliceStream) Next(ctx context.Context) (*core.DataValue, connector.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if st.pos >= len(st.items) {
		return nil, "", io.EOF
	}
	item := st.items[st.pos]
	st.pos++
	return item, connector.Cursor(item.Path), nil
}

func (st *sliceStream) Close() error { return nil }

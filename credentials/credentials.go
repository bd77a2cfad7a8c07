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


// Package credentials holds provider credentials resolved at workflow
// compile time. The registry is read-only for the lifetime of a compile or
// run; rotation happens by building a new registry.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrNotFound indicates the registry has no entry for the requested id.
var ErrNotFound = errors.New("credentials not found")

// ProviderKind identifies the class of external system a credential
// authenticates against.
type ProviderKind string

const (
	ProviderObjectStore ProviderKind = "object_store"
	ProviderRelational  ProviderKind = "relational"
	ProviderVector      ProviderKind = "vector"
	ProviderInference   ProviderKind = "inference"
)

// ProviderCredentials is a single credential entry. Values holds the
// provider-specific material (endpoint, keys, tokens) keyed by field name.
type ProviderCredentials struct {
	ID     uuid.UUID         `json:"id"`
	Kind   ProviderKind      `json:"kind"`
	Name   string            `json:"name,omitempty"`
	Values map[string]string `json:"values"`
}

// Value returns a named field of the credential material.
func (c *ProviderCredentials) Value(key string) (string, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Registry maps credential ids to their material. It is immutable after
// construction and safe for concurrent readers.
type Registry struct {
	entries map[uuid.UUID]ProviderCredentials
}

// NewRegistry builds a registry from the given entries. Later duplicates of
// the same id win.
func NewRegistry(entries ...ProviderCredentials) *Registry {
	m := make(map[uuid.UUID]ProviderCredentials, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return &Registry{entries: m}
}

// Get returns the credentials stored under id, or ErrNotFound.
func (r *Registry) Get(id uuid.UUID) (*ProviderCredentials, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &e, nil
}

// Has reports whether the registry holds an entry for id.
func (r *Registry) Has(id uuid.UUID) bool {
	if r == nil {
		return false
	}
	_, ok := r.entries[id]
	return ok
}

// IDs returns every entry's id in ascending byte order.
func (r *Registry) IDs() []uuid.UUID {
	if r == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

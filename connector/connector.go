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


// Package connector defines the data source and sink seams workflow input
// and output nodes run against. Implementations live in subpackages; the
// engine resolves them through a Registry keyed by credentials id.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/core"
)

var (
	// ErrNoReader indicates no reader is registered for a credentials id.
	ErrNoReader = errors.New("no reader registered")

	// ErrNoWriter indicates no writer is registered for a credentials id.
	ErrNoWriter = errors.New("no writer registered")
)

// Cursor marks a position within a stream so a read can resume after an
// interruption. Cursors are opaque to callers and only meaningful to the
// Reader that produced them. The empty cursor means "from the start".
type Cursor string

// ItemStream yields data values one at a time, each paired with the cursor
// to resume after it. Next returns io.EOF once the stream is exhausted.
type ItemStream interface {
	Next(ctx context.Context) (*core.DataValue, Cursor, error)
	Close() error
}

// Reader reads the items a locator identifies within an external provider
// (bucket prefix, table, collection).
type Reader interface {
	Read(ctx context.Context, locator string, resume Cursor) (ItemStream, error)
}

// Writer persists items under a locator within an external provider.
type Writer interface {
	Write(ctx context.Context, locator string, items []*core.DataValue) error
}

// ReadAll drains a stream and closes it.
func ReadAll(ctx context.Context, stream ItemStream) ([]*core.DataValue, error) {
	defer stream.Close()

	var items []*core.DataValue
	for {
		item, _, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// Registry maps credential ids to the connector endpoints constructed from
// them. It is populated at startup and read-only afterwards.
type Registry struct {
	readers map[uuid.UUID]Reader
	writers map[uuid.UUID]Writer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[uuid.UUID]Reader),
		writers: make(map[uuid.UUID]Writer),
	}
}

// RegisterReader binds a reader to a credentials id. Returns the registry
// for chaining.
func (r *Registry) RegisterReader(id uuid.UUID, reader Reader) *Registry {
	r.readers[id] = reader
	return r
}

// RegisterWriter binds a writer to a credentials id. Returns the registry
// for chaining.
func (r *Registry) RegisterWriter(id uuid.UUID, writer Writer) *Registry {
	r.writers[id] = writer
	return r
}

// Reader returns the reader bound to id, or ErrNoReader.
func (r *Registry) Reader(id uuid.UUID) (Reader, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoReader, id)
	}
	reader, ok := r.readers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReader, id)
	}
	return reader, nil
}

// Writer returns the writer bound to id, or ErrNoWriter.
func (r *Registry) Writer(id uuid.UUID) (Writer, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoWriter, id)
	}
	writer, ok := r.writers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoWriter, id)
	}
	return writer, nil
}

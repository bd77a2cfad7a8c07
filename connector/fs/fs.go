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


// Package fs is a filesystem connector. Locators are directories relative
// to the connector's root; the resume cursor is the last file name yielded,
// which works because directory listings are read in sorted order.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/poiesic/docflow/connector"
	"github.com/poiesic/docflow/core"
)

// Connector reads and writes data values as files under a root directory.
type Connector struct {
	root string
}

// New creates a filesystem connector rooted at dir.
func New(dir string) *Connector {
	return &Connector{root: dir}
}

var (
	_ connector.Reader = (*Connector)(nil)
	_ connector.Writer = (*Connector)(nil)
)

// Read lists the regular files directly under root/locator in name order
// and streams their contents. A non-empty resume cursor skips every file
// up to and including the named one.
func (c *Connector) Read(ctx context.Context, locator string, resume connector.Cursor) (connector.ItemStream, error) {
	dir := filepath.Join(c.root, filepath.FromSlash(locator))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if string(resume) != "" && e.Name() <= string(resume) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return &dirStream{dir: dir, names: names}, nil
}

// Write stores each item under root/locator using the item's path. Parent
// directories are created as needed.
func (c *Connector) Write(ctx context.Context, locator string, items []*core.DataValue) error {
	base := filepath.Join(c.root, filepath.FromSlash(locator))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		target := filepath.Join(base, filepath.FromSlash(item.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, item.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
	}
	return nil
}

type dirStream struct {
	dir   string
	names []string
	pos   int
}

func (s *dirStream) Next(ctx context.Context) (*core.DataValue, connector.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if s.pos >= len(s.names) {
		return nil, "", io.EOF
	}

	name := s.names[s.pos]
	s.pos++

	content, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", name, err)
	}
	return core.NewDataValue(name, content), connector.Cursor(name), nil
}

func (s *dirStream) Close() error { return nil }

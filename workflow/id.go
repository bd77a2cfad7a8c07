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


package workflow

import (
	"bytes"

	"github.com/google/uuid"
)

// NodeId is an opaque 128-bit identifier for a node within a workflow.
// It carries identity only; edges reference nodes exclusively by it.
type NodeId uuid.UUID

// NewNodeId generates a fresh random node identifier.
func NewNodeId() NodeId {
	return NodeId(uuid.New())
}

// String returns the canonical UUID string form.
func (id NodeId) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the id is the zero value.
func (id NodeId) IsZero() bool {
	return id == NodeId{}
}

// Compare orders ids by ascending byte value. Used to break ties in the
// topological order so it is reproducible across runs.
func (id NodeId) Compare(other NodeId) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler, allowing NodeId to be
// used as a JSON object key.
func (id NodeId) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeId) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = NodeId(u)
	return nil
}

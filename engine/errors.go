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
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/workflow"
)

var (
	// ErrBrokerRequired indicates a compiled graph has queued nodes but the
	// engine was built without a broker.
	ErrBrokerRequired = errors.New("queued execution requires a broker")

	// ErrProviderRequired indicates an inline node needs inference but the
	// engine was built without an AI provider.
	ErrProviderRequired = errors.New("inference requires an ai provider")

	// ErrNoInput indicates a provider-source input node has neither a
	// registered reader nor a run input value to fall back on.
	ErrNoInput = errors.New("input node has no data source")
)

// CredentialsNotFoundError indicates a node references a credentials id the
// registry does not hold.
type CredentialsNotFoundError struct {
	Node workflow.NodeId
	ID   uuid.UUID
}

func (e *CredentialsNotFoundError) Error() string {
	return fmt.Sprintf("node %s references unknown credentials %s", e.Node, e.ID)
}

// UnknownCacheSlotError indicates a cache slot with a writer but no reader,
// or a reader but no writer. Either way the slot can never carry data
// usefully within a run.
type UnknownCacheSlotError struct {
	Slot string
	Node workflow.NodeId
}

func (e *UnknownCacheSlotError) Error() string {
	return fmt.Sprintf("node %s uses unmatched cache slot %q", e.Node, e.Slot)
}

// InvalidCacheSlotError indicates a structurally unusable slot wiring, such
// as two writers or a writer downstream of its own reader.
type InvalidCacheSlotError struct {
	Slot   string
	Reason string
}

func (e *InvalidCacheSlotError) Error() string {
	return fmt.Sprintf("cache slot %q: %s", e.Slot, e.Reason)
}

// CacheSlotClosedError indicates a write to a slot whose writer already
// finished.
type CacheSlotClosedError struct {
	Slot string
}

func (e *CacheSlotClosedError) Error() string {
	return fmt.Sprintf("cache slot %q is closed", e.Slot)
}

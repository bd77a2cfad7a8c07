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

import "github.com/google/uuid"

// NodeType discriminates the closed set of node kinds.
type NodeType string

const (
	NodeTypeInput     NodeType = "input"
	NodeTypeTransform NodeType = "transform"
	NodeTypeOutput    NodeType = "output"
	NodeTypeSwitch    NodeType = "switch"
)

// Position is display-only canvas placement for workflow editors.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single vertex of a workflow definition. Type selects which of
// the spec fields is populated; the others must be nil.
type Node struct {
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Position    *Position `json:"position,omitempty"`
	Type        NodeType  `json:"type"`

	Input     *InputSpec     `json:"input,omitempty"`
	Transform *TransformSpec `json:"transform,omitempty"`
	Output    *OutputSpec    `json:"output,omitempty"`
	Switch    *SwitchSpec    `json:"switch,omitempty"`
}

// IsInput reports whether the node is an input node.
func (n *Node) IsInput() bool { return n.Type == NodeTypeInput }

// IsTransform reports whether the node is a transform node.
func (n *Node) IsTransform() bool { return n.Type == NodeTypeTransform }

// IsOutput reports whether the node is an output node.
func (n *Node) IsOutput() bool { return n.Type == NodeTypeOutput }

// IsSwitch reports whether the node is a switch node.
func (n *Node) IsSwitch() bool { return n.Type == NodeTypeSwitch }

// CredentialsID returns the provider credentials the node references, if any.
func (n *Node) CredentialsID() *uuid.UUID {
	switch {
	case n.Input != nil:
		return n.Input.CredentialsID
	case n.Output != nil:
		return n.Output.CredentialsID
	case n.Transform != nil:
		return n.Transform.CredentialsID
	}
	return nil
}

// SourceKind discriminates where an input node reads from.
type SourceKind string

const (
	// SourceProvider reads from an external connector (object store,
	// relational or vector database).
	SourceProvider SourceKind = "provider"
	// SourceCache reads from a named in-run cache slot.
	SourceCache SourceKind = "cache"
)

// InputSpec configures an input node.
type InputSpec struct {
	Source        SourceKind `json:"source"`
	CredentialsID *uuid.UUID `json:"credentialsId,omitempty"`
	// Locator identifies the data within the provider (bucket/prefix,
	// table, collection).
	Locator string `json:"locator,omitempty"`
	// Slot names the cache slot to read, when Source is SourceCache.
	Slot string `json:"slot,omitempty"`
}

// DestinationKind discriminates where an output node writes to.
type DestinationKind string

const (
	DestinationProvider DestinationKind = "provider"
	DestinationCache    DestinationKind = "cache"
)

// OutputSpec configures an output node.
type OutputSpec struct {
	Destination   DestinationKind `json:"destination"`
	CredentialsID *uuid.UUID      `json:"credentialsId,omitempty"`
	Locator       string          `json:"locator,omitempty"`
	Slot          string          `json:"slot,omitempty"`
	// Execution selects inline or queued execution; empty means the
	// compiler's per-kind default.
	Execution ExecutionMode `json:"execution,omitempty"`
}

// TransformKind is the closed vocabulary of transform operations.
type TransformKind string

const (
	TransformOCR                TransformKind = "ocr"
	TransformEmbedding          TransformKind = "embedding"
	TransformChunk              TransformKind = "chunk"
	TransformPartition          TransformKind = "partition"
	TransformThumbnail          TransformKind = "thumbnail"
	TransformValidateFormat     TransformKind = "validate_format"
	TransformPromptTask         TransformKind = "prompt_task"
	TransformAnnotate           TransformKind = "annotate"
	TransformFlattenAnnotations TransformKind = "flatten_annotations"
	TransformConvert            TransformKind = "convert"
	TransformCompress           TransformKind = "compress"
	TransformCleanup            TransformKind = "cleanup"
)

// TaskKind is the prompt-task vocabulary for TransformPromptTask.
type TaskKind string

const (
	TaskRedact    TaskKind = "redact"
	TaskTranslate TaskKind = "translate"
	TaskSummarize TaskKind = "summarize"
	TaskExtract   TaskKind = "extract"
)

// ExecutionMode selects whether a node runs inline within the engine or is
// published as a job onto its pipeline stage.
type ExecutionMode string

const (
	// ExecutionDefault lets the compiler pick per transform kind.
	ExecutionDefault ExecutionMode = ""
	ExecutionInline  ExecutionMode = "inline"
	ExecutionQueued  ExecutionMode = "queued"
)

// TransformSpec configures a transform node. Only the fields relevant to
// Kind are meaningful.
type TransformSpec struct {
	Kind          TransformKind `json:"kind"`
	Execution     ExecutionMode `json:"execution,omitempty"`
	CredentialsID *uuid.UUID    `json:"credentialsId,omitempty"`

	// Embedding
	Normalize bool `json:"normalize,omitempty"`

	// Chunk
	ChunkSize    int `json:"chunkSize,omitempty"`
	ChunkOverlap int `json:"chunkOverlap,omitempty"`

	// PromptTask
	Task   TaskKind `json:"task,omitempty"`
	Prompt string   `json:"prompt,omitempty"`

	// Annotate
	Annotations map[string]string `json:"annotations,omitempty"`

	// Convert
	TargetFormat string `json:"targetFormat,omitempty"`

	// Cleanup
	CleanupTasks []string `json:"cleanupTasks,omitempty"`
}

// SwitchSpec configures a switch node.
type SwitchSpec struct {
	Condition Condition `json:"condition"`
}

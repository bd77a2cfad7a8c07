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


package queue

import "github.com/poiesic/docflow/core"

// Payload is the stage-typed body of a Job. Each payload variant fixes the
// stage its jobs are routed to and carries an opaque correlation tag for
// completion events.
type Payload interface {
	Stage() Stage
	CorrelationNode() string
}

// PreprocessingData carries the options of a preprocessing job. Each step
// is gated by its own flag so a workflow can request any subset.
type PreprocessingData struct {
	// Node correlates the job back to the workflow node that emitted it.
	// Opaque to the pipeline.
	Node string `json:"node,omitempty"`

	Data *core.DataValue `json:"data,omitempty"`

	ValidateFormat     bool `json:"validateFormat,omitempty"`
	ExtractMetadata    bool `json:"extractMetadata,omitempty"`
	RunOCR             bool `json:"runOcr,omitempty"`
	GenerateEmbeddings bool `json:"generateEmbeddings,omitempty"`
	GenerateThumbnail  bool `json:"generateThumbnail,omitempty"`

	// Embedding options.
	Normalize    bool `json:"normalize,omitempty"`
	ChunkSize    int  `json:"chunkSize,omitempty"`
	ChunkOverlap int  `json:"chunkOverlap,omitempty"`
}

func (PreprocessingData) Stage() Stage { return StagePreprocessing }

func (d PreprocessingData) CorrelationNode() string { return d.Node }

// ProcessingData carries the options of a processing job: prompt-driven
// transformation and annotation application.
type ProcessingData struct {
	Node string `json:"node,omitempty"`

	Data *core.DataValue `json:"data,omitempty"`

	// Task is one of the fixed vocabulary: redact, translate, summarize,
	// extract. Empty means no prompt task.
	Task   string `json:"task,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// Annotations to apply, serialized as metadata patches.
	ApplyAnnotations bool              `json:"applyAnnotations,omitempty"`
	Annotations      map[string]string `json:"annotations,omitempty"`
}

func (ProcessingData) Stage() Stage { return StageProcessing }

func (d ProcessingData) CorrelationNode() string { return d.Node }

// PostprocessingData carries the options of a postprocessing job:
// annotation flattening, format conversion, compression, cleanup.
type PostprocessingData struct {
	Node string `json:"node,omitempty"`

	Data *core.DataValue `json:"data,omitempty"`

	FlattenAnnotations bool     `json:"flattenAnnotations,omitempty"`
	TargetFormat       string   `json:"targetFormat,omitempty"`
	Compress           bool     `json:"compress,omitempty"`
	CleanupTasks       []string `json:"cleanupTasks,omitempty"`
}

func (PostprocessingData) Stage() Stage { return StagePostprocessing }

func (d PostprocessingData) CorrelationNode() string { return d.Node }

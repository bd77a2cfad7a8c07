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
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/document"
	"github.com/poiesic/docflow/workflow"
)

// runTransformInline applies a transform to each input item within the
// engine process. Items are cloned so siblings sharing the same upstream
// output never observe each other's mutations.
func (e *Engine) runTransformInline(ctx context.Context, spec *workflow.TransformSpec, items []*core.DataValue) ([]*core.DataValue, error) {
	out := make([]*core.DataValue, 0, len(items))
	for _, item := range items {
		produced, err := e.applyTransform(ctx, spec, item.Clone())
		if err != nil {
			return nil, fmt.Errorf("%s transform: %w", spec.Kind, err)
		}
		out = append(out, produced...)
	}
	return out, nil
}

func (e *Engine) applyTransform(ctx context.Context, spec *workflow.TransformSpec, item *core.DataValue) ([]*core.DataValue, error) {
	switch spec.Kind {
	case workflow.TransformValidateFormat:
		if err := document.ValidateFormat(item); err != nil {
			return nil, err
		}
		return []*core.DataValue{item}, nil

	case workflow.TransformOCR:
		if e.provider == nil {
			return nil, ErrProviderRequired
		}
		text, err := e.provider.Vision().ProcessOCR(ctx, item.Content, item.ContentType)
		if err != nil {
			return nil, err
		}
		item.SetMeta(core.MetaOCRText, text)
		return []*core.DataValue{item}, nil

	case workflow.TransformEmbedding:
		if e.provider == nil {
			return nil, ErrProviderRequired
		}
		text := string(item.Content)
		if ocr, ok := item.Meta(core.MetaOCRText); ok {
			text = ocr
		}
		chunks, err := document.Chunk(text, spec.ChunkSize, spec.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		vectors, err := e.provider.Embedder().EmbedTexts(ctx, chunks)
		if err != nil {
			return nil, err
		}
		item.SetMeta("embedding_chunks", strconv.Itoa(len(vectors)))
		return []*core.DataValue{item}, nil

	case workflow.TransformChunk:
		chunks, err := document.Chunk(string(item.Content), spec.ChunkSize, spec.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		out := make([]*core.DataValue, 0, len(chunks))
		for i, chunk := range chunks {
			c := item.Clone()
			c.Content = []byte(chunk)
			c.SetMeta("chunk_index", strconv.Itoa(i))
			out = append(out, c)
		}
		return out, nil

	case workflow.TransformPartition:
		parts := strings.Split(string(item.Content), "\n\n")
		var out []*core.DataValue
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			p := item.Clone()
			p.Content = []byte(part)
			p.SetMeta("partition_index", strconv.Itoa(len(out)))
			out = append(out, p)
		}
		return out, nil

	case workflow.TransformThumbnail:
		thumb, err := document.Thumbnail(item, 0)
		if err != nil {
			return nil, err
		}
		return []*core.DataValue{thumb}, nil

	case workflow.TransformPromptTask:
		if e.provider == nil {
			return nil, ErrProviderRequired
		}
		prompt := spec.Prompt
		if prompt == "" {
			var ok bool
			prompt, ok = ai.TaskPrompts[string(spec.Task)]
			if !ok {
				return nil, fmt.Errorf("unknown task %q", spec.Task)
			}
		}
		result, err := e.provider.Generator().GenerateText(ctx, prompt, string(item.Content))
		if err != nil {
			return nil, err
		}
		item.Content = []byte(result)
		return []*core.DataValue{item}, nil

	case workflow.TransformAnnotate:
		if err := document.ApplyAnnotations(item, spec.Annotations); err != nil {
			return nil, err
		}
		return []*core.DataValue{item}, nil

	case workflow.TransformFlattenAnnotations:
		flat, err := document.FlattenAnnotations(item)
		if err != nil {
			return nil, err
		}
		return []*core.DataValue{flat}, nil

	case workflow.TransformConvert:
		converted, err := document.Convert(item, spec.TargetFormat)
		if err != nil {
			return nil, err
		}
		return []*core.DataValue{converted}, nil

	case workflow.TransformCompress:
		compressed, err := document.Compress(item)
		if err != nil {
			return nil, err
		}
		return []*core.DataValue{compressed}, nil

	case workflow.TransformCleanup:
		if err := document.Cleanup(item, spec.CleanupTasks); err != nil {
			return nil, err
		}
		return []*core.DataValue{item}, nil
	}
	return nil, fmt.Errorf("unknown transform kind %q", spec.Kind)
}

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


package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/document"
	"github.com/poiesic/docflow/queue"
)

// ErrProviderRequired indicates a nil AI provider was passed to a handler.
var ErrProviderRequired = errors.New("ai provider is required")

// ErrNoJobData indicates a job arrived without a data value to process.
var ErrNoJobData = errors.New("job carries no data value")

// Provider calls retry in-process before the dispatcher-level retry kicks
// in; attempts stay low so the job's retry budget remains meaningful.
const (
	providerMaxAttempts = 3
	providerRetryBase   = 100 * time.Millisecond
)

// Jobs emitted by the engine carry a node correlation tag and are resumed
// by the engine from completion events; only untagged jobs (submitted
// directly to the pipeline) auto-advance to the next stage.
func shouldChain[P queue.Payload](job *queue.Job[P]) bool {
	return job.Payload.CorrelationNode() == ""
}

func carryOptions[P queue.Payload](job *queue.Job[P]) []queue.JobOption {
	return []queue.JobOption{
		queue.WithPriority(job.Priority),
		queue.WithMaxRetries(job.MaxRetries),
		queue.WithTimeout(job.Timeout),
	}
}

// PreprocessingHandler runs format validation, metadata extraction, OCR,
// embedding generation, and thumbnails, each gated by a flag on the job
// payload.
type PreprocessingHandler struct {
	provider ai.Provider
	next     *queue.Publisher[queue.ProcessingData]
	logger   *slog.Logger
}

// NewPreprocessingHandler creates the preprocessing stage handler. The
// broker is used to publish the follow-up processing job for jobs that
// auto-advance.
func NewPreprocessingHandler(provider ai.Provider, broker queue.Broker) (*PreprocessingHandler, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	return &PreprocessingHandler{
		provider: provider,
		next:     queue.NewPublisher[queue.ProcessingData](broker),
		logger:   slog.Default().With("component", "preprocessing-handler"),
	}, nil
}

var _ JobHandler[queue.PreprocessingData] = (*PreprocessingHandler)(nil)

// HandleJob implements JobHandler.
func (h *PreprocessingHandler) HandleJob(ctx context.Context, job *queue.Job[queue.PreprocessingData]) (*core.DataValue, error) {
	opts := job.Payload
	data := opts.Data
	if data == nil {
		return nil, Terminal(ErrNoJobData)
	}
	data = data.Clone()
	h.logger.Debug("preprocessing document", "job_id", job.ID, "path", data.Path)

	if opts.ValidateFormat {
		if err := document.ValidateFormat(data); err != nil {
			return nil, err
		}
	}

	if opts.ExtractMetadata {
		data.SetMeta(core.MetaSourceFormat, data.Extension())
		data.SetMeta(core.MetaCategory, string(data.Category()))
	}

	if opts.RunOCR {
		var text string
		err := RetryWithBackoff(ctx, func() error {
			var err error
			text, err = h.provider.Vision().ProcessOCR(ctx, data.Content, data.ContentType)
			return err
		}, providerMaxAttempts, providerRetryBase)
		if err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}
		data.SetMeta(core.MetaOCRText, text)
	}

	if opts.GenerateEmbeddings {
		text := string(data.Content)
		if ocr, ok := data.Meta(core.MetaOCRText); ok {
			text = ocr
		}
		chunks, err := document.Chunk(text, opts.ChunkSize, opts.ChunkOverlap)
		if err != nil {
			return nil, fmt.Errorf("chunking: %w", err)
		}
		var vectors [][]float32
		err = RetryWithBackoff(ctx, func() error {
			var err error
			vectors, err = h.provider.Embedder().EmbedTexts(ctx, chunks)
			return err
		}, providerMaxAttempts, providerRetryBase)
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		data.SetMeta("embedding_chunks", strconv.Itoa(len(vectors)))
	}

	if opts.GenerateThumbnail {
		thumb, err := document.Thumbnail(data, 0)
		if err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
		data.SetMeta("thumbnail_path", thumb.Path)
	}

	if shouldChain(job) {
		next := queue.NewJob(job.FileID,
			queue.ProcessingData{Data: data},
			carryOptions(job)...)
		if err := h.next.Publish(ctx, next); err != nil {
			return nil, fmt.Errorf("advancing to processing: %w", err)
		}
	}

	return data, nil
}

// ProcessingHandler runs prompt-driven transformation and annotation
// application.
type ProcessingHandler struct {
	provider ai.Provider
	next     *queue.Publisher[queue.PostprocessingData]
	logger   *slog.Logger
}

// NewProcessingHandler creates the processing stage handler.
func NewProcessingHandler(provider ai.Provider, broker queue.Broker) (*ProcessingHandler, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	return &ProcessingHandler{
		provider: provider,
		next:     queue.NewPublisher[queue.PostprocessingData](broker),
		logger:   slog.Default().With("component", "processing-handler"),
	}, nil
}

var _ JobHandler[queue.ProcessingData] = (*ProcessingHandler)(nil)

// HandleJob implements JobHandler.
func (h *ProcessingHandler) HandleJob(ctx context.Context, job *queue.Job[queue.ProcessingData]) (*core.DataValue, error) {
	opts := job.Payload
	data := opts.Data
	if data == nil {
		return nil, Terminal(ErrNoJobData)
	}
	data = data.Clone()
	h.logger.Debug("processing document", "job_id", job.ID, "task", opts.Task)

	if opts.Task != "" || opts.Prompt != "" {
		prompt := opts.Prompt
		if prompt == "" {
			var ok bool
			prompt, ok = ai.TaskPrompts[opts.Task]
			if !ok {
				return nil, Terminal(fmt.Errorf("unknown task %q", opts.Task))
			}
		}
		var result string
		err := RetryWithBackoff(ctx, func() error {
			var err error
			result, err = h.provider.Generator().GenerateText(ctx, prompt, string(data.Content))
			return err
		}, providerMaxAttempts, providerRetryBase)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", opts.Task, err)
		}
		data.Content = []byte(result)
	}

	if opts.ApplyAnnotations {
		if err := document.ApplyAnnotations(data, opts.Annotations); err != nil {
			return nil, err
		}
	}

	if shouldChain(job) {
		next := queue.NewJob(job.FileID,
			queue.PostprocessingData{Data: data},
			carryOptions(job)...)
		if err := h.next.Publish(ctx, next); err != nil {
			return nil, fmt.Errorf("advancing to postprocessing: %w", err)
		}
	}

	return data, nil
}

// PostprocessingHandler runs annotation flattening, format conversion,
// compression, and cleanup. It is the final stage and never chains.
type PostprocessingHandler struct {
	logger *slog.Logger
}

// NewPostprocessingHandler creates the postprocessing stage handler.
func NewPostprocessingHandler() *PostprocessingHandler {
	return &PostprocessingHandler{
		logger: slog.Default().With("component", "postprocessing-handler"),
	}
}

var _ JobHandler[queue.PostprocessingData] = (*PostprocessingHandler)(nil)

// HandleJob implements JobHandler.
func (h *PostprocessingHandler) HandleJob(ctx context.Context, job *queue.Job[queue.PostprocessingData]) (*core.DataValue, error) {
	opts := job.Payload
	data := opts.Data
	if data == nil {
		return nil, Terminal(ErrNoJobData)
	}
	data = data.Clone()
	h.logger.Debug("postprocessing document", "job_id", job.ID, "path", data.Path)

	if len(opts.CleanupTasks) > 0 {
		if err := document.Cleanup(data, opts.CleanupTasks); err != nil {
			return nil, Terminal(err)
		}
	}

	if opts.FlattenAnnotations {
		flat, err := document.FlattenAnnotations(data)
		if err != nil {
			return nil, err
		}
		data = flat
	}

	if opts.TargetFormat != "" {
		converted, err := document.Convert(data, opts.TargetFormat)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	if opts.Compress {
		compressed, err := document.Compress(data)
		if err != nil {
			return nil, err
		}
		data = compressed
	}

	return data, nil
}

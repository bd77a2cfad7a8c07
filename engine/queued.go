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

	"github.com/google/uuid"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/queue"
	"github.com/poiesic/docflow/workflow"
)

// runTransformQueued publishes one job per item onto the node's stage and
// blocks until every completion event arrives. Jobs carry the node id as
// correlation tag so the stage handler does not auto-advance them.
func (e *Engine) runTransformQueued(ctx context.Context, plan *NodePlan, items []*core.DataValue) ([]*core.DataValue, error) {
	if e.broker == nil || e.watcher == nil {
		return nil, ErrBrokerRequired
	}

	waits := make([]<-chan *queue.Completion, 0, len(items))
	jobIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		jobID, ch, err := e.publishNodeJob(ctx, plan, item.Clone())
		if err != nil {
			for _, id := range jobIDs {
				e.watcher.forget(id)
			}
			return nil, err
		}
		waits = append(waits, ch)
		jobIDs = append(jobIDs, jobID)
	}

	out := make([]*core.DataValue, 0, len(items))
	for i, ch := range waits {
		select {
		case c := <-ch:
			if !c.Success {
				for _, id := range jobIDs[i+1:] {
					e.watcher.forget(id)
				}
				return nil, fmt.Errorf("job %s failed on stage %s: %s", c.JobID, c.Stage, c.Error)
			}
			if c.Result != nil {
				out = append(out, c.Result)
			}
		case <-ctx.Done():
			for _, id := range jobIDs[i:] {
				e.watcher.forget(id)
			}
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (e *Engine) publishNodeJob(ctx context.Context, plan *NodePlan, item *core.DataValue) (uuid.UUID, <-chan *queue.Completion, error) {
	fileID := core.FileIDFromContent(item.Content)
	tag := plan.ID.String()
	opts := []queue.JobOption{queue.WithTimeout(e.timeout)}

	switch plan.Stage {
	case queue.StagePreprocessing:
		job := queue.NewJob(fileID, preprocessingPayload(plan.Node.Transform, item, tag), opts...)
		ch := e.watcher.await(job.ID)
		if err := queue.NewPublisher[queue.PreprocessingData](e.broker).Publish(ctx, job); err != nil {
			e.watcher.forget(job.ID)
			return uuid.Nil, nil, err
		}
		return job.ID, ch, nil

	case queue.StageProcessing:
		job := queue.NewJob(fileID, processingPayload(plan.Node.Transform, item, tag), opts...)
		ch := e.watcher.await(job.ID)
		if err := queue.NewPublisher[queue.ProcessingData](e.broker).Publish(ctx, job); err != nil {
			e.watcher.forget(job.ID)
			return uuid.Nil, nil, err
		}
		return job.ID, ch, nil

	case queue.StagePostprocessing:
		job := queue.NewJob(fileID, postprocessingPayload(plan.Node.Transform, item, tag), opts...)
		ch := e.watcher.await(job.ID)
		if err := queue.NewPublisher[queue.PostprocessingData](e.broker).Publish(ctx, job); err != nil {
			e.watcher.forget(job.ID)
			return uuid.Nil, nil, err
		}
		return job.ID, ch, nil
	}
	return uuid.Nil, nil, fmt.Errorf("node %s routed to unknown stage %q", plan.ID, plan.Stage)
}

func preprocessingPayload(spec *workflow.TransformSpec, item *core.DataValue, tag string) queue.PreprocessingData {
	d := queue.PreprocessingData{Node: tag, Data: item}
	switch spec.Kind {
	case workflow.TransformValidateFormat:
		d.ValidateFormat = true
	case workflow.TransformOCR:
		d.RunOCR = true
	case workflow.TransformEmbedding:
		d.GenerateEmbeddings = true
		d.Normalize = spec.Normalize
		d.ChunkSize = spec.ChunkSize
		d.ChunkOverlap = spec.ChunkOverlap
	case workflow.TransformThumbnail:
		d.GenerateThumbnail = true
	}
	return d
}

func processingPayload(spec *workflow.TransformSpec, item *core.DataValue, tag string) queue.ProcessingData {
	d := queue.ProcessingData{Node: tag, Data: item}
	switch spec.Kind {
	case workflow.TransformPromptTask:
		d.Task = string(spec.Task)
		d.Prompt = spec.Prompt
	case workflow.TransformAnnotate:
		d.ApplyAnnotations = true
		d.Annotations = spec.Annotations
	}
	return d
}

func postprocessingPayload(spec *workflow.TransformSpec, item *core.DataValue, tag string) queue.PostprocessingData {
	d := queue.PostprocessingData{Node: tag, Data: item}
	switch spec.Kind {
	case workflow.TransformFlattenAnnotations:
		d.FlattenAnnotations = true
	case workflow.TransformConvert:
		d.TargetFormat = spec.TargetFormat
	case workflow.TransformCompress:
		d.Compress = true
	case workflow.TransformCleanup:
		d.CleanupTasks = spec.CleanupTasks
	}
	return d
}

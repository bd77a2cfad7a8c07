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

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/core"
)

// Completion is the event a worker publishes when it finishes a job, on the
// stage's completion subject. The engine observes completions to resume
// graph progress for nodes awaiting external execution.
type Completion struct {
	JobID  uuid.UUID   `json:"jobId"`
	FileID core.FileID `json:"fileId"`
	Stage  Stage       `json:"stage"`
	// Node echoes the correlation tag from the job payload.
	Node        string          `json:"node,omitempty"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	Result      *core.DataValue `json:"result,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
}

// completionMaxAge bounds how long an unobserved completion event lives.
const completionMaxAge = time.Hour

// PublishCompletion puts a completion event on the stage's completion
// subject.
func PublishCompletion(ctx context.Context, broker Broker, c *Completion) error {
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now().UTC()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding completion for job %s: %w", c.JobID, err)
	}
	subject := c.Stage.CompletionSubject(c.FileID)
	if err := broker.Publish(ctx, subject, data, PublishOptions{MaxAge: completionMaxAge}); err != nil {
		return fmt.Errorf("publishing completion for job %s: %w", c.JobID, err)
	}
	return nil
}

// UnmarshalCompletion decodes a completion event.
func UnmarshalCompletion(data []byte) (*Completion, error) {
	var c Completion
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding completion: %w", err)
	}
	return &c, nil
}

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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/core"
)

// Priority orders jobs within a stage when a consumer has more pending
// messages than capacity.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Weight returns the numeric rank of the priority; higher runs first.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityNormal:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	}
	return 1
}

// Status is the linear lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the linear state machine permits moving
// from s to next. Pending may skip Running straight to a terminal state,
// covering cancellation before dispatch.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next.Terminal()
	case StatusRunning:
		return next.Terminal()
	}
	return false
}

// DefaultMaxRetries is the retry budget applied when a job does not set its
// own.
const DefaultMaxRetries = 3

// DefaultTimeout bounds a single handler invocation.
const DefaultTimeout = 5 * time.Minute

// Job is a stage-typed envelope carrying one document through one pipeline
// stage. It is created by the preceding stage (or by the API for the first
// stage), mutated only by retry bookkeeping, and terminated by the worker
// that finishes it.
type Job[P Payload] struct {
	ID           uuid.UUID     `json:"id"`
	FileID       core.FileID   `json:"fileId"`
	Payload      P             `json:"payload"`
	Priority     Priority      `json:"priority"`
	MaxRetries   int           `json:"maxRetries"`
	RetryCount   int           `json:"retryCount"`
	Timeout      time.Duration `json:"timeout"`
	CreatedAt    time.Time     `json:"createdAt"`
	ScheduledFor *time.Time    `json:"scheduledFor,omitempty"`
	Status       Status        `json:"status"`
}

// JobOption configures a new job.
type JobOption func(*jobConfig)

type jobConfig struct {
	priority     Priority
	maxRetries   int
	timeout      time.Duration
	scheduledFor *time.Time
}

// WithPriority sets the job priority.
func WithPriority(p Priority) JobOption {
	return func(c *jobConfig) { c.priority = p }
}

// WithMaxRetries sets the retry budget.
func WithMaxRetries(n int) JobOption {
	return func(c *jobConfig) { c.maxRetries = n }
}

// WithTimeout bounds a single handler invocation for this job.
func WithTimeout(d time.Duration) JobOption {
	return func(c *jobConfig) { c.timeout = d }
}

// WithScheduledFor defers the job's visibility until the given time.
func WithScheduledFor(t time.Time) JobOption {
	return func(c *jobConfig) { c.scheduledFor = &t }
}

// NewJob creates a pending job for one file with the given stage payload.
func NewJob[P Payload](fileID core.FileID, payload P, opts ...JobOption) *Job[P] {
	cfg := jobConfig{
		priority:   PriorityNormal,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Job[P]{
		ID:           uuid.New(),
		FileID:       fileID,
		Payload:      payload,
		Priority:     cfg.priority,
		MaxRetries:   cfg.maxRetries,
		Timeout:      cfg.timeout,
		CreatedAt:    time.Now().UTC(),
		ScheduledFor: cfg.scheduledFor,
		Status:       StatusPending,
	}
}

// Stage returns the pipeline stage the job's payload is typed for.
func (j *Job[P]) Stage() Stage { return j.Payload.Stage() }

// Subject returns the targeted publish subject for this job.
func (j *Job[P]) Subject() string { return j.Stage().Subject(j.FileID) }

// DeadSubject returns the dead-letter subject for this job.
func (j *Job[P]) DeadSubject() string { return j.Stage().DeadSubject(j.FileID) }

// CanRetry reports whether the retry budget still has room.
func (j *Job[P]) CanRetry() bool { return j.RetryCount < j.MaxRetries }

// IncrementRetry records one failed attempt.
func (j *Job[P]) IncrementRetry() { j.RetryCount++ }

// IsReady reports whether the job is visible at the given time, honoring a
// deferred ScheduledFor.
func (j *Job[P]) IsReady(now time.Time) bool {
	return j.ScheduledFor == nil || !now.Before(*j.ScheduledFor)
}

// Age returns how long ago the job was created.
func (j *Job[P]) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}

// SetStatus advances the job's lifecycle, rejecting transitions the linear
// state machine does not permit.
func (j *Job[P]) SetStatus(next Status) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("invalid job status transition %s -> %s", j.Status, next)
	}
	j.Status = next
	return nil
}

// Marshal encodes the job as its JSON wire form.
func (j *Job[P]) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalJob decodes a job from its JSON wire form.
func UnmarshalJob[P Payload](data []byte) (*Job[P], error) {
	var j Job[P]
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	return &j, nil
}

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
	"fmt"
	"log/slog"
)

// Publisher publishes stage-typed jobs onto their stage's subjects.
type Publisher[P Payload] struct {
	broker Broker
	logger *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption[P Payload] func(*Publisher[P])

// WithPublisherLogger sets the logger.
func WithPublisherLogger[P Payload](logger *slog.Logger) PublisherOption[P] {
	return func(p *Publisher[P]) { p.logger = logger }
}

// NewPublisher creates a publisher over the given broker.
func NewPublisher[P Payload](broker Broker, opts ...PublisherOption[P]) *Publisher[P] {
	p := &Publisher[P]{
		broker: broker,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish puts the job on its stage subject.
func (p *Publisher[P]) Publish(ctx context.Context, job *Job[P]) error {
	data, err := job.Marshal()
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	opts := PublishOptions{
		MaxAge:   job.Stage().MaxAge(),
		Priority: job.Priority.Weight(),
	}
	if err := p.broker.Publish(ctx, job.Subject(), data, opts); err != nil {
		return fmt.Errorf("publishing job %s to %s: %w", job.ID, job.Subject(), err)
	}
	p.logger.Debug("published job",
		"job_id", job.ID,
		"file_id", job.FileID,
		"stage", job.Stage(),
		"priority", job.Priority)
	return nil
}

// PublishDead moves the job onto its dead-letter subject for operator
// inspection. Dead-lettered messages never expire.
func (p *Publisher[P]) PublishDead(ctx context.Context, job *Job[P]) error {
	data, err := job.Marshal()
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	if err := p.broker.Publish(ctx, job.DeadSubject(), data, PublishOptions{}); err != nil {
		return fmt.Errorf("dead-lettering job %s: %w", job.ID, err)
	}
	p.logger.Warn("job dead-lettered",
		"job_id", job.ID,
		"file_id", job.FileID,
		"stage", job.Stage(),
		"retry_count", job.RetryCount)
	return nil
}

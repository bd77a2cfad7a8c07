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
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/docflow/queue"
)

// completionConsumer is the durable consumer the engine resumes queued
// nodes from.
const completionConsumer = "docflow-engine-completions"

// completionWatcher drains the completion subjects and routes each event to
// the run goroutine awaiting its job id. Events nobody awaits are dropped;
// they belong to jobs that advanced through the pipeline on their own.
type completionWatcher struct {
	consumer queue.Consumer
	poll     time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	waiters map[uuid.UUID]chan *queue.Completion

	cancel context.CancelFunc
	done   chan struct{}
}

func newCompletionWatcher(ctx context.Context, broker queue.Broker, poll time.Duration, logger *slog.Logger) (*completionWatcher, error) {
	consumer, err := broker.Subscribe(ctx, completionConsumer, queue.AllCompletionsSubject())
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	w := &completionWatcher{
		consumer: consumer,
		poll:     poll,
		logger:   logger,
		waiters:  make(map[uuid.UUID]chan *queue.Completion),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.loop(loopCtx)
	return w, nil
}

// await registers interest in a job's completion. Must be called before the
// job is published or the event may be dropped.
func (w *completionWatcher) await(jobID uuid.UUID) <-chan *queue.Completion {
	ch := make(chan *queue.Completion, 1)
	w.mu.Lock()
	w.waiters[jobID] = ch
	w.mu.Unlock()
	return ch
}

func (w *completionWatcher) forget(jobID uuid.UUID) {
	w.mu.Lock()
	delete(w.waiters, jobID)
	w.mu.Unlock()
}

func (w *completionWatcher) deliver(c *queue.Completion) {
	w.mu.Lock()
	ch, ok := w.waiters[c.JobID]
	if ok {
		delete(w.waiters, c.JobID)
	}
	w.mu.Unlock()
	if ok {
		ch <- c
	}
}

func (w *completionWatcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.consumer.Close()

	timer := time.NewTimer(w.poll)
	defer timer.Stop()

	for ctx.Err() == nil {
		msgs, err := w.consumer.Fetch(ctx, 16)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrBrokerClosed) {
				return
			}
			w.logger.Error("fetching completions", "error", err)
		}

		for _, msg := range msgs {
			c, err := queue.UnmarshalCompletion(msg.Data())
			if err != nil {
				w.logger.Error("dropping malformed completion", "subject", msg.Subject(), "error", err)
				if termErr := msg.Term(ctx); termErr != nil {
					w.logger.Error("terminating malformed completion", "error", termErr)
				}
				continue
			}
			if ackErr := msg.Ack(ctx); ackErr != nil {
				w.logger.Error("acknowledging completion", "job_id", c.JobID, "error", ackErr)
				continue
			}
			w.deliver(c)
		}

		if len(msgs) == 0 {
			timer.Reset(w.poll)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
	}
}

func (w *completionWatcher) stop() {
	w.cancel()
	<-w.done
}

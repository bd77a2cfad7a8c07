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
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/queue"
)

// DefaultConcurrency bounds in-flight jobs per dispatcher.
const DefaultConcurrency = 10

// DefaultBackoffBase is multiplied by the retry count to compute the
// redelivery delay.
const DefaultBackoffBase = 10 * time.Second

// DefaultPollInterval is how long the fetch loop idles when the stage has
// no pending jobs.
const DefaultPollInterval = 500 * time.Millisecond

// JobHandler is the stage-specific business logic. A non-nil result is the
// data value the job produced, carried on the completion event.
type JobHandler[P queue.Payload] interface {
	HandleJob(ctx context.Context, job *queue.Job[P]) (*core.DataValue, error)
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc[P queue.Payload] func(ctx context.Context, job *queue.Job[P]) (*core.DataValue, error)

func (f JobHandlerFunc[P]) HandleJob(ctx context.Context, job *queue.Job[P]) (*core.DataValue, error) {
	return f(ctx, job)
}

// Dispatcher runs one stage's pull loop: it fetches jobs from the stage's
// consumer, spawns each onto a bounded worker pool, and applies the
// ack/retry/dead-letter policy around the handler.
type Dispatcher[P queue.Payload] struct {
	broker       queue.Broker
	handler      JobHandler[P]
	publisher    *queue.Publisher[P]
	pool         *ants.Pool
	concurrency  int
	backoffBase  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption[P queue.Payload] func(*Dispatcher[P]) error

// WithConcurrency sets the maximum number of in-flight jobs.
// Default is DefaultConcurrency.
func WithConcurrency[P queue.Payload](n int) DispatcherOption[P] {
	return func(d *Dispatcher[P]) error {
		if n < 1 {
			n = 1
		}
		d.concurrency = n
		return nil
	}
}

// WithBackoffBase sets the per-retry delay multiplier.
func WithBackoffBase[P queue.Payload](base time.Duration) DispatcherOption[P] {
	return func(d *Dispatcher[P]) error {
		d.backoffBase = base
		return nil
	}
}

// WithPollInterval sets the idle sleep between empty fetches.
func WithPollInterval[P queue.Payload](interval time.Duration) DispatcherOption[P] {
	return func(d *Dispatcher[P]) error {
		d.pollInterval = interval
		return nil
	}
}

// WithDispatcherLogger sets a custom logger.
// Default is slog.Default().
func WithDispatcherLogger[P queue.Payload](logger *slog.Logger) DispatcherOption[P] {
	return func(d *Dispatcher[P]) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher for the stage fixed by P.
func NewDispatcher[P queue.Payload](broker queue.Broker, handler JobHandler[P], opts ...DispatcherOption[P]) (*Dispatcher[P], error) {
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	d := &Dispatcher[P]{
		broker:       broker,
		handler:      handler,
		publisher:    queue.NewPublisher[P](broker),
		concurrency:  DefaultConcurrency,
		backoffBase:  DefaultBackoffBase,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(d.concurrency)
	if err != nil {
		return nil, err
	}
	d.pool = pool
	return d, nil
}

// Stage returns the pipeline stage this dispatcher serves.
func (d *Dispatcher[P]) Stage() queue.Stage {
	var zero P
	return zero.Stage()
}

// Spawn subscribes the stage's durable consumer and starts the pull loop.
// The returned Handle controls shutdown: Shutdown stops pulling new jobs
// and lets in-flight handlers finish; Abort additionally cancels their
// contexts.
func (d *Dispatcher[P]) Spawn(ctx context.Context) (*Handle, error) {
	stage := d.Stage()
	consumer, err := d.broker.Subscribe(ctx, stage.ConsumerName(), stage.WildcardSubject())
	if err != nil {
		return nil, err
	}

	fetchCtx, stopFetch := context.WithCancel(context.Background())
	jobCtx, abortJobs := context.WithCancel(context.Background())

	h := &Handle{
		stopFetch: stopFetch,
		abortJobs: abortJobs,
		done:      make(chan struct{}),
	}

	go d.run(fetchCtx, jobCtx, consumer, h)

	d.logger.Info("dispatcher started",
		"stage", stage,
		"consumer", stage.ConsumerName(),
		"concurrency", d.concurrency)
	return h, nil
}

// Release frees the worker pool. The dispatcher must not be spawned again
// afterwards.
func (d *Dispatcher[P]) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}

func (d *Dispatcher[P]) run(fetchCtx, jobCtx context.Context, consumer queue.Consumer, h *Handle) {
	defer close(h.done)
	defer consumer.Close()

	var wg sync.WaitGroup
	for fetchCtx.Err() == nil {
		msgs, err := consumer.Fetch(fetchCtx, d.concurrency)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrBrokerClosed) {
				break
			}
			d.logger.Error("fetch failed", "stage", d.Stage(), "error", err)
			d.idle(fetchCtx)
			continue
		}
		if len(msgs) == 0 {
			d.idle(fetchCtx)
			continue
		}

		for _, msg := range msgs {
			wg.Add(1)
			m := msg
			if err := d.pool.Submit(func() {
				defer wg.Done()
				d.dispatch(jobCtx, m)
			}); err != nil {
				wg.Done()
				d.logger.Error("submitting job to pool", "error", err)
			}
		}
	}

	wg.Wait()
}

func (d *Dispatcher[P]) idle(ctx context.Context) {
	timer := time.NewTimer(d.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// dispatch runs one delivered message through the handler and decides its
// fate: ack on success, nak with backoff on retryable failure, dead-letter
// once the retry budget is spent or the error is terminal.
func (d *Dispatcher[P]) dispatch(ctx context.Context, msg queue.Msg) {
	job, err := queue.UnmarshalJob[P](msg.Data())
	if err != nil {
		d.logger.Error("dropping malformed job message", "subject", msg.Subject(), "error", err)
		if termErr := msg.Term(ctx); termErr != nil {
			d.logger.Error("terminating malformed message", "error", termErr)
		}
		return
	}

	now := time.Now().UTC()
	if !job.IsReady(now) {
		if nakErr := msg.Nak(ctx, job.ScheduledFor.Sub(now)); nakErr != nil {
			d.logger.Error("deferring scheduled job", "job_id", job.ID, "error", nakErr)
		}
		return
	}

	// The broker's delivery count is authoritative across process
	// restarts; the envelope's counter only survives republishing.
	if attempts := msg.Deliveries() - 1; attempts > job.RetryCount {
		job.RetryCount = attempts
	}
	if err := job.SetStatus(queue.StatusRunning); err != nil {
		// A terminal status on the wire means the job already finished
		// elsewhere; redelivering it would double-run the handler.
		d.logger.Error("dropping job with invalid status", "job_id", job.ID, "status", job.Status, "error", err)
		if termErr := msg.Term(ctx); termErr != nil {
			d.logger.Error("terminating invalid-status message", "job_id", job.ID, "error", termErr)
		}
		return
	}

	hctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	result, err := d.handler.HandleJob(hctx, job)
	if err == nil {
		d.complete(ctx, msg, job, result)
		return
	}

	d.logger.Error("job failed",
		"job_id", job.ID,
		"file_id", job.FileID,
		"stage", job.Stage(),
		"retry_count", job.RetryCount,
		"error", err)

	terminal := IsTerminal(err) || errors.Is(err, core.ErrUnsupportedFormat)
	if terminal || !job.CanRetry() {
		d.deadLetter(ctx, msg, job, err)
		return
	}

	job.IncrementRetry()
	delay := d.backoffBase * time.Duration(job.RetryCount)
	if nakErr := msg.Nak(ctx, delay); nakErr != nil {
		d.logger.Error("scheduling retry", "job_id", job.ID, "error", nakErr)
	}
}

func (d *Dispatcher[P]) complete(ctx context.Context, msg queue.Msg, job *queue.Job[P], result *core.DataValue) {
	if err := job.SetStatus(queue.StatusCompleted); err != nil {
		d.logger.Error("marking job completed", "job_id", job.ID, "error", err)
	}
	if err := msg.Ack(ctx); err != nil {
		d.logger.Error("acknowledging job", "job_id", job.ID, "error", err)
		return
	}
	d.publishCompletion(ctx, job, result, nil)
	d.logger.Info("job completed",
		"job_id", job.ID,
		"file_id", job.FileID,
		"stage", job.Stage())
}

func (d *Dispatcher[P]) deadLetter(ctx context.Context, msg queue.Msg, job *queue.Job[P], cause error) {
	if err := job.SetStatus(queue.StatusFailed); err != nil {
		d.logger.Error("marking job failed", "job_id", job.ID, "error", err)
	}
	if err := d.publisher.PublishDead(ctx, job); err != nil {
		// Keep the message pending rather than lose it.
		d.logger.Error("dead-lettering job", "job_id", job.ID, "error", err)
		return
	}
	if err := msg.Term(ctx); err != nil {
		d.logger.Error("terminating exhausted job", "job_id", job.ID, "error", err)
	}
	d.publishCompletion(ctx, job, nil, cause)
}

func (d *Dispatcher[P]) publishCompletion(ctx context.Context, job *queue.Job[P], result *core.DataValue, cause error) {
	c := &queue.Completion{
		JobID:   job.ID,
		FileID:  job.FileID,
		Stage:   job.Stage(),
		Node:    job.Payload.CorrelationNode(),
		Success: cause == nil,
		Result:  result,
	}
	if cause != nil {
		c.Error = cause.Error()
	}
	if err := queue.PublishCompletion(ctx, d.broker, c); err != nil {
		d.logger.Error("publishing completion", "job_id", job.ID, "error", err)
	}
}

// Handle controls a spawned dispatcher loop.
type Handle struct {
	stopFetch context.CancelFunc
	abortJobs context.CancelFunc
	done      chan struct{}
}

// Shutdown stops pulling new jobs. In-flight handlers run to completion.
func (h *Handle) Shutdown() {
	h.stopFetch()
}

// Abort stops pulling and cancels in-flight handler contexts.
func (h *Handle) Abort() {
	h.stopFetch()
	h.abortJobs()
}

// Wait blocks until the dispatch loop and all in-flight handlers have
// finished, or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

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


// Package badger implements the queue.Broker interface on an embedded
// BadgerDB, giving the pipeline durable at-least-once delivery without an
// external message broker.
//
// Messages are stored under sequence-ordered keys, so iteration yields
// publish order. Retention is work-queue style: an acknowledged message is
// deleted. Consumers with overlapping subject filters therefore compete for
// messages; the pipeline keeps each consumer on a disjoint filter.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/poiesic/docflow/queue"
)

// DefaultAckWait is how long a delivered message stays invisible before the
// broker assumes the worker died and allows redelivery.
const DefaultAckWait = 30 * time.Second

// Broker is a durable message broker backed by BadgerDB.
type Broker struct {
	backend *Backend
	seq     *badgerdb.Sequence
	ackWait time.Duration
	logger  *slog.Logger
	closed  atomic.Bool
}

var _ queue.Broker = (*Broker)(nil)

// Option configures a Broker.
type Option func(*Broker)

// WithAckWait sets the redelivery visibility timeout.
func WithAckWait(d time.Duration) Option {
	return func(b *Broker) { b.ackWait = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// NewBroker creates a broker over an open backend. The caller retains
// ownership of the backend and closes it after the broker.
func NewBroker(backend *Backend, opts ...Option) (*Broker, error) {
	seq, err := backend.GetSequence(messageSeqName)
	if err != nil {
		return nil, fmt.Errorf("opening message sequence: %w", err)
	}
	b := &Broker{
		backend: backend,
		seq:     seq,
		ackWait: DefaultAckWait,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Publish appends a message to the stream.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte, opts queue.PublishOptions) error {
	if b.closed.Load() {
		return queue.ErrBrokerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seq, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("allocating sequence: %w", err)
	}

	env := envelope{
		Seq:         seq,
		Subject:     subject,
		Data:        data,
		PublishedAt: time.Now().UnixMicro(),
		Priority:    opts.Priority,
	}

	err = b.backend.WithTx(func(tx *badgerdb.Txn) error {
		entry := badgerdb.NewEntry(makeMessageKey(seq), marshalEnvelope(env))
		if opts.MaxAge > 0 {
			entry = entry.WithTTL(opts.MaxAge)
		}
		return tx.SetEntry(entry)
	}, true)
	if err != nil {
		return fmt.Errorf("storing message %d: %w", seq, err)
	}

	b.logger.Debug("published message",
		"seq", seq, "subject", subject, "priority", opts.Priority, "bytes", len(data))
	return nil
}

// Subscribe creates or resumes a named durable consumer over a subject
// filter. Consumer state is keyed by name, so reconnecting with the same
// name resumes where the previous instance left off.
func (b *Broker) Subscribe(ctx context.Context, consumer, filterSubject string) (queue.Consumer, error) {
	if b.closed.Load() {
		return nil, queue.ErrBrokerClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &durableConsumer{
		broker: b,
		name:   consumer,
		filter: filterSubject,
	}, nil
}

// Close releases the broker's sequence allocation. The underlying backend
// stays open.
func (b *Broker) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.seq.Release()
}

// durableConsumer is a pull subscription over a subject filter.
type durableConsumer struct {
	broker *Broker
	name   string
	filter string
	closed atomic.Bool
}

var _ queue.Consumer = (*durableConsumer)(nil)

// candidate is a subject-head message eligible for delivery.
type candidate struct {
	env      envelope
	stateKey []byte
	state    deliveryState
}

// Fetch returns up to max visible messages matching the filter. Within one
// subject, delivery is serialized: a message whose predecessor on the same
// subject is still in flight (or backing off after a Nak) is withheld, which
// preserves per-file ordering end to end even when handlers run
// concurrently. Across subjects, the eligible heads are delivered by
// descending priority, publish order breaking ties.
func (c *durableConsumer) Fetch(ctx context.Context, max int) ([]queue.Msg, error) {
	if c.closed.Load() || c.broker.closed.Load() {
		return nil, queue.ErrBrokerClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UnixMicro()
	visibleUntil := now + c.broker.ackWait.Microseconds()

	var msgs []queue.Msg
	err := c.broker.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(messagePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Sequence order yields at most one candidate per subject: its
		// earliest pending message, and none while one is in flight.
		blocked := make(map[string]struct{})
		var heads []candidate

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var env envelope
			err := item.Value(func(val []byte) error {
				var err error
				env, err = unmarshalEnvelope(val)
				return err
			})
			if err != nil {
				return err
			}

			if !queue.MatchSubject(c.filter, env.Subject) {
				continue
			}
			if _, ok := blocked[env.Subject]; ok {
				continue
			}
			blocked[env.Subject] = struct{}{}

			stateKey := makeStateKey(c.name, env.Seq)
			state, found, err := getDeliveryState(tx, stateKey)
			if err != nil {
				return err
			}
			if found && state.VisibleAt > now {
				// In flight or backing off. Later messages on this
				// subject wait behind it.
				continue
			}

			heads = append(heads, candidate{env: env, stateKey: stateKey, state: state})
		}

		sort.SliceStable(heads, func(i, j int) bool {
			if heads[i].env.Priority != heads[j].env.Priority {
				return heads[i].env.Priority > heads[j].env.Priority
			}
			return heads[i].env.Seq < heads[j].env.Seq
		})
		if len(heads) > max {
			heads = heads[:max]
		}

		for _, h := range heads {
			h.state.Deliveries++
			h.state.VisibleAt = visibleUntil
			if err := tx.Set(h.stateKey, marshalDeliveryState(h.state)); err != nil {
				return err
			}
			msgs = append(msgs, &message{
				broker:     c.broker,
				consumer:   c.name,
				env:        h.env,
				deliveries: h.state.Deliveries,
			})
		}
		return nil
	}, true)
	if err != nil {
		return nil, fmt.Errorf("fetching for consumer %s: %w", c.name, err)
	}
	return msgs, nil
}

// Close stops the consumer. Durable state remains so the same name can
// resume later.
func (c *durableConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

// message is one delivery of a stored message.
type message struct {
	broker     *Broker
	consumer   string
	env        envelope
	deliveries int
	decided    atomic.Bool
}

var _ queue.Msg = (*message)(nil)

func (m *message) Subject() string { return m.env.Subject }
func (m *message) Data() []byte    { return m.env.Data }
func (m *message) Deliveries() int { return m.deliveries }

// Ack removes the message from the stream.
func (m *message) Ack(ctx context.Context) error {
	return m.remove(ctx)
}

// Term removes the message without successful completion.
func (m *message) Term(ctx context.Context) error {
	return m.remove(ctx)
}

// Nak schedules a redelivery after delay.
func (m *message) Nak(ctx context.Context, delay time.Duration) error {
	if m.decided.Swap(true) {
		return queue.ErrAlreadyAcked
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	visibleAt := time.Now().Add(delay).UnixMicro()
	return m.broker.backend.WithTx(func(tx *badgerdb.Txn) error {
		stateKey := makeStateKey(m.consumer, m.env.Seq)
		state, _, err := getDeliveryState(tx, stateKey)
		if err != nil {
			return err
		}
		state.VisibleAt = visibleAt
		return tx.Set(stateKey, marshalDeliveryState(state))
	}, true)
}

func (m *message) remove(ctx context.Context) error {
	if m.decided.Swap(true) {
		return queue.ErrAlreadyAcked
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.broker.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Delete(makeMessageKey(m.env.Seq)); err != nil {
			return err
		}
		return tx.Delete(makeStateKey(m.consumer, m.env.Seq))
	}, true)
}

// getDeliveryState loads a consumer's delivery state for one message.
func getDeliveryState(tx *badgerdb.Txn, key []byte) (deliveryState, bool, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return deliveryState{}, false, nil
	}
	if err != nil {
		return deliveryState{}, false, err
	}

	var state deliveryState
	err = item.Value(func(val []byte) error {
		var err error
		state, err = unmarshalDeliveryState(val)
		return err
	})
	return state, err == nil, err
}

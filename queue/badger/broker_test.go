package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/queue"
)

func newTestBroker(t *testing.T, opts ...Option) *Broker {
	t.Helper()
	broker, backend, err := NewMemoryBroker(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		broker.Close()
		backend.Close()
	})
	return broker
}

func fetchOne(t *testing.T, c queue.Consumer) queue.Msg {
	t.Helper()
	msgs, err := c.Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestBroker_PublishFetchAck(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("payload"), queue.PublishOptions{MaxAge: time.Hour}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	msg := fetchOne(t, consumer)
	assert.Equal(t, "DOCFLOW.processing.f1", msg.Subject())
	assert.Equal(t, []byte("payload"), msg.Data())
	assert.Equal(t, 1, msg.Deliveries())

	require.NoError(t, msg.Ack(ctx))

	// Acked messages are gone.
	msgs, err := consumer.Fetch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBroker_SubjectFilter(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.preprocessing.f1", []byte("a"), queue.PublishOptions{}))
	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("b"), queue.PublishOptions{}))

	consumer, err := broker.Subscribe(ctx, "proc-workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	msgs, err := consumer.Fetch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("b"), msgs[0].Data())
}

func TestBroker_NakRedelivers(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("x"), queue.PublishOptions{}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	msg := fetchOne(t, consumer)
	require.NoError(t, msg.Nak(ctx, 10*time.Millisecond))

	// Not yet visible.
	msgs, err := consumer.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	time.Sleep(20 * time.Millisecond)

	redelivered := fetchOne(t, consumer)
	assert.Equal(t, 2, redelivered.Deliveries())
	require.NoError(t, redelivered.Ack(ctx))
}

func TestBroker_PerSubjectOrdering(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("j1"), queue.PublishOptions{}))
	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("j2"), queue.PublishOptions{}))
	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f2", []byte("other"), queue.PublishOptions{}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	// Same-subject messages are serialized: one in flight at a time, so a
	// wide fetch yields j1 and the other file's message, never j2 early.
	msgs, err := consumer.Fetch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("j1"), msgs[0].Data())
	assert.Equal(t, []byte("other"), msgs[1].Data())

	require.NoError(t, msgs[0].Ack(ctx))
	require.NoError(t, msgs[1].Ack(ctx))

	msg := fetchOne(t, consumer)
	assert.Equal(t, []byte("j2"), msg.Data())
	require.NoError(t, msg.Ack(ctx))
}

func TestBroker_PriorityOrdersAcrossSubjects(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("normal"),
		queue.PublishOptions{Priority: queue.PriorityNormal.Weight()}))
	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f2", []byte("critical"),
		queue.PublishOptions{Priority: queue.PriorityCritical.Weight()}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	// The later critical message jumps ahead of the earlier normal one.
	first := fetchOne(t, consumer)
	assert.Equal(t, []byte("critical"), first.Data())
	require.NoError(t, first.Ack(ctx))

	second := fetchOne(t, consumer)
	assert.Equal(t, []byte("normal"), second.Data())
	require.NoError(t, second.Ack(ctx))
}

func TestBroker_PriorityNeverReordersOneSubject(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("low"),
		queue.PublishOptions{Priority: queue.PriorityLow.Weight()}))
	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("critical"),
		queue.PublishOptions{Priority: queue.PriorityCritical.Weight()}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	// Per-subject FIFO wins over priority: the critical message waits
	// behind its predecessor on the same file.
	msgs, err := consumer.Fetch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("low"), msgs[0].Data())
	require.NoError(t, msgs[0].Ack(ctx))

	next := fetchOne(t, consumer)
	assert.Equal(t, []byte("critical"), next.Data())
}

func TestBroker_VisibilityTimeout(t *testing.T) {
	broker := newTestBroker(t, WithAckWait(10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("x"), queue.PublishOptions{}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	first := fetchOne(t, consumer)
	assert.Equal(t, 1, first.Deliveries())

	// The worker never acks; after the visibility timeout the message is
	// redelivered with an incremented attempt count.
	time.Sleep(20 * time.Millisecond)

	second := fetchOne(t, consumer)
	assert.Equal(t, 2, second.Deliveries())
}

func TestBroker_DurableConsumerResumes(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("a"), queue.PublishOptions{}))
	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f2", []byte("b"), queue.PublishOptions{}))

	c1, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)
	msg := fetchOne(t, c1)
	require.NoError(t, msg.Ack(ctx))
	require.NoError(t, c1.Close())

	// Reconnecting under the same name sees only the unconsumed message.
	c2, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)
	msgs, err := c2.Fetch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("b"), msgs[0].Data())
}

func TestBroker_DoubleAck(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, "DOCFLOW.processing.f1", []byte("x"), queue.PublishOptions{}))

	consumer, err := broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	require.NoError(t, err)

	msg := fetchOne(t, consumer)
	require.NoError(t, msg.Ack(ctx))
	assert.ErrorIs(t, msg.Ack(ctx), queue.ErrAlreadyAcked)
	assert.ErrorIs(t, msg.Nak(ctx, time.Second), queue.ErrAlreadyAcked)
}

func TestBroker_ClosedOperations(t *testing.T) {
	broker, backend, err := NewMemoryBroker()
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close(), "close is idempotent")

	ctx := context.Background()
	assert.ErrorIs(t, broker.Publish(ctx, "DOCFLOW.processing.f1", nil, queue.PublishOptions{}), queue.ErrBrokerClosed)
	_, err = broker.Subscribe(ctx, "workers", "DOCFLOW.processing.>")
	assert.ErrorIs(t, err, queue.ErrBrokerClosed)
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/queue"
	queuebadger "github.com/poiesic/docflow/queue/badger"
)

func newTestBroker(t *testing.T) queue.Broker {
	t.Helper()
	broker, backend, err := queuebadger.NewMemoryBroker(queuebadger.WithAckWait(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() {
		broker.Close()
		backend.Close()
	})
	return broker
}

// attemptRecorder records the retry count of every delivered job.
type attemptRecorder struct {
	mu       sync.Mutex
	attempts []int
	err      error
}

func (r *attemptRecorder) HandleJob(ctx context.Context, job *queue.Job[queue.PreprocessingData]) (*core.DataValue, error) {
	r.mu.Lock()
	r.attempts = append(r.attempts, job.RetryCount)
	r.mu.Unlock()
	return job.Payload.Data, r.err
}

func (r *attemptRecorder) recorded() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.attempts...)
}

func spawnDispatcher(t *testing.T, broker queue.Broker, handler JobHandler[queue.PreprocessingData]) *Handle {
	t.Helper()
	d, err := NewDispatcher(broker, handler,
		WithBackoffBase[queue.PreprocessingData](time.Millisecond),
		WithPollInterval[queue.PreprocessingData](5*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(d.Release)

	h, err := d.Spawn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		h.Abort()
		h.Wait(context.Background())
	})
	return h
}

func fetchAll(t *testing.T, broker queue.Broker, consumer, filter string) []queue.Msg {
	t.Helper()
	c, err := broker.Subscribe(context.Background(), consumer, filter)
	require.NoError(t, err)
	msgs, err := c.Fetch(context.Background(), 10)
	require.NoError(t, err)
	return msgs
}

func TestDispatcher_SuccessAcksAndPublishesCompletion(t *testing.T) {
	broker := newTestBroker(t)
	handler := &attemptRecorder{}
	spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{
		Node: "n1",
		Data: core.NewDataValue("a.txt", []byte("hello")),
	})
	require.NoError(t, publisher.Publish(context.Background(), job))

	require.Eventually(t, func() bool {
		return len(handler.recorded()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	var completion *queue.Completion
	require.Eventually(t, func() bool {
		msgs := fetchAll(t, broker, "completions", queue.StagePreprocessing.CompletionWildcardSubject())
		if len(msgs) == 0 {
			return false
		}
		var err error
		completion, err = queue.UnmarshalCompletion(msgs[0].Data())
		require.NoError(t, err)
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, job.ID, completion.JobID)
	assert.Equal(t, "n1", completion.Node)
	assert.True(t, completion.Success)
	require.NotNil(t, completion.Result)
	assert.Equal(t, "a.txt", completion.Result.Path)
}

func TestDispatcher_RetriesThenDeadLetters(t *testing.T) {
	broker := newTestBroker(t)
	handler := &attemptRecorder{err: errors.New("provider unavailable")}
	spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{}, queue.WithMaxRetries(2))
	require.NoError(t, publisher.Publish(context.Background(), job))

	// Initial delivery plus exactly maxRetries redeliveries.
	require.Eventually(t, func() bool {
		return len(handler.recorded()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	attempts := handler.recorded()
	assert.Equal(t, []int{0, 1, 2}, attempts, "retry count increments by exactly 1 per attempt")

	var dead *queue.Job[queue.PreprocessingData]
	require.Eventually(t, func() bool {
		msgs := fetchAll(t, broker, "dead-inspect", queue.StagePreprocessing.DeadWildcardSubject())
		if len(msgs) == 0 {
			return false
		}
		var err error
		dead, err = queue.UnmarshalJob[queue.PreprocessingData](msgs[0].Data())
		require.NoError(t, err)
		return true
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, job.ID, dead.ID)
	assert.Equal(t, 2, dead.RetryCount)
	assert.Equal(t, queue.StatusFailed, dead.Status)

	// No further deliveries after dead-lettering.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, handler.recorded(), 3)
}

func TestDispatcher_TerminalErrorSkipsRetry(t *testing.T) {
	broker := newTestBroker(t)
	handler := &attemptRecorder{err: Terminal(errors.New("unreadable file"))}
	spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{}, queue.WithMaxRetries(5))
	require.NoError(t, publisher.Publish(context.Background(), job))

	require.Eventually(t, func() bool {
		msgs := fetchAll(t, broker, "dead-inspect", queue.StagePreprocessing.DeadWildcardSubject())
		return len(msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, handler.recorded(), 1, "terminal errors are not retried")
}

func TestDispatcher_HandlerSeesRunningStatus(t *testing.T) {
	broker := newTestBroker(t)

	statuses := make(chan queue.Status, 1)
	handler := JobHandlerFunc[queue.PreprocessingData](func(ctx context.Context, job *queue.Job[queue.PreprocessingData]) (*core.DataValue, error) {
		statuses <- job.Status
		return job.Payload.Data, nil
	})
	spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{
		Data: core.NewDataValue("a.txt", nil),
	})
	require.NoError(t, publisher.Publish(context.Background(), job))

	select {
	case status := <-statuses:
		assert.Equal(t, queue.StatusRunning, status)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never dispatched")
	}
}

func TestDispatcher_DropsJobWithTerminalStatus(t *testing.T) {
	broker := newTestBroker(t)

	handler := &attemptRecorder{}
	spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{})
	job.Status = queue.StatusCancelled
	require.NoError(t, publisher.Publish(context.Background(), job))

	// A job already finished elsewhere must not reach the handler, not be
	// retried, and not be dead-lettered.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, handler.recorded())
	assert.Empty(t, fetchAll(t, broker, "stage-inspect", queue.StagePreprocessing.WildcardSubject()),
		"the message is discarded")
	assert.Empty(t, fetchAll(t, broker, "dead-inspect", queue.StagePreprocessing.DeadWildcardSubject()))
}

func TestDispatcher_SameFileOrdering(t *testing.T) {
	broker := newTestBroker(t)

	var mu sync.Mutex
	var order []string
	handler := JobHandlerFunc[queue.PreprocessingData](func(ctx context.Context, job *queue.Job[queue.PreprocessingData]) (*core.DataValue, error) {
		mu.Lock()
		order = append(order, job.Payload.Data.Path)
		mu.Unlock()
		return job.Payload.Data, nil
	})
	spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	fileID := core.NewFileID()
	j1 := queue.NewJob(fileID, queue.PreprocessingData{Data: core.NewDataValue("j1", nil)})
	j2 := queue.NewJob(fileID, queue.PreprocessingData{Data: core.NewDataValue("j2", nil)})
	require.NoError(t, publisher.Publish(context.Background(), j1))
	require.NoError(t, publisher.Publish(context.Background(), j2))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"j1", "j2"}, order)
}

func TestDispatcher_ShutdownLetsInFlightFinish(t *testing.T) {
	broker := newTestBroker(t)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	handler := JobHandlerFunc[queue.PreprocessingData](func(ctx context.Context, job *queue.Job[queue.PreprocessingData]) (*core.DataValue, error) {
		close(started)
		<-release
		close(done)
		return nil, nil
	})
	h := spawnDispatcher(t, broker, handler)

	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	require.NoError(t, publisher.Publish(context.Background(),
		queue.NewJob(core.NewFileID(), queue.PreprocessingData{})))

	<-started
	h.Shutdown()

	// The in-flight handler is still running; Wait must block until it
	// finishes.
	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, h.Wait(waitCtx))

	close(release)
	require.NoError(t, h.Wait(context.Background()))
	<-done
}

func TestNewDispatcher_Validation(t *testing.T) {
	broker := newTestBroker(t)

	_, err := NewDispatcher[queue.PreprocessingData](nil, &attemptRecorder{})
	assert.ErrorIs(t, err, ErrBrokerRequired)

	_, err = NewDispatcher[queue.PreprocessingData](broker, nil)
	assert.ErrorIs(t, err, ErrHandlerRequired)
}

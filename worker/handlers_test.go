package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/ai/mock"
	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/queue"
)

func TestPreprocessingHandler_OCRAndMetadata(t *testing.T) {
	broker := newTestBroker(t)
	provider := mock.NewMockProvider()
	handler, err := NewPreprocessingHandler(provider, broker)
	require.NoError(t, err)

	data := core.NewDataValue("scan.png", []byte("image bytes"))
	job := queue.NewJob(core.FileIDFromContent(data.Content), queue.PreprocessingData{
		Node:            "n1",
		Data:            data,
		ExtractMetadata: true,
		RunOCR:          true,
	})

	result, err := handler.HandleJob(context.Background(), job)
	require.NoError(t, err)

	ocr, ok := result.Meta(core.MetaOCRText)
	require.True(t, ok)
	assert.Equal(t, "mock ocr text", ocr)

	category, ok := result.Meta(core.MetaCategory)
	require.True(t, ok)
	assert.Equal(t, string(core.CategoryImage), category)

	// The input value must stay untouched.
	_, ok = data.Meta(core.MetaOCRText)
	assert.False(t, ok)
}

func TestPreprocessingHandler_OCRRetriesTransientFailure(t *testing.T) {
	broker := newTestBroker(t)

	vision := mock.NewMockVision()
	failures := 1
	vision.ProcessOCRFunc = func(ctx context.Context, image []byte, contentType string) (string, error) {
		if failures > 0 {
			failures--
			return "", errors.New("provider unavailable")
		}
		return "recovered text", nil
	}
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockGenerator(), vision)

	handler, err := NewPreprocessingHandler(provider, broker)
	require.NoError(t, err)

	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{
		Node:   "n1",
		Data:   core.NewDataValue("scan.png", []byte("image bytes")),
		RunOCR: true,
	})

	result, err := handler.HandleJob(context.Background(), job)
	require.NoError(t, err, "a transient provider failure is retried in-process")

	ocr, ok := result.Meta(core.MetaOCRText)
	require.True(t, ok)
	assert.Equal(t, "recovered text", ocr)
	assert.Equal(t, 2, vision.CallCount())
}

func TestPreprocessingHandler_Embeddings(t *testing.T) {
	broker := newTestBroker(t)
	provider := mock.NewMockProvider()
	handler, err := NewPreprocessingHandler(provider, broker)
	require.NoError(t, err)

	data := core.NewDataValue("notes.txt", []byte("some text to embed"))
	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{
		Node:               "n1",
		Data:               data,
		GenerateEmbeddings: true,
	})

	result, err := handler.HandleJob(context.Background(), job)
	require.NoError(t, err)

	chunks, ok := result.Meta("embedding_chunks")
	require.True(t, ok)
	assert.Equal(t, "1", chunks)
}

func TestPreprocessingHandler_ChainsUntaggedJobs(t *testing.T) {
	broker := newTestBroker(t)
	provider := mock.NewMockProvider()
	handler, err := NewPreprocessingHandler(provider, broker)
	require.NoError(t, err)

	fileID := core.NewFileID()
	job := queue.NewJob(fileID, queue.PreprocessingData{
		Data: core.NewDataValue("doc.txt", []byte("body")),
	}, queue.WithPriority(queue.PriorityHigh))

	_, err = handler.HandleJob(context.Background(), job)
	require.NoError(t, err)

	msgs := fetchAll(t, broker, "inspect", queue.StageProcessing.WildcardSubject())
	require.Len(t, msgs, 1, "untagged job advances to processing")

	next, err := queue.UnmarshalJob[queue.ProcessingData](msgs[0].Data())
	require.NoError(t, err)
	assert.Equal(t, fileID, next.FileID)
	assert.Equal(t, queue.PriorityHigh, next.Priority, "priority carries across stages")
}

func TestPreprocessingHandler_EngineJobsDoNotChain(t *testing.T) {
	broker := newTestBroker(t)
	provider := mock.NewMockProvider()
	handler, err := NewPreprocessingHandler(provider, broker)
	require.NoError(t, err)

	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{
		Node: "engine-node",
		Data: core.NewDataValue("doc.txt", []byte("body")),
	})

	_, err = handler.HandleJob(context.Background(), job)
	require.NoError(t, err)

	msgs := fetchAll(t, broker, "inspect", queue.StageProcessing.WildcardSubject())
	assert.Empty(t, msgs)
}

func TestPreprocessingHandler_MissingData(t *testing.T) {
	broker := newTestBroker(t)
	handler, err := NewPreprocessingHandler(mock.NewMockProvider(), broker)
	require.NoError(t, err)

	job := queue.NewJob(core.NewFileID(), queue.PreprocessingData{Node: "n"})
	_, err = handler.HandleJob(context.Background(), job)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
}

func TestProcessingHandler_Task(t *testing.T) {
	broker := newTestBroker(t)
	handler, err := NewProcessingHandler(mock.NewMockProvider(), broker)
	require.NoError(t, err)

	job := queue.NewJob(core.NewFileID(), queue.ProcessingData{
		Node: "n1",
		Data: core.NewDataValue("doc.txt", []byte("original body")),
		Task: "summarize",
	})

	result, err := handler.HandleJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "summarize: original body", string(result.Content))
}

func TestProcessingHandler_UnknownTask(t *testing.T) {
	broker := newTestBroker(t)
	handler, err := NewProcessingHandler(mock.NewMockProvider(), broker)
	require.NoError(t, err)

	job := queue.NewJob(core.NewFileID(), queue.ProcessingData{
		Node: "n1",
		Data: core.NewDataValue("doc.txt", []byte("body")),
		Task: "bogus",
	})

	_, err = handler.HandleJob(context.Background(), job)
	require.Error(t, err)
	assert.True(t, IsTerminal(err), "unknown task is not retryable")
}

func TestProcessingHandler_Annotations(t *testing.T) {
	broker := newTestBroker(t)
	handler, err := NewProcessingHandler(mock.NewMockProvider(), broker)
	require.NoError(t, err)

	job := queue.NewJob(core.NewFileID(), queue.ProcessingData{
		Node:             "n1",
		Data:             core.NewDataValue("doc.txt", []byte("body")),
		ApplyAnnotations: true,
		Annotations:      map[string]string{"status": "reviewed"},
	})

	result, err := handler.HandleJob(context.Background(), job)
	require.NoError(t, err)

	raw, ok := result.Meta(core.MetaAnnotations)
	require.True(t, ok)
	assert.Contains(t, raw, "reviewed")
}

func TestPostprocessingHandler_FullPipeline(t *testing.T) {
	handler := NewPostprocessingHandler()

	data := core.NewDataValue("doc.txt", []byte("body   \nbody   \n"))
	job := queue.NewJob(core.NewFileID(), queue.PostprocessingData{
		Node:         "n1",
		Data:         data,
		CleanupTasks: []string{"trim_whitespace", "dedupe_lines"},
		TargetFormat: "html",
		Compress:     true,
	})

	result, err := handler.HandleJob(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "doc.html.gz", result.Path)
	assert.Equal(t, "application/gzip", result.ContentType)
}

func TestHandlers_EndToEndThroughDispatchers(t *testing.T) {
	broker := newTestBroker(t)
	provider := mock.NewMockProvider()

	pre, err := NewPreprocessingHandler(provider, broker)
	require.NoError(t, err)
	proc, err := NewProcessingHandler(provider, broker)
	require.NoError(t, err)
	post := NewPostprocessingHandler()

	d1, err := NewDispatcher(broker, JobHandler[queue.PreprocessingData](pre),
		WithPollInterval[queue.PreprocessingData](5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(d1.Release)
	d2, err := NewDispatcher(broker, JobHandler[queue.ProcessingData](proc),
		WithPollInterval[queue.ProcessingData](5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(d2.Release)
	d3, err := NewDispatcher(broker, JobHandler[queue.PostprocessingData](post),
		WithPollInterval[queue.PostprocessingData](5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(d3.Release)

	for _, d := range []func(context.Context) (*Handle, error){d1.Spawn, d2.Spawn, d3.Spawn} {
		h, err := d(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() {
			h.Abort()
			h.Wait(context.Background())
		})
	}

	// An untagged job submitted to preprocessing flows through all three
	// stages, one completion event per stage.
	publisher := queue.NewPublisher[queue.PreprocessingData](broker)
	fileID := core.NewFileID()
	job := queue.NewJob(fileID, queue.PreprocessingData{
		Data:            core.NewDataValue("report.txt", []byte("quarterly numbers")),
		ExtractMetadata: true,
	})
	require.NoError(t, publisher.Publish(context.Background(), job))

	require.Eventually(t, func() bool {
		msgs := fetchAll(t, broker, "post-done", queue.StagePostprocessing.CompletionWildcardSubject())
		return len(msgs) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

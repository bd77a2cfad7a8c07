package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/core"
	"github.com/poiesic/docflow/credentials"
	"github.com/poiesic/docflow/queue"
	"github.com/poiesic/docflow/workflow"
)

func inputNode() workflow.Node {
	return workflow.Node{
		Type:  workflow.NodeTypeInput,
		Input: &workflow.InputSpec{Source: workflow.SourceProvider},
	}
}

func cacheInputNode(slot string) workflow.Node {
	return workflow.Node{
		Type:  workflow.NodeTypeInput,
		Input: &workflow.InputSpec{Source: workflow.SourceCache, Slot: slot},
	}
}

func transformNode(kind workflow.TransformKind, mode workflow.ExecutionMode) workflow.Node {
	return workflow.Node{
		Type:      workflow.NodeTypeTransform,
		Transform: &workflow.TransformSpec{Kind: kind, Execution: mode},
	}
}

func cacheOutputNode(slot string) workflow.Node {
	return workflow.Node{
		Type:   workflow.NodeTypeOutput,
		Output: &workflow.OutputSpec{Destination: workflow.DestinationCache, Slot: slot},
	}
}

func TestCompile_Idempotent(t *testing.T) {
	def := &workflow.Definition{}
	in := def.AddNode(inputNode())
	ocr := def.AddNode(transformNode(workflow.TransformOCR, workflow.ExecutionDefault))
	conv := def.AddNode(transformNode(workflow.TransformConvert, workflow.ExecutionDefault))
	out := def.AddNode(cacheOutputNode("result"))
	reader := def.AddNode(cacheInputNode("result"))
	def.Connect(in, ocr)
	def.Connect(ocr, conv)
	def.Connect(conv, out)
	_ = reader

	first, err := Compile(def, credentials.NewRegistry())
	require.NoError(t, err)
	second, err := Compile(def, credentials.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, first.Order(), second.Order())
	for _, id := range first.Order() {
		p1, ok := first.Plan(id)
		require.True(t, ok)
		p2, ok := second.Plan(id)
		require.True(t, ok)
		assert.Equal(t, p1.Queued, p2.Queued)
		assert.Equal(t, p1.Stage, p2.Stage)
	}
}

func TestCompile_StageAssignment(t *testing.T) {
	def := &workflow.Definition{}
	in := def.AddNode(inputNode())
	ocr := def.AddNode(transformNode(workflow.TransformOCR, workflow.ExecutionDefault))
	task := def.AddNode(transformNode(workflow.TransformPromptTask, workflow.ExecutionDefault))
	conv := def.AddNode(transformNode(workflow.TransformConvert, workflow.ExecutionDefault))
	forced := def.AddNode(transformNode(workflow.TransformCompress, workflow.ExecutionQueued))
	inlined := def.AddNode(transformNode(workflow.TransformEmbedding, workflow.ExecutionInline))
	def.Connect(in, ocr)
	def.Connect(ocr, task)
	def.Connect(task, conv)
	def.Connect(conv, forced)
	def.Connect(forced, inlined)

	compiled, err := Compile(def, credentials.NewRegistry())
	require.NoError(t, err)

	expect := map[workflow.NodeId]struct {
		queued bool
		stage  queue.Stage
	}{
		in:      {queued: false},
		ocr:     {queued: true, stage: queue.StagePreprocessing},
		task:    {queued: true, stage: queue.StageProcessing},
		conv:    {queued: false},
		forced:  {queued: true, stage: queue.StagePostprocessing},
		inlined: {queued: false},
	}
	for id, want := range expect {
		plan, ok := compiled.Plan(id)
		require.True(t, ok)
		assert.Equal(t, want.queued, plan.Queued, "node %s", id)
		assert.Equal(t, want.stage, plan.Stage, "node %s", id)
	}
}

func TestCompile_InlineOnlyKindRejectsQueued(t *testing.T) {
	def := &workflow.Definition{}
	def.AddNode(transformNode(workflow.TransformChunk, workflow.ExecutionQueued))

	_, err := Compile(def, credentials.NewRegistry())
	var invalid *workflow.InvalidNodeError
	require.ErrorAs(t, err, &invalid)
}

func TestCompile_CredentialsNotFound(t *testing.T) {
	missing := uuid.New()
	def := &workflow.Definition{}
	def.AddNode(workflow.Node{
		Type:  workflow.NodeTypeInput,
		Input: &workflow.InputSpec{Source: workflow.SourceProvider, CredentialsID: &missing},
	})

	_, err := Compile(def, credentials.NewRegistry())
	var notFound *CredentialsNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.ID)
}

func TestCompile_ResolvesCredentials(t *testing.T) {
	creds := credentials.ProviderCredentials{
		ID:     uuid.New(),
		Kind:   credentials.ProviderObjectStore,
		Values: map[string]string{"endpoint": "http://localhost:9000"},
	}
	def := &workflow.Definition{}
	in := def.AddNode(workflow.Node{
		Type:  workflow.NodeTypeInput,
		Input: &workflow.InputSpec{Source: workflow.SourceProvider, CredentialsID: &creds.ID},
	})

	compiled, err := Compile(def, credentials.NewRegistry(creds))
	require.NoError(t, err)

	plan, ok := compiled.Plan(in)
	require.True(t, ok)
	require.NotNil(t, plan.Credentials)
	assert.Equal(t, creds.ID, plan.Credentials.ID)
}

func TestCompile_UnmatchedCacheSlots(t *testing.T) {
	writerOnly := &workflow.Definition{}
	writerOnly.AddNode(cacheOutputNode("orphan"))
	_, err := Compile(writerOnly, credentials.NewRegistry())
	var unknown *UnknownCacheSlotError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "orphan", unknown.Slot)

	readerOnly := &workflow.Definition{}
	readerOnly.AddNode(cacheInputNode("orphan"))
	_, err = Compile(readerOnly, credentials.NewRegistry())
	require.ErrorAs(t, err, &unknown)
}

func TestCompile_SlotWithTwoWriters(t *testing.T) {
	def := &workflow.Definition{}
	def.AddNode(cacheOutputNode("shared"))
	def.AddNode(cacheOutputNode("shared"))
	def.AddNode(cacheInputNode("shared"))

	_, err := Compile(def, credentials.NewRegistry())
	var invalid *InvalidCacheSlotError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "shared", invalid.Slot)
}

func TestCompile_SlotWriterDownstreamOfReader(t *testing.T) {
	def := &workflow.Definition{}
	reader := def.AddNode(cacheInputNode("loop"))
	writer := def.AddNode(cacheOutputNode("loop"))
	def.Connect(reader, writer)

	_, err := Compile(def, credentials.NewRegistry())
	var invalid *InvalidCacheSlotError
	require.ErrorAs(t, err, &invalid)
}

func TestCompile_RejectsCyclicDefinition(t *testing.T) {
	def := &workflow.Definition{}
	a := def.AddNode(transformNode(workflow.TransformConvert, workflow.ExecutionDefault))
	b := def.AddNode(transformNode(workflow.TransformCompress, workflow.ExecutionDefault))
	def.Connect(a, b)
	def.Connect(b, a)

	_, err := Compile(def, credentials.NewRegistry())
	var cycle *workflow.CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestCompile_SwitchCondition(t *testing.T) {
	def := &workflow.Definition{}
	in := def.AddNode(inputNode())
	sw := def.AddNode(workflow.Node{
		Type: workflow.NodeTypeSwitch,
		Switch: &workflow.SwitchSpec{
			Condition: workflow.Condition{Kind: workflow.ConditionFileCategory, Category: core.CategoryImage},
		},
	})
	yes := def.AddNode(transformNode(workflow.TransformThumbnail, workflow.ExecutionInline))
	no := def.AddNode(transformNode(workflow.TransformConvert, workflow.ExecutionInline))
	def.Connect(in, sw)
	def.ConnectLabeled(sw, yes, workflow.LabelTrue)
	def.ConnectLabeled(sw, no, workflow.LabelFalse)

	_, err := Compile(def, credentials.NewRegistry())
	require.NoError(t, err)
}

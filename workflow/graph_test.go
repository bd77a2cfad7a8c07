package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inputNode() Node {
	return Node{Type: NodeTypeInput, Input: &InputSpec{Source: SourceProvider, Locator: "inbox/"}}
}

func transformNode(kind TransformKind) Node {
	return Node{Type: NodeTypeTransform, Transform: &TransformSpec{Kind: kind}}
}

func outputNode() Node {
	return Node{Type: NodeTypeOutput, Output: &OutputSpec{Destination: DestinationProvider, Locator: "outbox/"}}
}

func switchNode(c Condition) Node {
	return Node{Type: NodeTypeSwitch, Switch: &SwitchSpec{Condition: c}}
}

func TestIntoGraph_Linear(t *testing.T) {
	var def Definition
	in := def.AddNode(inputNode())
	tr := def.AddNode(transformNode(TransformOCR))
	out := def.AddNode(outputNode())
	def.Connect(in, tr)
	def.Connect(tr, out)

	g, err := def.IntoGraph()
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []NodeId{in, tr, out}, g.TopologicalOrder())
	assert.Equal(t, []NodeId{in}, g.Roots())
}

func TestIntoGraph_UnknownNode(t *testing.T) {
	var def Definition
	in := def.AddNode(inputNode())
	ghost := NewNodeId()
	def.Connect(in, ghost)

	_, err := def.IntoGraph()
	var unknownErr *UnknownNodeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, ghost, unknownErr.Node)
}

func TestIntoGraph_Cycle(t *testing.T) {
	var def Definition
	a := def.AddNode(transformNode(TransformChunk))
	b := def.AddNode(transformNode(TransformEmbedding))
	c := def.AddNode(transformNode(TransformAnnotate))
	def.Connect(a, b)
	def.Connect(b, c)
	def.Connect(c, a)

	_, err := def.IntoGraph()
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Len(t, cycleErr.Path, 4)
	assert.Equal(t, cycleErr.Path[0], cycleErr.Path[3])
}

func TestIntoGraph_SelfLoop(t *testing.T) {
	var def Definition
	a := def.AddNode(transformNode(TransformChunk))
	def.Connect(a, a)

	_, err := def.IntoGraph()
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []NodeId{a, a}, cycleErr.Path)
}

func TestGraph_Validate(t *testing.T) {
	var def Definition
	in := def.AddNode(inputNode())
	tr := def.AddNode(transformNode(TransformOCR))
	def.Connect(in, tr)

	g, err := def.IntoGraph()
	require.NoError(t, err)
	assert.NoError(t, g.Validate())

	// A graph assembled without IntoGraph's checks stands in for one
	// corrupted across a cache boundary.
	var cyclic Definition
	a := cyclic.AddNode(transformNode(TransformChunk))
	b := cyclic.AddNode(transformNode(TransformEmbedding))
	cyclic.Connect(a, b)
	cyclic.Connect(b, a)

	var cycleErr *CycleError
	require.ErrorAs(t, newGraph(&cyclic).Validate(), &cycleErr)
	assert.Len(t, cycleErr.Path, 3)
}

func TestIntoGraph_SwitchEdgeValidation(t *testing.T) {
	cond := Condition{Kind: ConditionFileExtension, Extensions: []string{"pdf"}}

	t.Run("missing false branch", func(t *testing.T) {
		var def Definition
		sw := def.AddNode(switchNode(cond))
		out := def.AddNode(outputNode())
		def.ConnectLabeled(sw, out, LabelTrue)

		_, err := def.IntoGraph()
		var swErr *InvalidSwitchError
		require.ErrorAs(t, err, &swErr)
		assert.Equal(t, sw, swErr.Node)
	})

	t.Run("duplicate labels", func(t *testing.T) {
		var def Definition
		sw := def.AddNode(switchNode(cond))
		a := def.AddNode(outputNode())
		b := def.AddNode(outputNode())
		def.ConnectLabeled(sw, a, LabelTrue)
		def.ConnectLabeled(sw, b, LabelTrue)

		_, err := def.IntoGraph()
		var swErr *InvalidSwitchError
		require.ErrorAs(t, err, &swErr)
	})

	t.Run("valid", func(t *testing.T) {
		var def Definition
		sw := def.AddNode(switchNode(cond))
		a := def.AddNode(outputNode())
		b := def.AddNode(outputNode())
		def.ConnectLabeled(sw, a, LabelTrue)
		def.ConnectLabeled(sw, b, LabelFalse)

		_, err := def.IntoGraph()
		require.NoError(t, err)
	})
}

func TestIntoGraph_NodeSpecMismatch(t *testing.T) {
	var def Definition
	def.AddNode(Node{Type: NodeTypeInput, Transform: &TransformSpec{Kind: TransformOCR}})

	_, err := def.IntoGraph()
	var nodeErr *InvalidNodeError
	require.ErrorAs(t, err, &nodeErr)
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	// Diamond: the two middle nodes are ready at the same time, so the
	// order between them is decided by id comparison.
	var def Definition
	in := def.AddNode(inputNode())
	l := def.AddNode(transformNode(TransformChunk))
	r := def.AddNode(transformNode(TransformThumbnail))
	out := def.AddNode(outputNode())
	def.Connect(in, l)
	def.Connect(in, r)
	def.Connect(l, out)
	def.Connect(r, out)

	g1, err := def.IntoGraph()
	require.NoError(t, err)
	g2, err := def.IntoGraph()
	require.NoError(t, err)

	order := g1.TopologicalOrder()
	assert.Equal(t, order, g2.TopologicalOrder())

	// Every edge must point forward in the order.
	pos := make(map[NodeId]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range def.Edges {
		assert.Less(t, pos[e.From], pos[e.To])
	}
}

func TestDescendants(t *testing.T) {
	var def Definition
	in := def.AddNode(inputNode())
	mid := def.AddNode(transformNode(TransformOCR))
	out := def.AddNode(outputNode())
	stray := def.AddNode(outputNode())
	def.Connect(in, mid)
	def.Connect(mid, out)
	def.Connect(in, stray)

	g, err := def.IntoGraph()
	require.NoError(t, err)

	desc := g.Descendants(mid)
	assert.Len(t, desc, 1)
	_, ok := desc[out]
	assert.True(t, ok)
}

func TestDefinition_JSONRoundTrip(t *testing.T) {
	var def Definition
	in := def.AddNode(inputNode())
	sw := def.AddNode(switchNode(Condition{Kind: ConditionLanguage, Language: "en", MinConfidence: 0.9}))
	a := def.AddNode(outputNode())
	b := def.AddNode(outputNode())
	def.Connect(in, sw)
	def.ConnectLabeled(sw, a, LabelTrue)
	def.ConnectLabeled(sw, b, LabelFalse)
	def.Metadata = Metadata{Name: "triage", Version: "1"}

	data, err := json.Marshal(&def)
	require.NoError(t, err)

	parsed, err := ParseDefinition(data)
	require.NoError(t, err)
	assert.Equal(t, def.Metadata, parsed.Metadata)
	assert.Len(t, parsed.Nodes, 4)
	assert.Len(t, parsed.Edges, 3)

	_, err = parsed.IntoGraph()
	require.NoError(t, err)
}

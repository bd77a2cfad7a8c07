package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/connector"
	"github.com/poiesic/docflow/core"
)

func TestSeedAndRead(t *testing.T) {
	s := New()
	s.Seed("docs",
		core.NewDataValue("b.txt", []byte("2")),
		core.NewDataValue("a.txt", []byte("1")),
	)

	stream, err := s.Read(context.Background(), "docs", "")
	require.NoError(t, err)
	items, err := connector.ReadAll(context.Background(), stream)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].Path, "items stream in path order")
	assert.Equal(t, "b.txt", items[1].Path)
}

func TestWriteClonesItems(t *testing.T) {
	s := New()
	original := core.NewDataValue("doc.txt", []byte("body"))
	require.NoError(t, s.Write(context.Background(), "out", []*core.DataValue{original}))

	original.SetMeta("mutated", "yes")

	stored := s.Items("out")
	require.Len(t, stored, 1)
	_, ok := stored[0].Meta("mutated")
	assert.False(t, ok, "store holds an independent copy")
}

func TestReadResume(t *testing.T) {
	s := New()
	s.Seed("docs",
		core.NewDataValue("a.txt", []byte("1")),
		core.NewDataValue("b.txt", []byte("2")),
	)

	stream, err := s.Read(context.Background(), "docs", connector.Cursor("a.txt"))
	require.NoError(t, err)
	items, err := connector.ReadAll(context.Background(), stream)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "b.txt", items[0].Path)
}

func TestRegistry(t *testing.T) {
	s := New()
	id := core.NewFileID()

	reg := connector.NewRegistry().
		RegisterReader(id, s).
		RegisterWriter(id, s)

	_, err := reg.Reader(id)
	require.NoError(t, err)
	_, err = reg.Writer(id)
	require.NoError(t, err)

	_, err = reg.Reader(core.NewFileID())
	assert.ErrorIs(t, err, connector.ErrNoReader)
}

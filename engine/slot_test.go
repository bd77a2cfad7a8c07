package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docflow/core"
)

func TestCacheSlot_WriteReadClose(t *testing.T) {
	slot := newCacheSlot("results")

	require.NoError(t, slot.Write(core.NewDataValue("a.txt", []byte("1"))))
	require.NoError(t, slot.Write(core.NewDataValue("b.txt", []byte("2"))))
	slot.Close()

	items, err := slot.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].Path)
}

func TestCacheSlot_WriteAfterClose(t *testing.T) {
	slot := newCacheSlot("results")
	slot.Close()
	slot.Close() // idempotent

	err := slot.Write(core.NewDataValue("a.txt", nil))
	var closed *CacheSlotClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, "results", closed.Slot)
}

func TestCacheSlot_ReadBlocksUntilClose(t *testing.T) {
	slot := newCacheSlot("results")

	got := make(chan int, 1)
	go func() {
		items, err := slot.Read(context.Background())
		if err != nil {
			got <- -1
			return
		}
		got <- len(items)
	}()

	select {
	case <-got:
		t.Fatal("read returned before the slot was closed")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, slot.Write(core.NewDataValue("a.txt", []byte("1"))))
	slot.Close()

	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("read did not return after close")
	}
}

func TestCacheSlot_ReadHonorsContext(t *testing.T) {
	slot := newCacheSlot("results")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := slot.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

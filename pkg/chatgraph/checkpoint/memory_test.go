package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaver_PutAssignsSequence(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		cp := New("thread-1", "node", []byte(`{}`), "next")
		require.NoError(t, saver.Put(ctx, cp))
		assert.Equal(t, i, cp.Sequence)
	}

	// Sequences are per thread.
	cp := New("thread-2", "node", []byte(`{}`), "next")
	require.NoError(t, saver.Put(ctx, cp))
	assert.Equal(t, 1, cp.Sequence)
}

func TestMemorySaver_Latest(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	first := New("thread-1", "a", []byte(`{"n":1}`), "b")
	second := New("thread-1", "b", []byte(`{"n":2}`), "c")
	require.NoError(t, saver.Put(ctx, first))
	require.NoError(t, saver.Put(ctx, second))

	latest, err := saver.Latest(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "b", latest.NodeID)
	assert.Equal(t, 2, latest.Sequence)
}

func TestMemorySaver_LatestNotFound(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()

	_, err := saver.Latest(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySaver_LatestReturnsCopy(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	cp := New("thread-1", "a", []byte(`{"n":1}`), "b")
	require.NoError(t, saver.Put(ctx, cp))

	got, err := saver.Latest(ctx, "thread-1")
	require.NoError(t, err)
	got.State[2] = 'x'
	got.NodeID = "mutated"

	again, err := saver.Latest(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"n":1}`), []byte(again.State))
	assert.Equal(t, "a", again.NodeID)
}

func TestMemorySaver_List(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, New("thread-1", "a", []byte(`{"n":1}`), "b")))
	require.NoError(t, saver.Put(ctx, New("thread-1", "b", []byte(`{"nn":22}`), "")))

	infos, err := saver.List(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].NodeID)
	assert.Equal(t, 1, infos[0].Sequence)
	assert.Equal(t, int64(7), infos[0].Size)
	assert.Equal(t, "b", infos[1].NodeID)
	assert.Equal(t, 2, infos[1].Sequence)

	empty, err := saver.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemorySaver_PutWrites(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	writes := []PendingWrite{{NodeID: "generate", Index: 0, Data: []byte(`{"status":"executing"}`)}}
	require.NoError(t, saver.PutWrites(ctx, "thread-1", "cp-1", writes))

	// Re-recording the same (thread, checkpoint) is idempotent.
	require.NoError(t, saver.PutWrites(ctx, "thread-1", "cp-1", writes))
}

func TestMemorySaver_DeleteThreadScoped(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	require.NoError(t, saver.Put(ctx, New("thread-1", "a", []byte(`{}`), "")))
	require.NoError(t, saver.Put(ctx, New("thread-2", "a", []byte(`{}`), "")))

	require.NoError(t, saver.DeleteThread(ctx, "thread-1"))

	_, err := saver.Latest(ctx, "thread-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Other threads untouched.
	_, err = saver.Latest(ctx, "thread-2")
	require.NoError(t, err)

	// Deleting an absent thread is a no-op.
	require.NoError(t, saver.DeleteThread(ctx, "thread-1"))
}

func TestMemorySaver_Closed(t *testing.T) {
	saver := NewMemorySaver()
	require.NoError(t, saver.Close())
	ctx := context.Background()

	assert.ErrorIs(t, saver.Put(ctx, New("t", "n", nil, "")), ErrSaverClosed)
	_, err := saver.Latest(ctx, "t")
	assert.ErrorIs(t, err, ErrSaverClosed)
	_, err = saver.List(ctx, "t")
	assert.ErrorIs(t, err, ErrSaverClosed)
	assert.ErrorIs(t, saver.PutWrites(ctx, "t", "cp", nil), ErrSaverClosed)
	assert.ErrorIs(t, saver.DeleteThread(ctx, "t"), ErrSaverClosed)
}

func TestMemorySaver_ConcurrentPut(t *testing.T) {
	saver := NewMemorySaver()
	defer saver.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("thread-%d", n%3)
			for j := 0; j < 20; j++ {
				_ = saver.Put(ctx, New(key, "node", []byte(`{}`), ""))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, saver.Len())

	// Sequences within each thread are gapless and strictly increasing.
	for i := 0; i < 3; i++ {
		infos, err := saver.List(ctx, fmt.Sprintf("thread-%d", i))
		require.NoError(t, err)
		for j, info := range infos {
			assert.Equal(t, j+1, info.Sequence)
		}
	}
}

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkfuzz/internal/ir"
)

func TestAppendQueue_FIFO(t *testing.T) {
	q := newAppendQueue()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(appendRequest{rec: ir.Record{RunID: id}}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.rec.RunID)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestAppendQueue_Signal(t *testing.T) {
	q := newAppendQueue()
	q.Enqueue(appendRequest{rec: ir.Record{RunID: "A"}})
	q.Enqueue(appendRequest{rec: ir.Record{RunID: "B"}})

	select {
	case <-q.Wait():
	default:
		t.Fatal("enqueue should signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestAppendQueue_Close(t *testing.T) {
	q := newAppendQueue()
	q.Enqueue(appendRequest{rec: ir.Record{RunID: "A"}})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(appendRequest{}), "enqueue after close should fail")
	assert.False(t, q.Drained(), "pending requests survive close")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	<-q.Wait() // buffered signal from the enqueue
	_, open := <-q.Wait()
	assert.False(t, open, "wait channel closed")
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	c = NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(42), c.Current())
}

package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperflow/paperflow/internal/config"
)

func TestQueue_FIFO(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		require.True(t, q.Push(Item{Path: fmt.Sprintf("/in/f%d.pdf", i)}))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		item, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("/in/f%d.pdf", i), item.Path)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New()
	got := make(chan Item, 1)
	go func() {
		item, ok := q.Pop()
		if ok {
			got <- item
		}
	}()

	// Give the consumer time to block before producing.
	time.Sleep(10 * time.Millisecond)
	profile := &config.Profile{Name: "p"}
	require.True(t, q.Push(Item{Path: "/in/a.pdf", Profile: profile}))

	select {
	case item := <-got:
		assert.Equal(t, "/in/a.pdf", item.Path)
		assert.Same(t, profile, item.Profile)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueue_CloseDrainsBacklogFirst(t *testing.T) {
	q := New()
	require.True(t, q.Push(Item{Path: "/in/a.pdf"}))
	require.True(t, q.Push(Item{Path: "/in/b.pdf"}))
	q.Close()

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "/in/a.pdf", item.Path)

	item, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "/in/b.pdf", item.Path)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_PushAfterCloseRejected(t *testing.T) {
	q := New()
	q.Close()
	assert.False(t, q.Push(Item{Path: "/in/late.pdf"}))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CloseWakesBlockedConsumer(t *testing.T) {
	q := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after Close")
	}
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	q := New()
	q.Close()
	q.Close()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueue_ManyProducers(t *testing.T) {
	q := New()
	const producers, perProducer = 8, 25

	for p := 0; p < producers; p++ {
		go func(p int) {
			for i := 0; i < perProducer; i++ {
				q.Push(Item{Path: fmt.Sprintf("/in/p%d_%d.pdf", p, i)})
			}
		}(p)
	}

	seen := make(map[string]bool)
	for i := 0; i < producers*perProducer; i++ {
		item, ok := q.Pop()
		require.True(t, ok)
		require.False(t, seen[item.Path], "duplicate delivery of %s", item.Path)
		seen[item.Path] = true
	}
	assert.Len(t, seen, producers*perProducer)
}

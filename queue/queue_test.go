package queue_test

import (
	"testing"

	"blogbot/models"
	"blogbot/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id string) models.Post {
	return models.Post{EntryID: id, Title: "Post " + id, Link: "https://blog.example/" + id}
}

func TestQueueFIFO(t *testing.T) {
	q := queue.New()

	assert.True(t, q.Enqueue(post("id-1")))
	assert.True(t, q.Enqueue(post("id-2")))
	assert.True(t, q.Enqueue(post("id-3")))
	assert.Equal(t, 3, q.Len())

	for _, expected := range []string{"id-1", "id-2", "id-3"} {
		popped, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, expected, popped.EntryID)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueueDedup(t *testing.T) {
	q := queue.New()

	assert.True(t, q.Enqueue(post("id-1")))
	assert.False(t, q.Enqueue(post("id-1")))
	assert.Equal(t, 1, q.Len())
}

func TestQueueReadmitsAfterPop(t *testing.T) {
	q := queue.New()

	require.True(t, q.Enqueue(post("id-1")))
	_, ok := q.Pop()
	require.True(t, ok)

	// The id is free again once popped; the dispatcher's cursor check is
	// what prevents a second delivery.
	assert.True(t, q.Enqueue(post("id-1")))
}

func TestQueuePopEmpty(t *testing.T) {
	q := queue.New()

	_, ok := q.Pop()
	assert.False(t, ok)
}

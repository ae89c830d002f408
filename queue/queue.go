// Package queue holds posts awaiting delivery. The queue is ordered oldest
// first, deduplicates on entry id, and lives only in memory: after a restart
// the next ingestion cycle rebuilds it, and the durable per-feed cursor
// prevents anything already delivered from coming back.
package queue

import (
	"sync"

	"blogbot/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueLength = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "blogbot_queue_length",
	Help: "Number of posts currently waiting in the publish queue",
})

type Queue struct {
	mu    sync.Mutex
	posts []models.Post
	seen  map[string]struct{}
}

func New() *Queue {
	return &Queue{
		seen: make(map[string]struct{}),
	}
}

// Enqueue appends the post unless a post with the same entry id is already
// queued. Reports whether the post was admitted.
func (q *Queue) Enqueue(post models.Post) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.seen[post.EntryID]; ok {
		return false
	}

	q.posts = append(q.posts, post)
	q.seen[post.EntryID] = struct{}{}
	queueLength.Set(float64(len(q.posts)))
	return true
}

// Pop removes and returns the oldest queued post. The entry id becomes
// eligible for re-admission; the dispatcher's durable cursor check covers
// the window between pop and cursor commit.
func (q *Queue) Pop() (models.Post, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.posts) == 0 {
		return models.Post{}, false
	}

	post := q.posts[0]
	q.posts = q.posts[1:]
	delete(q.seen, post.EntryID)
	queueLength.Set(float64(len(q.posts)))
	return post, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.posts)
}

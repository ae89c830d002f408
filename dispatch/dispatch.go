// Package dispatch drains the publish queue one post per tick, re-checks the
// durable cursor so a post is never delivered twice, and commits the cursor
// only after the publisher accepts the post.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blogbot/db"
	"blogbot/models"
	"blogbot/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	postsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogbot_posts_published_total",
		Help: "Number of posts delivered to the publishing channel",
	})
	postsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogbot_posts_skipped_total",
		Help: "Number of queued posts dropped as already delivered",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogbot_publish_errors_total",
		Help: "Number of failed publish attempts",
	})
)

// Message is a composed post ready for the publishing channel. Link is also
// present in Text; it is carried separately so the channel can mark it up.
type Message struct {
	Text     string
	Link     string
	Language string
}

// Publisher is the outbound publishing channel. Implementations own their
// delivery semantics; the dispatcher treats a returned error as a dropped
// post and relies on re-discovery by the next ingestion cycle.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Store is the slice of the feed store the dispatcher needs.
type Store interface {
	GetFeed(ctx context.Context, url string) (models.Feed, error)
	SetCursor(ctx context.Context, url string, entryID string) error
	CursorMatches(ctx context.Context, url string, entryID string) (bool, error)
}

// Dispatcher delivers at most one queued post per tick. Ticks are
// serialized: a tick that fires while the previous one is still publishing
// is skipped.
type Dispatcher struct {
	store     Store
	queue     *queue.Queue
	publisher Publisher
	location  *time.Location
	mu        sync.Mutex
}

func New(store Store, q *queue.Queue, publisher Publisher, location *time.Location) *Dispatcher {
	if location == nil {
		location = time.UTC
	}
	return &Dispatcher{
		store:     store,
		queue:     q,
		publisher: publisher,
		location:  location,
	}
}

// RunOnce pops the oldest queued post and publishes it. An empty queue is a
// no-op. A post whose entry id already equals the stored cursor is a benign
// duplicate from an overlapping cycle and is discarded without publishing.
// On publish failure the post is dropped without moving the cursor, so the
// next ingestion cycle re-discovers it.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	if !d.mu.TryLock() {
		log.Warn("Dispatch still in flight, skipping tick")
		return nil
	}
	defer d.mu.Unlock()

	post, ok := d.queue.Pop()
	if !ok {
		return nil
	}

	delivered, err := d.store.CursorMatches(ctx, post.FeedURL, post.EntryID)
	if err != nil {
		return fmt.Errorf("cursor check: %w", err)
	}
	if delivered {
		postsSkipped.Inc()
		log.WithFields(log.Fields{
			"feed":    post.FeedURL,
			"entryId": post.EntryID,
		}).Debug("Skipping already delivered post")
		return nil
	}

	feed, err := d.store.GetFeed(ctx, post.FeedURL)
	if errors.Is(err, db.ErrFeedNotFound) {
		log.WithFields(log.Fields{
			"feed": post.FeedURL,
		}).Info("Dropping post for removed feed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get feed: %w", err)
	}

	msg := Message{
		Text:     composeText(post, feed.Title, time.Now(), d.location),
		Link:     post.Link,
		Language: post.Language,
	}

	if err := d.publisher.Publish(ctx, msg); err != nil {
		publishErrors.Inc()
		log.WithFields(log.Fields{
			"feed":    post.FeedURL,
			"title":   post.Title,
			"entryId": post.EntryID,
		}).WithError(err).Error("Failed to publish post")
		return nil
	}

	if err := d.store.SetCursor(ctx, post.FeedURL, post.EntryID); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	postsPublished.Inc()
	log.WithFields(log.Fields{
		"feed":    feed.Title,
		"title":   post.Title,
		"entryId": post.EntryID,
	}).Info("Published post")

	return nil
}

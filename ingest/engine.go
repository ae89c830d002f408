// Package ingest fetches the tracked feeds, extracts entries newer than each
// feed's cursor and admits them to the publish queue.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"blogbot/models"
	"blogbot/queue"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Feeds are fetched in parallel within fixed-size batches; batches run
// sequentially.
const batchSize = 10

const fetchTimeout = 30 * time.Second

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogbot_feed_fetch_attempts_total",
		Help: "Number of feed fetch attempts",
	})
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogbot_feed_fetch_errors_total",
		Help: "Number of failed feed fetches",
	})
	entriesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogbot_entries_enqueued_total",
		Help: "Number of feed entries admitted to the publish queue",
	})
)

// Store is the slice of the feed store the engine needs.
type Store interface {
	ListFeeds(ctx context.Context) ([]models.Feed, error)
	SetCursor(ctx context.Context, url string, entryID string) error
}

// Engine runs one ingestion cycle at a time across all tracked feeds. A
// cycle that fires while the previous one is still in flight is skipped.
type Engine struct {
	store    Store
	queue    *queue.Queue
	parser   *gofeed.Parser
	lookback time.Duration
	mu       sync.Mutex
}

func NewEngine(store Store, q *queue.Queue, lookback time.Duration) *Engine {
	parser := gofeed.NewParser()
	parser.UserAgent = "blogbot"
	parser.Client = &http.Client{Timeout: fetchTimeout}

	return &Engine{
		store:    store,
		queue:    q,
		parser:   parser,
		lookback: lookback,
	}
}

// Run executes one ingestion cycle: fetch every tracked feed in parallel
// batches, seed cursors for first-seen feeds and enqueue new entries for the
// rest. A single feed's failure is logged and never aborts its batch.
func (e *Engine) Run(ctx context.Context) error {
	if !e.mu.TryLock() {
		log.Warn("Ingestion cycle still in flight, skipping")
		return nil
	}
	defer e.mu.Unlock()

	feeds, err := e.store.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	for _, batch := range lo.Chunk(feeds, batchSize) {
		var wg sync.WaitGroup
		for _, feed := range batch {
			wg.Add(1)
			go func(feed models.Feed) {
				defer wg.Done()
				if err := e.processFeed(ctx, feed); err != nil {
					fetchErrors.Inc()
					log.WithFields(log.Fields{
						"feed": feed.URL,
					}).WithError(err).Error("Failed to process feed")
				}
			}(feed)
		}
		wg.Wait()
	}

	return nil
}

func (e *Engine) processFeed(ctx context.Context, feed models.Feed) error {
	fetchAttempts.Inc()

	parsed, err := e.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	// A first-seen feed only gets its cursor seeded; its backlog is never
	// delivered. Entries published after this point are picked up on
	// subsequent cycles.
	if feed.Cursor == nil {
		id, ok := NewestEntryID(parsed)
		if !ok {
			return nil
		}
		if err := e.store.SetCursor(ctx, feed.URL, id); err != nil {
			return fmt.Errorf("seed cursor: %w", err)
		}
		log.WithFields(log.Fields{
			"feed":    feed.URL,
			"entryId": id,
		}).Info("Seeded cursor for new feed")
		return nil
	}

	for _, post := range ExtractNew(parsed, feed, time.Now(), e.lookback) {
		if e.queue.Enqueue(post) {
			entriesEnqueued.Inc()
			log.WithFields(log.Fields{
				"feed":    post.FeedURL,
				"title":   post.Title,
				"entryId": post.EntryID,
			}).Info("Enqueued post")
		}
	}

	return nil
}

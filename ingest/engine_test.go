package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"blogbot/ingest"
	"blogbot/models"
	"blogbot/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	feeds []models.Feed
}

func (s *fakeStore) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds := make([]models.Feed, len(s.feeds))
	copy(feeds, s.feeds)
	return feeds, nil
}

func (s *fakeStore) SetCursor(ctx context.Context, url string, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, feed := range s.feeds {
		if feed.URL == url {
			s.feeds[i].Cursor = &entryID
			return nil
		}
	}
	return fmt.Errorf("no such feed: %s", url)
}

func (s *fakeStore) cursor(url string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, feed := range s.feeds {
		if feed.URL == url {
			return feed.Cursor
		}
	}
	return nil
}

// rssDocument renders a minimal RSS feed with the given entry ids,
// newest-first, all published one hour ago.
func rssDocument(ids ...string) string {
	pubDate := time.Now().Add(-time.Hour).Format(time.RFC1123Z)
	doc := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Example Blog</title>`
	for _, id := range ids {
		doc += fmt.Sprintf(
			`<item><title>Post %s</title><link>https://blog.example/%s</link><guid isPermaLink="false">%s</guid><pubDate>%s</pubDate></item>`,
			id, id, id, pubDate,
		)
	}
	return doc + `</channel></rss>`
}

func feedServer(t *testing.T, document string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, document)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEngineBootstrapSeedsCursorWithoutEnqueuing(t *testing.T) {
	srv := feedServer(t, rssDocument("id-3", "id-2", "id-1"))

	store := &fakeStore{feeds: []models.Feed{{URL: srv.URL, Title: "Example Blog", Language: "en"}}}
	q := queue.New()
	engine := ingest.NewEngine(store, q, 72*time.Hour)

	require.NoError(t, engine.Run(context.Background()))

	cursor := store.cursor(srv.URL)
	require.NotNil(t, cursor)
	assert.Equal(t, "id-3", *cursor)
	assert.Equal(t, 0, q.Len())
}

func TestEngineEnqueuesNewEntriesInOrder(t *testing.T) {
	srv := feedServer(t, rssDocument("id-3", "id-2", "id-1"))

	store := &fakeStore{feeds: []models.Feed{{
		URL:      srv.URL,
		Title:    "Example Blog",
		Language: "en",
		Cursor:   strptr("id-1"),
	}}}
	q := queue.New()
	engine := ingest.NewEngine(store, q, 72*time.Hour)

	require.NoError(t, engine.Run(context.Background()))

	// Ingestion never advances the cursor; only dispatch does
	cursor := store.cursor(srv.URL)
	require.NotNil(t, cursor)
	assert.Equal(t, "id-1", *cursor)

	var ids []string
	for {
		post, ok := q.Pop()
		if !ok {
			break
		}
		ids = append(ids, post.EntryID)
	}
	assert.Equal(t, []string{"id-2", "id-3"}, ids)
}

func TestEngineFeedFailureIsIsolated(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	healthy := feedServer(t, rssDocument("id-2", "id-1"))

	store := &fakeStore{feeds: []models.Feed{
		{URL: broken.URL, Title: "Broken", Language: "en", Cursor: strptr("id-0")},
		{URL: healthy.URL, Title: "Healthy", Language: "en", Cursor: strptr("id-1")},
	}}
	q := queue.New()
	engine := ingest.NewEngine(store, q, 72*time.Hour)

	require.NoError(t, engine.Run(context.Background()))

	post, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "id-2", post.EntryID)
	assert.Equal(t, healthy.URL, post.FeedURL)
	assert.Equal(t, 0, q.Len())
}

func TestEngineRerunDoesNotDuplicateQueueEntries(t *testing.T) {
	srv := feedServer(t, rssDocument("id-2", "id-1"))

	store := &fakeStore{feeds: []models.Feed{{
		URL:      srv.URL,
		Title:    "Example Blog",
		Language: "en",
		Cursor:   strptr("id-0"),
	}}}
	q := queue.New()
	engine := ingest.NewEngine(store, q, 72*time.Hour)

	require.NoError(t, engine.Run(context.Background()))
	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, 2, q.Len())
}

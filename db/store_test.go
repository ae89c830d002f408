package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"blogbot/db"
	"blogbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *db.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bot.db")
	require.NoError(t, db.Migrate(path))

	store, err := db.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func seedTestFeeds(t *testing.T, store *db.Store) {
	t.Helper()
	require.NoError(t, store.SeedFeeds(context.Background(), []models.Feed{
		{URL: "https://a.example/feed", Title: "A", Language: "en"},
		{URL: "https://b.example/feed", Title: "B", Language: "ko", ShowDescription: true},
	}))
}

func TestSeedAndListFeeds(t *testing.T) {
	store := testStore(t)
	seedTestFeeds(t, store)

	feeds, err := store.ListFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 2)

	for _, feed := range feeds {
		assert.Nil(t, feed.Cursor)
	}
}

func TestSeedFeedsUpsertKeepsCursor(t *testing.T) {
	store := testStore(t)
	seedTestFeeds(t, store)

	ctx := context.Background()
	require.NoError(t, store.SetCursor(ctx, "https://a.example/feed", "id-1"))

	// Re-seeding with a changed title must not touch the cursor
	require.NoError(t, store.SeedFeeds(ctx, []models.Feed{
		{URL: "https://a.example/feed", Title: "A renamed", Language: "en"},
	}))

	feed, err := store.GetFeed(ctx, "https://a.example/feed")
	require.NoError(t, err)
	assert.Equal(t, "A renamed", feed.Title)
	require.NotNil(t, feed.Cursor)
	assert.Equal(t, "id-1", *feed.Cursor)
}

func TestGetFeedNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetFeed(context.Background(), "https://missing.example/feed")
	assert.ErrorIs(t, err, db.ErrFeedNotFound)
}

func TestSetCursorUnknownFeed(t *testing.T) {
	store := testStore(t)

	err := store.SetCursor(context.Background(), "https://missing.example/feed", "id-1")
	assert.ErrorIs(t, err, db.ErrFeedNotFound)
}

func TestCursorMatches(t *testing.T) {
	store := testStore(t)
	seedTestFeeds(t, store)
	ctx := context.Background()

	// No cursor yet: nothing matches
	match, err := store.CursorMatches(ctx, "https://a.example/feed", "id-1")
	require.NoError(t, err)
	assert.False(t, match)

	require.NoError(t, store.SetCursor(ctx, "https://a.example/feed", "id-1"))

	match, err = store.CursorMatches(ctx, "https://a.example/feed", "id-1")
	require.NoError(t, err)
	assert.True(t, match)

	match, err = store.CursorMatches(ctx, "https://a.example/feed", "id-2")
	require.NoError(t, err)
	assert.False(t, match)

	// Unknown feed counts as a match so a removed feed is never published
	match, err = store.CursorMatches(ctx, "https://missing.example/feed", "id-1")
	require.NoError(t, err)
	assert.True(t, match)
}

func TestPruneFeeds(t *testing.T) {
	store := testStore(t)
	seedTestFeeds(t, store)
	ctx := context.Background()

	require.NoError(t, store.PruneFeeds(ctx, []string{"https://a.example/feed"}))

	feeds, err := store.ListFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Equal(t, "https://a.example/feed", feeds[0].URL)

	// An empty keep list must not wipe the table
	require.NoError(t, store.PruneFeeds(ctx, nil))
	feeds, err = store.ListFeeds(ctx)
	require.NoError(t, err)
	assert.Len(t, feeds, 1)
}

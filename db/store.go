package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blogbot/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// ErrFeedNotFound is returned when a feed url has no row in the feeds table,
// typically because the feed was removed from the configuration.
var ErrFeedNotFound = errors.New("feed not found")

// Store handles all feed table operations with a shared connection pool.
// Every operation is a single-row statement; the cursor column is only ever
// written by the dispatcher after a successful publish, or seeded once by the
// ingestion engine on a feed's first fetch.
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ListFeeds returns all tracked feeds.
func (s *Store) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("title", "url", "show_description", "last_entry_id", "language").From("feeds")

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		feed, err := scanFeed(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// GetFeed returns the feed with the given url, or ErrFeedNotFound.
func (s *Store) GetFeed(ctx context.Context, url string) (models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("title", "url", "show_description", "last_entry_id", "language").From("feeds")
	sb.Where(sb.Equal("url", url))

	query, args := sb.Build()
	feed, err := scanFeed(s.db.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Feed{}, ErrFeedNotFound
	}
	if err != nil {
		return models.Feed{}, fmt.Errorf("query error: %w", err)
	}

	return feed, nil
}

// SetCursor records entryID as the most recently delivered entry for the feed.
func (s *Store) SetCursor(ctx context.Context, url string, entryID string) error {
	ub := sqlbuilder.NewUpdateBuilder()
	query, args := ub.Update("feeds").Set(ub.Assign("last_entry_id", entryID)).Where(ub.Equal("url", url)).Build()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFeedNotFound
	}

	return nil
}

// CursorMatches reports whether the stored cursor for the feed equals
// entryID. An unknown feed counts as a match so that a feed removed between
// enqueue and dispatch can never be published.
func (s *Store) CursorMatches(ctx context.Context, url string, entryID string) (bool, error) {
	var cursor sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT last_entry_id FROM feeds WHERE url = ?", url).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return cursor.Valid && cursor.String == entryID, nil
}

// SeedFeeds upserts the configured feeds by url, leaving cursors untouched.
func (s *Store) SeedFeeds(ctx context.Context, feeds []models.Feed) error {
	for _, feed := range feeds {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO feeds (title, url, show_description, language)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (url) DO UPDATE SET
				title = excluded.title,
				show_description = excluded.show_description,
				language = excluded.language`,
			feed.Title, feed.URL, feed.ShowDescription, feed.Language,
		)
		if err != nil {
			return fmt.Errorf("upsert error for %s: %w", feed.URL, err)
		}
	}

	log.WithFields(log.Fields{
		"count": len(feeds),
	}).Info("Seeded feeds")

	return nil
}

// PruneFeeds deletes feeds whose url is not in keep. A no-op when keep is
// empty so that an empty configuration cannot wipe the table.
func (s *Store) PruneFeeds(ctx context.Context, keep []string) error {
	if len(keep) == 0 {
		return nil
	}

	del := sqlbuilder.NewDeleteBuilder()
	urls := make([]interface{}, len(keep))
	for i, url := range keep {
		urls[i] = url
	}
	query, args := del.DeleteFrom("feeds").Where(del.NotIn("url", urls...)).Build()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.WithFields(log.Fields{
			"count": n,
		}).Info("Removed feeds no longer in config")
	}

	return nil
}

func scanFeed(scan func(dest ...any) error) (models.Feed, error) {
	var feed models.Feed
	var cursor sql.NullString
	if err := scan(&feed.Title, &feed.URL, &feed.ShowDescription, &cursor, &feed.Language); err != nil {
		return models.Feed{}, err
	}
	if cursor.Valid {
		feed.Cursor = &cursor.String
	}
	return feed, nil
}

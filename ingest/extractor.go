package ingest

import (
	"strings"
	"time"

	"blogbot/models"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
)

// Bodies longer than this are delivered without a description rather than
// truncated.
const maxDescriptionLen = 250

// normalizeEntryID strips the URL scheme before comparing ids. Some feeds
// flip between http and https across re-publications of the same entry.
func normalizeEntryID(id string) string {
	id = strings.TrimPrefix(id, "https://")
	id = strings.TrimPrefix(id, "http://")
	return id
}

func entryID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

func entryLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if len(item.Links) > 0 {
		return item.Links[0]
	}
	return ""
}

// NewestEntryID returns the id of the newest deliverable entry in the
// document, used to seed the cursor on a feed's first fetch.
func NewestEntryID(parsed *gofeed.Feed) (string, bool) {
	for _, item := range parsed.Items {
		if entryLink(item) == "" {
			continue
		}
		return entryID(item), true
	}
	return "", false
}

// ExtractNew walks the document's entries from newest to oldest, stopping at
// the feed's cursor, and returns the new entries in chronological order,
// oldest first. Entries without a link are skipped and entries published more
// than lookback before now are discarded, so a feed suddenly exposing a long
// backlog cannot flood the queue.
func ExtractNew(parsed *gofeed.Feed, feed models.Feed, now time.Time, lookback time.Duration) []models.Post {
	var batch []models.Post
	cursor := ""
	if feed.Cursor != nil {
		cursor = normalizeEntryID(*feed.Cursor)
	}

	for _, item := range parsed.Items {
		link := entryLink(item)
		if link == "" {
			continue
		}

		id := entryID(item)
		if normalizeEntryID(id) == cursor {
			break
		}

		batch = append(batch, models.Post{
			EntryID:     id,
			Title:       entryTitle(item),
			Link:        link,
			Description: entryDescription(item, feed.ShowDescription),
			PublishedAt: entryDate(item),
			FeedURL:     feed.URL,
			Language:    feed.Language,
		})
	}

	threshold := now.Add(-lookback)
	return lo.Filter(lo.Reverse(batch), func(post models.Post, _ int) bool {
		return post.PublishedAt == nil || post.PublishedAt.After(threshold)
	})
}

func entryTitle(item *gofeed.Item) string {
	if item.Title == "" {
		return "Untitled"
	}
	return item.Title
}

func entryDescription(item *gofeed.Item, show bool) string {
	if !show {
		return ""
	}
	body := item.Content
	if body == "" {
		body = item.Description
	}
	// An over-length body is dropped outright, never clipped
	if len([]rune(body)) > maxDescriptionLen {
		return ""
	}
	return body
}

func entryDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

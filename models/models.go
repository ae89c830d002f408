package models

import "time"

// Feed is a tracked feed row from the feeds table. Cursor holds the id of
// the entry most recently delivered to the publishing channel and stays nil
// until the feed has been fetched at least once.
type Feed struct {
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	Language        string  `json:"language"`
	ShowDescription bool    `json:"showDescription"`
	Cursor          *string `json:"cursor,omitempty"`
}

// Post is a feed entry admitted to the publish queue. Posts are not
// persisted; the queue is rebuilt from the feeds on every ingestion cycle.
type Post struct {
	EntryID     string     `json:"entryId"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	FeedURL     string     `json:"feedUrl"`
	Language    string     `json:"language"`
}

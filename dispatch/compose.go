package dispatch

import (
	"fmt"
	"strings"
	"time"

	"blogbot/models"
)

// composeText renders the outbound message: feed title tag, entry title and
// link, the optional description, and a date suffix when the entry was not
// published today.
func composeText(post models.Post, feedTitle string, now time.Time, location *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n%s", feedTitle, post.Title, post.Link)
	if post.Description != "" {
		b.WriteString("\n")
		b.WriteString(post.Description)
	}
	b.WriteString(dateSuffix(post.PublishedAt, now, location))
	return b.String()
}

// dateSuffix returns " (YYYY-MM-DD)" in the display timezone, or "" when the
// entry has no date or was published on the same UTC calendar day as now.
func dateSuffix(published *time.Time, now time.Time, location *time.Location) string {
	if published == nil || sameDay(published.UTC(), now.UTC()) {
		return ""
	}
	return fmt.Sprintf(" (%s)", published.In(location).Format("2006-01-02"))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

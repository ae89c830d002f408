package bluesky

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"blogbot/dispatch"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
)

const DefaultPDSHost = "https://bsky.social"

type Credentials struct {
	Identifier string
	Password   string
}

type Client struct {
	xrpc *xrpc.Client
}

func ClientFromCredentials(ctx context.Context, host string, creds *Credentials) (*Client, error) {
	auth, err := atproto.ServerCreateSession(ctx, &xrpc.Client{Host: host}, &atproto.ServerCreateSession_Input{
		Identifier: creds.Identifier,
		Password:   creds.Password,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	xrpcClient := &xrpc.Client{
		Host: host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: http.DefaultClient,
	}

	return &Client{xrpc: xrpcClient}, nil
}

// Publish creates an app.bsky.feed.post record with the message text, a link
// facet over the post URL and the feed's language tag. Transient failures are
// retried with exponential backoff for up to 30 seconds before the post is
// given up on.
func (c *Client) Publish(ctx context.Context, msg dispatch.Message) error {
	record := &bsky.FeedPost{
		LexiconTypeID: "app.bsky.feed.post",
		Text:          msg.Text,
		CreatedAt:     FormatTime(time.Now().UTC()),
		Langs:         []string{msg.Language},
		Facets:        linkFacets(msg.Text, msg.Link),
	}

	create := func() error {
		_, err := atproto.RepoCreateRecord(ctx, c.xrpc, &atproto.RepoCreateRecord_Input{
			Collection: "app.bsky.feed.post",
			Repo:       c.xrpc.Auth.Did,
			Record: &lexutil.LexiconTypeDecoder{
				Val: record,
			},
		})
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(create, backoff.WithContext(bo, ctx)); err != nil {
		// Display the entire http response error so we can see what went wrong
		log.Errorf("failed to create post record: %s", err)
		return fmt.Errorf("failed to create post record: %w", err)
	}

	return nil
}

// linkFacets marks up the link inside the post text so clients render it as
// a tappable URL. Returns nil when the link does not occur in the text.
func linkFacets(text string, link string) []*bsky.RichtextFacet {
	if link == "" {
		return nil
	}
	start := strings.Index(text, link)
	if start < 0 {
		return nil
	}

	return []*bsky.RichtextFacet{
		{
			Index: &bsky.RichtextFacet_ByteSlice{
				ByteStart: int64(start),
				ByteEnd:   int64(start + len(link)),
			},
			Features: []*bsky.RichtextFacet_Features_Elem{
				{
					RichtextFacet_Link: &bsky.RichtextFacet_Link{
						Uri: link,
					},
				},
			},
		},
	}
}

// FormatTime formats a time.Time into the format expected by AT Protocol
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z")
}

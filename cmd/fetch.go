package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"blogbot/db"
	"blogbot/ingest"
	"blogbot/models"
	"blogbot/queue"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Run one ingestion cycle and print what would be published",
		Description: `Polls all tracked feeds once and prints every entry admitted to the
queue as a JSON object on a single line, without publishing anything.
Cursors of first-seen feeds are seeded exactly as during serve.

Use a tool like jq to process the output. All log messages go to stderr.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.DurationFlag{
				Name:    "lookback",
				Value:   72 * time.Hour,
				Usage:   "Discard entries published longer than this ago",
				EnvVars: []string{"BLOGBOT_LOOKBACK"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the JSON output
			log.SetOutput(os.Stderr)

			store, err := db.NewStore(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			q := queue.New()
			engine := ingest.NewEngine(store, q, ctx.Duration("lookback"))

			if err := engine.Run(ctx.Context); err != nil {
				return err
			}

			for {
				post, ok := q.Pop()
				if !ok {
					return nil
				}
				printStdout(&post)
			}
		},
	}
}

func printStdout(post *models.Post) {
	// Print as single JSON string on a single line
	postJson, err := json.Marshal(post)
	if err == nil {
		fmt.Println(string(postJson))
	}
}

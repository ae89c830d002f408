package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blogbot/bluesky"
	"blogbot/db"
	"blogbot/dispatch"
	"blogbot/ingest"
	"blogbot/queue"
	"blogbot/server"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the bot",
		Description: `Starts the bot: seeds the feed table from the configuration file,
polls all feeds on the fetch interval, and posts one queued article to
Bluesky per publish interval. Also serves operational HTTP endpoints
(/healthz, /stats, /metrics).

Credentials are read from --handle and --password; when either is missing
you are prompted for them interactively.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port for the operational HTTP server",
				EnvVars: []string{"BLOGBOT_PORT"},
			},
			&cli.DurationFlag{
				Name:    "fetch-interval",
				Value:   time.Hour,
				Usage:   "How often to poll the feeds",
				EnvVars: []string{"BLOGBOT_FETCH_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "publish-interval",
				Value:   3 * time.Minute,
				Usage:   "How often to publish one queued article",
				EnvVars: []string{"BLOGBOT_PUBLISH_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "lookback",
				Value:   72 * time.Hour,
				Usage:   "Discard entries published longer than this ago",
				EnvVars: []string{"BLOGBOT_LOOKBACK"},
			},
			&cli.StringFlag{
				Name:    "timezone",
				Value:   "Asia/Seoul",
				Usage:   "Timezone used to render article dates",
				EnvVars: []string{"BLOGBOT_TIMEZONE"},
			},
			&cli.StringFlag{
				Name:    "pds-host",
				Value:   bluesky.DefaultPDSHost,
				Usage:   "PDS host to create the session against",
				EnvVars: []string{"BLOGBOT_PDS_HOST"},
			},
			&cli.StringFlag{
				Name:    "handle",
				Usage:   "Bluesky handle to post as",
				EnvVars: []string{"BLOGBOT_HANDLE"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Bluesky app password",
				EnvVars: []string{"BLOGBOT_PASSWORD"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := syncFeeds(ctx.Context, store, ctx.String("config")); err != nil {
				return err
			}

			creds, err := credentials(ctx)
			if err != nil {
				return err
			}

			client, err := bluesky.ClientFromCredentials(ctx.Context, ctx.String("pds-host"), creds)
			if err != nil {
				return err
			}

			location, err := time.LoadLocation(ctx.String("timezone"))
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}

			q := queue.New()
			engine := ingest.NewEngine(store, q, ctx.Duration("lookback"))
			dispatcher := dispatch.New(store, q, client, location)

			app := server.Server(&server.ServerConfig{
				Store: store,
				Queue: q,
			})

			go func() {
				addr := fmt.Sprintf(":%d", ctx.Int("port"))
				log.WithFields(log.Fields{"addr": addr}).Info("Starting server")
				if err := app.Listen(addr); err != nil {
					log.WithError(err).Error("Server stopped")
				}
			}()

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// One immediate pass before the tickers take over
			if err := engine.Run(runCtx); err != nil {
				log.WithError(err).Error("Ingestion cycle failed")
			}
			if err := dispatcher.RunOnce(runCtx); err != nil {
				log.WithError(err).Error("Dispatch tick failed")
			}

			fetchTicker := time.NewTicker(ctx.Duration("fetch-interval"))
			defer fetchTicker.Stop()
			publishTicker := time.NewTicker(ctx.Duration("publish-interval"))
			defer publishTicker.Stop()

			for {
				select {
				case <-runCtx.Done():
					log.Info("Gracefully shutting down...")
					return app.ShutdownWithTimeout(10 * time.Second)
				case <-fetchTicker.C:
					go func() {
						if err := engine.Run(runCtx); err != nil {
							log.WithError(err).Error("Ingestion cycle failed")
						}
					}()
				case <-publishTicker.C:
					go func() {
						if err := dispatcher.RunOnce(runCtx); err != nil {
							log.WithError(err).Error("Dispatch tick failed")
						}
					}()
				}
			}
		},
	}
}

func credentials(ctx *cli.Context) (*bluesky.Credentials, error) {
	handle := ctx.String("handle")
	password := ctx.String("password")

	var err error
	if handle == "" {
		handle, err = prompt.New().Ask("Handle:").Input("myname.bsky.social")
		if err != nil {
			return nil, err
		}
	}
	if password == "" {
		password, err = prompt.New().Ask("App password:").Input("", input.WithEchoMode(input.EchoNone))
		if err != nil {
			return nil, err
		}
	}

	return &bluesky.Credentials{Identifier: handle, Password: password}, nil
}

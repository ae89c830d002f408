package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "blogbot",
		Usage: "A Bluesky bot that delivers tech blog articles from web feeds",
		Description: `A bot that polls a configured list of tech blog feeds, picks up
		entries published since the last delivered one, and posts them to
		Bluesky one at a time.

		Each feed carries a durable cursor holding the id of the entry most
		recently delivered. Ingestion only enqueues entries newer than the
		cursor and dispatch only advances the cursor after a successful post,
		so an entry is never delivered twice.

		Flags can generally be set via environment variables, e.g.:

		--database => BLOGBOT_DATABASE=bot.db
		--config => BLOGBOT_CONFIG=config/feeds.toml
		`,
		Commands: []*cli.Command{
			serveCmd(),
			seedCmd(),
			fetchCmd(),
			migrateCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "bot.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"BLOGBOT_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/feeds.toml",
		Usage:   "Path to feeds configuration file",
		EnvVars: []string{"BLOGBOT_CONFIG"},
	}
}

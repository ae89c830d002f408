package cmd

import (
	"context"
	"fmt"

	"blogbot/config"
	"blogbot/db"
	"blogbot/models"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Sync the feed table with the configuration file",
		Description: `Upserts every feed from the configuration file into the database and
removes feeds that are no longer listed. Cursors of existing feeds are
left untouched, so re-seeding never causes re-delivery.

Asks for confirmation before removing feeds unless --yes is given.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Remove feeds dropped from the config without asking",
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

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			existing, err := store.ListFeeds(ctx.Context)
			if err != nil {
				return err
			}

			if err := store.SeedFeeds(ctx.Context, feedsFromConfig(cfg)); err != nil {
				return err
			}

			keep := lo.Map(cfg.Feeds, func(feed config.TomlFeed, _ int) string {
				return feed.URL
			})
			removed := lo.Filter(existing, func(feed models.Feed, _ int) bool {
				return !lo.Contains(keep, feed.URL)
			})

			if len(removed) > 0 && !ctx.Bool("yes") {
				for _, feed := range removed {
					fmt.Printf("  - %s (%s)\n", feed.Title, feed.URL)
				}
				answer, err := prompt.New().
					Ask(fmt.Sprintf("Remove %d feed(s) no longer in config?", len(removed))).
					Choose([]string{"Yes", "No"})
				if err != nil {
					return err
				}
				if answer != "Yes" {
					fmt.Println("Keeping removed feeds.")
					return nil
				}
			}

			return store.PruneFeeds(ctx.Context, keep)
		},
	}
}

func feedsFromConfig(cfg *config.TomlConfig) []models.Feed {
	return lo.Map(cfg.Feeds, func(feed config.TomlFeed, _ int) models.Feed {
		return models.Feed{
			URL:             feed.URL,
			Title:           feed.Title,
			Language:        feed.Language,
			ShowDescription: feed.ShowDescription,
		}
	})
}

// syncFeeds is the non-interactive variant used on serve startup.
func syncFeeds(ctx context.Context, store *db.Store, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := store.SeedFeeds(ctx, feedsFromConfig(cfg)); err != nil {
		return err
	}
	keep := lo.Map(cfg.Feeds, func(feed config.TomlFeed, _ int) string {
		return feed.URL
	})
	return store.PruneFeeds(ctx, keep)
}

package server

import (
	"context"
	"time"

	"blogbot/models"
	"blogbot/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {

	// The store to read feed state from
	Store FeedLister

	// The queue to report the backlog of
	Queue *queue.Queue
}

// FeedLister is the read-only slice of the feed store the server needs.
type FeedLister interface {
	ListFeeds(ctx context.Context) ([]models.Feed, error)
}

type statsResponse struct {
	QueueLength int           `json:"queueLength"`
	Feeds       []models.Feed `json:"feeds"`
}

// Returns a fiber.App instance serving the bot's operational endpoints
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		feeds, err := config.Store.ListFeeds(c.Context())
		if err != nil {
			log.WithError(err).Error("Failed to list feeds for stats")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list feeds",
			})
		}
		return c.JSON(statsResponse{
			QueueLength: config.Queue.Len(),
			Feeds:       feeds,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

package server

import (
	"errors"

	"backend-yatube/internal/auth"
	"backend-yatube/internal/cache"
	"backend-yatube/internal/config"
	"backend-yatube/internal/db"
	"backend-yatube/internal/media"
	"backend-yatube/internal/posts"
	"backend-yatube/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.Querier
	Redis  *redis.Client
	Stream *stream.Hub
	Cache  *cache.Storage
	Media  *media.Store
}

// NewServer wires every route. A nil redisClient disables the page cache
// and keeps live post events local to this process.
func NewServer(cfg config.Config, database db.Querier, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     database,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
		Media:  media.NewStore(cfg.MediaRoot),
	}
	if redisClient != nil {
		s.Cache = cache.NewStorage(redisClient, cache.DefaultPrefix)
	}

	registerRoutes(s)
	return s
}

// Close stops the live event hub. The HTTP app is shut down by the caller.
func (s *Server) Close() {
	s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.Cfg.MediaURL != "" && s.Cfg.MediaRoot != "" {
		s.App.Static(s.Cfg.MediaURL, s.Cfg.MediaRoot)
	}

	s.App.Use(auth.Identify(s.Cfg.JWTSecret))
	requireLogin := auth.RequireLogin(s.Cfg.LoginURL)

	// a nil *cache.Storage must not reach ForRoutes as a non-nil interface
	var storage fiber.Storage
	if s.Cache != nil {
		storage = s.Cache
	}
	cached := cache.ForRoutes(storage, s.Cfg.CacheTTL(), s.Cfg.IsCached)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB), requireLogin)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	posts.RegisterRoutes(s.App, posts.NewService(s.DB, s.Stream), s.Media, requireLogin, cached)

	s.App.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "page not found")
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

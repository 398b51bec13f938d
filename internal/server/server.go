package server

import (
	"backend-fieldtrack/internal/alert"
	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/config"
	"backend-fieldtrack/internal/ingest"
	"backend-fieldtrack/internal/session"
	"backend-fieldtrack/internal/stream"
	"backend-fieldtrack/internal/timeline"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Alerts   *alert.Service
	Timeline *timeline.Service
	Ingest   *ingest.Service
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	alerts := alert.NewService(db, redisClient, hub, cfg.Engine)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Stream:   hub,
		Alerts:   alerts,
		Timeline: timeline.NewService(db, cfg.Engine),
		Ingest:   ingest.NewService(db, redisClient, hub, alerts, cfg.Engine),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	session.RegisterRoutes(s.App.Group("/sessions"), session.NewService(s.DB), jwtMiddleware)
	ingest.RegisterRoutes(s.App.Group("/points"), s.Ingest, jwtMiddleware)
	timeline.RegisterRoutes(s.App.Group("/timeline"), s.Timeline, jwtMiddleware)
	alert.RegisterRoutes(s.App.Group("/alerts"), s.Alerts, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

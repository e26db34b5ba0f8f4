package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"support-engine/internal/common/config"
	"support-engine/internal/common/logger"
)

// Server wraps the fiber app and its route table.
type Server struct {
	app    *fiber.App
	cfg    config.ServerConfig
	logger logger.Logger
}

func New(cfg config.ServerConfig, handler *Handler, log logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	support := app.Group("/support")
	support.Post("/ticket", handler.SubmitTicket)
	support.Post("/answer", handler.Answer)
	support.Post("/telemetry", handler.Telemetry)
	support.Post("/triage", handler.RunTriage)
	support.Get("/doc/:id", handler.GetDocument)
	support.Get("/health", handler.Health)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return &Server{
		app:    app,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// App exposes the fiber app for in-process request tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.cfg.Address,
	})
	return s.app.Listen(s.cfg.Address)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

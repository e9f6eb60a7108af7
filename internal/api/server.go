package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/api/handlers"
	"github.com/CedricPei/MAS-RAG/internal/metrics"
	"github.com/CedricPei/MAS-RAG/internal/middleware/ratelimit"
	"github.com/CedricPei/MAS-RAG/internal/middleware/security"
	"github.com/CedricPei/MAS-RAG/internal/middleware/validation"
	"github.com/CedricPei/MAS-RAG/pkg/config"
)

type Deps struct {
	Server     config.ServerConfig
	Validation validation.Config
	Datasets   *handlers.DatasetHandler
	Runs       *handlers.RunHandler
	Progress   *handlers.ProgressHandler
	Logger     *zap.Logger
	// AccessLog enables the per-request fiber logger.
	AccessLog bool
}

// Server owns the fiber app and the middleware that holds goroutines.
type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(d.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(d.Server.WriteTimeout) * time.Second,
		BodyLimit:             d.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins(d.Server.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: d.Server.AllowedOrigins,
		IsDevelopment:  d.Server.Development,
	}))
	app.Use(validation.Middleware(d.Validation))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: d.Server.MaxRequestsPerMinute,
		Logger:               d.Logger,
	})

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", handlers.Health)
	api.Get("/databases", d.Datasets.ListDatabases)
	api.Get("/datasets/:db_id/:artifact", validation.DatasetParams(), d.Datasets.GetArtifact)
	api.Get("/runs", d.Runs.ListRuns)
	api.Get("/runs/:id", d.Runs.GetRun)
	api.Post("/runs", limiter.Middleware(), validation.RunRequestMiddleware(d.Validation), d.Runs.StartRun)

	app.Get("/ws/progress", d.Progress.Upgrade, websocket.New(d.Progress.HandleConnection))

	return &Server{App: app, limiter: limiter}
}

// Shutdown stops accepting requests and waits for a background run to end.
// The caller cancels the run context first when the run should not finish.
func (s *Server) Shutdown(runs *handlers.RunHandler) error {
	err := s.App.Shutdown()
	s.limiter.Stop()
	if runs != nil {
		runs.Wait()
	}
	return err
}

func allowOrigins(origins []string) string {
	var kept []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return "*"
	}
	return strings.Join(kept, ",")
}

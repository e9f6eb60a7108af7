package validation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/pipeline"
)

var dbIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

type Config struct {
	MaxCount            int
	MaxDatabases        int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 500
	}
	if cfg.MaxDatabases <= 0 {
		cfg.MaxDatabases = 50
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// RunRequest is the validated body of a run request. Zero fields mean
// "use the configured default".
type RunRequest struct {
	Mode   generator.Mode
	DBIDs  []string
	Count  int
	Stages []pipeline.Stage
}

const runRequestKey = "run_request"

// RunRequestFrom returns the request stored by RunRequestMiddleware.
func RunRequestFrom(c *fiber.Ctx) (RunRequest, bool) {
	req, ok := c.Locals(runRequestKey).(RunRequest)
	return req, ok
}

// ValidDBID reports whether id is safe to use as a path component.
func ValidDBID(id string) bool {
	return dbIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

// Middleware rejects request bodies of unexpected content types.
func Middleware(cfg Config) fiber.Handler {
	cfg = withDefaults(cfg)

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}
		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// RunRequestMiddleware parses and validates a run request body.
func RunRequestMiddleware(cfg Config) fiber.Handler {
	cfg = withDefaults(cfg)

	return func(c *fiber.Ctx) error {
		var body struct {
			Mode   string   `json:"mode"`
			DBIDs  []string `json:"db_ids"`
			Count  *int     `json:"count"`
			Stages []string `json:"stages"`
		}

		if raw := c.Body(); len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				return badRequest(c, "Invalid JSON format")
			}
		}

		var req RunRequest
		if body.Mode != "" {
			mode, err := generator.ParseMode(body.Mode)
			if err != nil {
				return badRequest(c, err.Error())
			}
			req.Mode = mode
		}

		if len(body.DBIDs) > cfg.MaxDatabases {
			return badRequest(c, "Too many databases")
		}
		for _, id := range body.DBIDs {
			if !ValidDBID(id) {
				cfg.Logger.Warn("Rejected database id", zap.String("ip", c.IP()), zap.String("db_id", id))
				return badRequest(c, "Invalid database id")
			}
		}
		req.DBIDs = body.DBIDs

		if body.Count != nil {
			if *body.Count < 0 || *body.Count > cfg.MaxCount {
				return badRequest(c, "Count out of range")
			}
			req.Count = *body.Count
		}

		if len(body.Stages) > 0 {
			stages, err := pipeline.ParseStages(body.Stages)
			if err != nil {
				return badRequest(c, err.Error())
			}
			req.Stages = stages
		}

		c.Locals(runRequestKey, req)
		return c.Next()
	}
}

// DatasetParams validates the :db_id and :artifact route parameters.
func DatasetParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !ValidDBID(c.Params("db_id")) {
			return badRequest(c, "Invalid database id")
		}
		switch dataset.Artifact(c.Params("artifact")) {
		case dataset.ArtifactQuestions, dataset.ArtifactBridged, dataset.ArtifactDocuments:
		default:
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown artifact",
			})
		}
		if mode := c.Query("mode"); mode != "" {
			if _, err := generator.ParseMode(mode); err != nil {
				return badRequest(c, err.Error())
			}
		}
		return c.Next()
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

package handlers

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/dataset"
	"github.com/CedricPei/MAS-RAG/internal/generator"
)

// DatabaseLister lists the database ids the catalog can resolve.
type DatabaseLister interface {
	List() ([]string, error)
}

type DatasetHandler struct {
	catalog     DatabaseLister
	outputDir   string
	defaultMode generator.Mode
	logger      *zap.Logger
}

func NewDatasetHandler(catalog DatabaseLister, outputDir string, defaultMode generator.Mode, logger *zap.Logger) *DatasetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetHandler{
		catalog:     catalog,
		outputDir:   outputDir,
		defaultMode: defaultMode,
		logger:      logger,
	}
}

func (h *DatasetHandler) ListDatabases(c *fiber.Ctx) error {
	ids, err := h.catalog.List()
	if err != nil {
		h.logger.Error("Failed to list databases", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list databases",
		})
	}

	return c.JSON(fiber.Map{
		"databases": ids,
		"count":     len(ids),
	})
}

// GetArtifact serves one persisted artifact file verbatim. Route parameters
// are checked by validation.DatasetParams.
func (h *DatasetHandler) GetArtifact(c *fiber.Ctx) error {
	dbID := c.Params("db_id")
	artifact := dataset.Artifact(c.Params("artifact"))

	mode := h.defaultMode
	if q := c.Query("mode"); q != "" {
		m, err := generator.ParseMode(q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		mode = m
	}

	layout := dataset.Layout{Root: h.outputDir, Prefix: string(mode)}
	path, err := layout.Path(dbID, artifact)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Artifact not found",
		})
	}
	if err != nil {
		h.logger.Error("Failed to read artifact", zap.String("path", path), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read artifact",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(data)
}

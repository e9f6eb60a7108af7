package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/generator"
	"github.com/CedricPei/MAS-RAG/internal/middleware/validation"
	"github.com/CedricPei/MAS-RAG/internal/pipeline"
	"github.com/CedricPei/MAS-RAG/internal/storage/models"
	"github.com/CedricPei/MAS-RAG/internal/storage/sqlite"
)

type Runner interface {
	Run(ctx context.Context, plan pipeline.Plan) (pipeline.Summary, error)
}

type RunStore interface {
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
}

// RunDefaults fill the fields a run request leaves empty.
type RunDefaults struct {
	Mode   generator.Mode
	DBIDs  []string
	Count  int
	Stages []pipeline.Stage
}

// RunHandler starts at most one run at a time, so a single process stays
// the only writer of the artifact files.
type RunHandler struct {
	ctx      context.Context
	runner   Runner
	store    RunStore
	defaults RunDefaults
	logger   *zap.Logger

	mu     sync.Mutex
	active string
	wg     sync.WaitGroup
}

// NewRunHandler binds background runs to ctx; canceling it stops them.
func NewRunHandler(ctx context.Context, runner Runner, store RunStore, defaults RunDefaults, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		ctx:      ctx,
		runner:   runner,
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *RunHandler) StartRun(c *fiber.Ctx) error {
	req, _ := validation.RunRequestFrom(c)
	plan := h.plan(req)

	if len(plan.DBIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No databases selected",
		})
	}

	h.mu.Lock()
	if h.active != "" {
		active := h.active
		h.mu.Unlock()
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":         "A run is already in progress",
			"active_run_id": active,
		})
	}
	h.active = plan.RunID
	h.wg.Add(1)
	h.mu.Unlock()

	go h.execute(plan)

	h.logger.Info("Run accepted", zap.String("run_id", plan.RunID), zap.Strings("db_ids", plan.DBIDs))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": plan.RunID,
		"mode":   plan.Mode,
		"db_ids": plan.DBIDs,
		"count":  plan.Count,
		"status": models.RunRunning,
	})
}

func (h *RunHandler) plan(req validation.RunRequest) pipeline.Plan {
	plan := pipeline.Plan{
		RunID:  uuid.NewString(),
		Mode:   req.Mode,
		DBIDs:  req.DBIDs,
		Count:  req.Count,
		Stages: req.Stages,
	}
	if plan.Mode == "" {
		plan.Mode = h.defaults.Mode
	}
	if len(plan.DBIDs) == 0 {
		plan.DBIDs = h.defaults.DBIDs
	}
	if plan.Count == 0 {
		plan.Count = h.defaults.Count
	}
	if len(plan.Stages) == 0 {
		plan.Stages = h.defaults.Stages
	}
	return plan
}

func (h *RunHandler) execute(plan pipeline.Plan) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		h.active = ""
		h.mu.Unlock()
	}()

	if _, err := h.runner.Run(h.ctx, plan); err != nil {
		h.logger.Error("Background run failed", zap.String("run_id", plan.RunID), zap.Error(err))
		return
	}
	h.logger.Info("Background run finished", zap.String("run_id", plan.RunID))
}

// Active returns the id of the run in progress, or "".
func (h *RunHandler) Active() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Wait blocks until the background run, if any, returns.
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	runs, err := h.store.ListRuns(c.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list runs",
		})
	}

	return c.JSON(fiber.Map{
		"runs":          runs,
		"count":         len(runs),
		"active_run_id": h.Active(),
	})
}

func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	run, err := h.store.GetRun(c.Context(), c.Params("id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
		})
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get run",
		})
	}

	return c.JSON(run)
}

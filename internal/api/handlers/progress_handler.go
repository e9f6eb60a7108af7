package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/CedricPei/MAS-RAG/internal/progress"
)

// ProgressHandler streams progress events to websocket clients. A client may
// pass ?run_id= or ?db_id= to receive only matching events.
type ProgressHandler struct {
	hub    *progress.Hub
	logger *zap.Logger
}

func NewProgressHandler(hub *progress.Hub, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{hub: hub, logger: logger}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *ProgressHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"error": "Websocket upgrade required",
	})
}

func (h *ProgressHandler) HandleConnection(c *websocket.Conn) {
	runID, dbID := c.Query("run_id"), c.Query("db_id")
	sub := h.hub.Subscribe()

	h.logger.Info("Progress stream opened", zap.String("run_id", runID), zap.String("db_id", dbID))
	defer func() {
		sub.Close()
		_ = c.Close()
		h.logger.Info("Progress stream closed")
	}()

	// the client sends nothing; reading only detects the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if !matches(e, runID, dbID) {
				continue
			}
			if err := c.WriteJSON(e); err != nil {
				h.logger.Debug("Failed to write progress event", zap.Error(err))
				return
			}
		}
	}
}

func matches(e progress.Event, runID, dbID string) bool {
	return (runID == "" || e.RunID == runID) && (dbID == "" || e.DBID == dbID)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/service/orchestrator"
)

// ResetHandler clears server-side conversation state for a client.
type ResetHandler struct {
	orch *orchestrator.Orchestrator
	log  *zap.Logger
}

func NewResetHandler(orch *orchestrator.Orchestrator, log *zap.Logger) *ResetHandler {
	return &ResetHandler{orch: orch, log: log}
}

// Reset handles GET and POST /reset.
func (h *ResetHandler) Reset(c *fiber.Ctx) error {
	userID := c.Query("userid")
	clientID := c.Query("clientid")
	if userID == "" || clientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userid and clientid query parameters are required")
	}
	if err := h.orch.Reset(c.Context(), userID, clientID); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

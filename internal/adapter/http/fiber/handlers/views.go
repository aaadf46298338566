package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/service/orchestrator"
)

// ViewsHandler serves plugin-owned static view assets (stylesheets,
// scripts, images referenced by hosted pages) proxied through the
// dialog engine.
type ViewsHandler struct {
	orch *orchestrator.Orchestrator
	log  *zap.Logger
}

func NewViewsHandler(orch *orchestrator.Orchestrator, log *zap.Logger) *ViewsHandler {
	return &ViewsHandler{orch: orch, log: log}
}

// Fetch handles GET /views/:plugin/*.
func (h *ViewsHandler) Fetch(c *fiber.Ctx) error {
	pluginID := c.Params("plugin")
	path := c.Params("*")
	if pluginID == "" || path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "plugin id and asset path are required")
	}

	var ifModifiedSince *time.Time
	if raw := c.Get(fiber.HeaderIfModifiedSince); raw != "" {
		if ts, err := time.Parse(http.TimeFormat, raw); err == nil {
			ifModifiedSince = &ts
		}
	}

	asset, err := h.orch.FetchView(c.Context(), pluginID, path, ifModifiedSince)
	if err != nil {
		return err
	}
	if asset == nil {
		return fiber.NewError(fiber.StatusNotFound, "no such view asset")
	}
	if asset.NotModified {
		return c.SendStatus(fiber.StatusNotModified)
	}

	if !asset.LastModified.IsZero() {
		c.Set(fiber.HeaderLastModified, asset.LastModified.UTC().Format(http.TimeFormat))
	}
	if asset.MimeType != "" {
		c.Set(fiber.HeaderContentType, asset.MimeType)
	}
	h.log.Debug("Serving plugin view asset",
		zap.String("plugin", pluginID),
		zap.String("path", path),
		zap.Int("bytes", len(asset.Data)))
	return c.Send(asset.Data)
}

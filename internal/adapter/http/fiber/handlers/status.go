package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/domain"
)

// StatusHandler serves the operational endpoints that need no turn
// pipeline: liveness status, robots policy, and the root page.
type StatusHandler struct {
	protocols *transport.Registry
	version   string
	started   time.Time
}

func NewStatusHandler(protocols *transport.Registry, version string) *StatusHandler {
	return &StatusHandler{
		protocols: protocols,
		version:   version,
		started:   time.Now(),
	}
}

// Status handles GET /status.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":              "ok",
		"version":             h.version,
		"uptimeSeconds":       int(time.Since(h.started).Seconds()),
		"schemaVersion":       domain.CurrentSchemaVersion,
		"oldestSchemaVersion": domain.OldestSupportedSchemaVersion,
		"protocols":           h.protocols.Names(),
	})
}

// Robots handles GET /robots.txt. Nothing here is crawlable.
func (h *StatusHandler) Robots(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString("User-agent: *\nDisallow: /\n")
}

// Home handles GET /.
func (h *StatusHandler) Home(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(`<!DOCTYPE html>
<html>
<head><title>Parlance</title></head>
<body>
<h1>Parlance</h1>
<p>Conversational gateway is running. Clients should POST to /query.</p>
</body>
</html>
`)
}

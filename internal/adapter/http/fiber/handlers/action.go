package handlers

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/observability/tracelog"
	"github.com/parlance-ai/parlance/internal/service/orchestrator"
)

type ActionHandler struct {
	orch      *orchestrator.Orchestrator
	protocols *transport.Registry
	log       *zap.Logger
}

func NewActionHandler(orch *orchestrator.Orchestrator, protocols *transport.Registry, log *zap.Logger) *ActionHandler {
	return &ActionHandler{
		orch:      orch,
		protocols: protocols,
		log:       log,
	}
}

// Replay handles GET /action: a redirect-oriented replay that falls back
// to the cached client context since no body is posted.
func (h *ActionHandler) Replay(c *fiber.Ctx) error {
	proto, err := negotiate(c, h.protocols)
	if err != nil {
		return err
	}
	key := c.Query("key")
	clientID := c.Query("client")
	if key == "" || clientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "key and client query parameters are required")
	}

	buf := tracelog.NewDeferredBuffer()
	buf.Info("http", "Action replay requested",
		zap.String("key", key),
		zap.String("clientId", clientID))

	req, err := h.contextFreeRequest(c, clientID)
	if err != nil {
		return err
	}
	resp, err := h.orch.ReplayAction(c.Context(), key, req, orchestrator.TurnOptions{
		ContextFree: true,
		Deferred:    buf,
	})
	if err != nil {
		return err
	}
	return writeRedirectResponse(c, proto, resp)
}

// ReplayWithBody handles POST /action: the client posts a full protocol
// payload carrying its own context.
func (h *ActionHandler) ReplayWithBody(c *fiber.Ctx) error {
	proto, err := negotiate(c, h.protocols)
	if err != nil {
		return err
	}
	key := c.Query("key")
	if key == "" {
		return fiber.NewError(fiber.StatusBadRequest, "key query parameter is required")
	}

	buf := tracelog.NewDeferredBuffer()
	buf.Info("http", "Action replay with posted context",
		zap.String("key", key),
		zap.Int("bytes", len(c.Body())))

	req, err := proto.ParseRequest(c.Body())
	if err != nil {
		return err
	}
	resp, err := h.orch.ReplayAction(c.Context(), key, req, orchestrator.TurnOptions{Deferred: buf})
	if err != nil {
		return err
	}
	return writeProtocolResponse(c, proto, resp)
}

// ReplayKeyValue handles PUT /action: the simplified variant for
// script-driven clients. The body is a flat set of string pairs, JSON or
// form-encoded, applied as slot overrides before replay.
func (h *ActionHandler) ReplayKeyValue(c *fiber.Ctx) error {
	proto, err := negotiate(c, h.protocols)
	if err != nil {
		return err
	}
	key := c.Query("key")
	clientID := c.Query("client")
	if key == "" || clientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "key and client query parameters are required")
	}

	pairs, err := parseKeyValueBody(c)
	if err != nil {
		return err
	}

	buf := tracelog.NewDeferredBuffer()
	buf.Info("http", "Key/value action requested",
		zap.String("key", key),
		zap.Int("pairs", len(pairs)))

	req, err := h.contextFreeRequest(c, clientID)
	if err != nil {
		return err
	}
	resp, err := h.orch.ReplayActionWithSlots(c.Context(), key, pairs, req, orchestrator.TurnOptions{Deferred: buf})
	if err != nil {
		return err
	}
	return writeProtocolResponse(c, proto, resp)
}

// contextFreeRequest rebuilds a request skeleton from the cached client
// context; the interaction modality comes from the stored action later.
func (h *ActionHandler) contextFreeRequest(c *fiber.Ctx, clientID string) (*domain.Request, error) {
	cc, err := h.orch.RetrieveClientContext(c.Context(), clientID, contextRetrieveWait)
	if err != nil {
		var miss *domain.CacheMissError
		if errors.As(err, &miss) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "no cached context for client "+clientID)
		}
		return nil, err
	}
	return &domain.Request{
		SchemaVersion: domain.CurrentSchemaVersion,
		TraceID:       domain.NewTraceID(),
		ClientContext: cc,
	}, nil
}

// parseKeyValueBody accepts a flat JSON object or a form-encoded body.
func parseKeyValueBody(c *fiber.Ctx) (map[string]string, error) {
	body := c.Body()
	if len(body) == 0 {
		return nil, nil
	}
	contentType := string(c.Request().Header.ContentType())
	if strings.Contains(contentType, fiber.MIMEApplicationJSON) {
		pairs := make(map[string]string)
		if err := json.Unmarshal(body, &pairs); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "body must be a flat JSON object of strings")
		}
		return pairs, nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "body must be JSON or form-encoded")
	}
	pairs := make(map[string]string, len(values))
	for name := range values {
		pairs[name] = values.Get(name)
	}
	return pairs, nil
}

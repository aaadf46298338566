package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/adapter/http/fiber/middleware"
	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/observability/tracelog"
	"github.com/parlance-ai/parlance/internal/service/orchestrator"
)

// contextRetrieveWait bounds the cached-context fetch behind context-free
// GET requests.
const contextRetrieveWait = 5 * time.Second

type QueryHandler struct {
	orch      *orchestrator.Orchestrator
	protocols *transport.Registry
	log       *zap.Logger
}

func NewQueryHandler(orch *orchestrator.Orchestrator, protocols *transport.Registry, log *zap.Logger) *QueryHandler {
	return &QueryHandler{
		orch:      orch,
		protocols: protocols,
		log:       log,
	}
}

// Submit handles POST /query: one full protocol-framed turn.
func (h *QueryHandler) Submit(c *fiber.Ctx) error {
	proto, err := negotiate(c, h.protocols)
	if err != nil {
		return err
	}

	// The trace id is only known once the body parses; buffer until then.
	buf := tracelog.NewDeferredBuffer()
	buf.Info("http", "Query received",
		zap.String("protocol", proto.Name()),
		zap.Int("bytes", len(c.Body())))

	req, err := proto.ParseRequest(c.Body())
	if err != nil {
		return err
	}

	resp, err := h.orch.HandleQuery(c.Context(), req, orchestrator.TurnOptions{Deferred: buf})
	if err != nil {
		return err
	}

	middleware.SetPostWrite(c, func(status, bytes int, elapsed time.Duration) {
		h.log.Debug("Query response written",
			zap.String("traceId", resp.TraceID),
			zap.Int("status", status),
			zap.Int("bytes", bytes),
			zap.Duration("elapsed", elapsed))
	})
	return writeProtocolResponse(c, proto, resp)
}

// SubmitContextFree handles GET /query: a deep-linked turn rebuilt from
// the cached client context. It always resolves to a redirect.
func (h *QueryHandler) SubmitContextFree(c *fiber.Ctx) error {
	proto, err := negotiate(c, h.protocols)
	if err != nil {
		return err
	}
	q := c.Query("q")
	clientID := c.Query("client")
	if q == "" || clientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q and client query parameters are required")
	}

	buf := tracelog.NewDeferredBuffer()
	buf.Info("http", "Context-free query received", zap.String("clientId", clientID))

	cc, err := h.orch.RetrieveClientContext(c.Context(), clientID, contextRetrieveWait)
	if err != nil {
		var miss *domain.CacheMissError
		if errors.As(err, &miss) {
			return fiber.NewError(fiber.StatusBadRequest, "no cached context for client "+clientID)
		}
		return err
	}

	req := &domain.Request{
		SchemaVersion:   domain.CurrentSchemaVersion,
		TraceID:         domain.NewTraceID(),
		InteractionType: domain.InputTyped,
		ClientContext:   cc,
		TextInput:       q,
	}
	resp, err := h.orch.HandleQuery(c.Context(), req, orchestrator.TurnOptions{
		ContextFree: true,
		Deferred:    buf,
	})
	if err != nil {
		return err
	}
	return writeRedirectResponse(c, proto, resp)
}

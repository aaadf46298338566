package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/service/orchestrator"
)

const (
	blobRetrieveWait  = 10 * time.Second
	audioRetrieveWait = 5 * time.Second
)

// CacheHandler serves hosted pages, transient data payloads, and
// streaming audio that earlier turn responses referenced by URL.
type CacheHandler struct {
	orch *orchestrator.Orchestrator
	log  *zap.Logger
}

func NewCacheHandler(orch *orchestrator.Orchestrator, log *zap.Logger) *CacheHandler {
	return &CacheHandler{orch: orch, log: log}
}

// Fetch handles GET /cache, dispatching on which query parameter names
// the stored item. Pages and data tolerate a longer wait than audio
// because clients follow those links asynchronously.
func (h *CacheHandler) Fetch(c *fiber.Ctx) error {
	traceID := c.Query("trace")

	if key := c.Query("page"); key != "" {
		return h.serveBlob(c, key, traceID, "page",
			func() (*domain.CachedBlob, error) {
				return h.orch.FetchPage(c.Context(), key, blobRetrieveWait)
			})
	}
	if key := c.Query("data"); key != "" {
		return h.serveBlob(c, key, traceID, "data",
			func() (*domain.CachedBlob, error) {
				return h.orch.FetchData(c.Context(), key, blobRetrieveWait)
			})
	}
	if key := c.Query("audio"); key != "" {
		return h.serveAudio(c, key, traceID)
	}
	return fiber.NewError(fiber.StatusBadRequest, "one of page, data or audio query parameters is required")
}

func (h *CacheHandler) serveBlob(c *fiber.Ctx, key, traceID, kind string, fetch func() (*domain.CachedBlob, error)) error {
	blob, err := fetch()
	if err != nil {
		var miss *domain.CacheMissError
		if errors.As(err, &miss) {
			h.log.Info("Cached item not found",
				zap.String("kind", kind),
				zap.String("key", key),
				zap.String("traceId", traceID))
			return fiber.NewError(fiber.StatusNotFound, "no cached item under key "+key)
		}
		return err
	}

	if blob.MimeType != "" {
		c.Set(fiber.HeaderContentType, blob.MimeType)
	}
	if blob.LifetimeSeconds > 0 {
		c.Set(fiber.HeaderCacheControl, "max-age="+strconv.Itoa(blob.LifetimeSeconds))
	}
	h.log.Debug("Serving cached item",
		zap.String("kind", kind),
		zap.String("key", key),
		zap.String("traceId", traceID),
		zap.Int("bytes", len(blob.Data)))
	return c.Send(blob.Data)
}

func (h *CacheHandler) serveAudio(c *fiber.Ctx, key, traceID string) error {
	stream, err := h.orch.OpenAudioStream(c.Context(), key, audioRetrieveWait)
	if err != nil {
		return err
	}
	if stream == nil {
		h.log.Info("Audio stream not found",
			zap.String("key", key),
			zap.String("traceId", traceID))
		return fiber.NewError(fiber.StatusNotFound, "no audio stream under key "+key)
	}

	c.Set(fiber.HeaderContentType, audioMimeType(stream.Codec))
	c.Set("X-Audio-Codec", stream.Codec)
	if stream.CodecParams != "" {
		c.Set("X-Audio-Codec-Params", stream.CodecParams)
	}
	h.log.Debug("Relaying audio stream",
		zap.String("key", key),
		zap.String("codec", stream.Codec),
		zap.String("traceId", traceID))
	return c.SendStream(stream.Reader)
}

func audioMimeType(codec string) string {
	switch codec {
	case "pcm":
		return "audio/l16"
	case "ulaw":
		return "audio/basic"
	case "alaw":
		return "audio/PCMA"
	default:
		return "application/octet-stream"
	}
}

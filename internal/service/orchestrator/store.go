package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/observability/telemetry"
	"github.com/parlance-ai/parlance/internal/observability/tracelog"
)

// Key namespaces within the shared cache collaborator.
const (
	contextKeyPrefix = "clientcontext:"
	pageKeyPrefix    = "page:"
	dataKeyPrefix    = "data:"
	actionKeyPrefix  = "dialogaction:"
)

// refreshClientContext persists the validated context under the client id
// with a sliding TTL, so context-free requests can rebuild it later. A
// write failure degrades deep linking, not the turn.
func (o *Orchestrator) refreshClientContext(ctx context.Context, tlog *tracelog.TraceLogger, cc *domain.ClientContext) {
	data, err := json.Marshal(cc)
	if err != nil {
		return
	}
	if err := o.cache.Store(ctx, contextKeyPrefix+cc.ClientID, data, o.cfg.ContextTTL, true); err != nil {
		tlog.Warn("context", "Client context refresh failed", zap.Error(err))
	}
}

// RetrieveClientContext rebuilds a stored client context for a
// context-free request, waiting up to maxWait. A miss returns a
// CacheMissError.
func (o *Orchestrator) RetrieveClientContext(ctx context.Context, clientID string, maxWait time.Duration) (*domain.ClientContext, error) {
	clientID = pseudonymizeIdentifier(clientID)
	res, err := o.cache.TryRetrieve(ctx, contextKeyPrefix+clientID, maxWait)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &domain.CacheMissError{Key: clientID}
	}
	telemetry.CacheReadLatency.WithLabelValues("context").Observe(res.Latency.Seconds())

	var cc domain.ClientContext
	if err := json.Unmarshal(res.Value, &cc); err != nil {
		return nil, fmt.Errorf("stored client context is corrupt: %w", err)
	}
	return &cc, nil
}

func (o *Orchestrator) storePage(ctx context.Context, key, html, traceID string) error {
	blob := domain.CachedBlob{
		Data:            []byte(html),
		MimeType:        "text/html",
		LifetimeSeconds: int(o.cfg.PageTTL.Seconds()),
		TraceID:         traceID,
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return o.cache.Store(ctx, pageKeyPrefix+key, data, o.cfg.PageTTL, false)
}

// FetchPage retrieves a hosted HTML page by its opaque key.
func (o *Orchestrator) FetchPage(ctx context.Context, key string, maxWait time.Duration) (*domain.CachedBlob, error) {
	return o.fetchBlob(ctx, pageKeyPrefix+key, key, "page", maxWait)
}

// FetchData retrieves a generic transient payload by its opaque key.
func (o *Orchestrator) FetchData(ctx context.Context, key string, maxWait time.Duration) (*domain.CachedBlob, error) {
	return o.fetchBlob(ctx, dataKeyPrefix+key, key, "data", maxWait)
}

func (o *Orchestrator) fetchBlob(ctx context.Context, cacheKey, key, kind string, maxWait time.Duration) (*domain.CachedBlob, error) {
	res, err := o.cache.TryRetrieve(ctx, cacheKey, maxWait)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &domain.CacheMissError{Key: key}
	}
	telemetry.CacheReadLatency.WithLabelValues(kind).Observe(res.Latency.Seconds())

	var blob domain.CachedBlob
	if err := json.Unmarshal(res.Value, &blob); err != nil {
		return nil, fmt.Errorf("cached blob %q is corrupt: %w", key, err)
	}
	return &blob, nil
}

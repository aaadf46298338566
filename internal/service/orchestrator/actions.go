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

// ReplayAction fetches a previously cached action by its opaque key and
// re-enters the pipeline at engine invocation with a synthesized
// full-confidence hypothesis.
func (o *Orchestrator) ReplayAction(ctx context.Context, key string, req *domain.Request, opts TurnOptions) (*domain.Response, error) {
	return o.replayAction(ctx, key, nil, req, opts)
}

// ReplayActionWithSlots is the key/value variant for script-driven
// clients: the supplied string pairs override or extend the stored
// action's slots before replay.
func (o *Orchestrator) ReplayActionWithSlots(ctx context.Context, key string, slots map[string]string, req *domain.Request, opts TurnOptions) (*domain.Response, error) {
	return o.replayAction(ctx, key, slots, req, opts)
}

func (o *Orchestrator) replayAction(ctx context.Context, key string, extraSlots map[string]string, req *domain.Request, opts TurnOptions) (*domain.Response, error) {
	o.gate.RLock()
	defer o.gate.RUnlock()
	start := time.Now()

	ctx, span := o.startTurnSpan(ctx, "dialog.action_replay", req)
	defer span.End()

	tlog := tracelog.New(o.log, req.TraceID, req.Flags)

	action, err := o.fetchAction(ctx, key)
	if err != nil {
		if opts.Deferred != nil {
			opts.Deferred.Replay(tlog)
		}
		return o.finishTurn(ctx, tlog, req, nil, err, start, "action")
	}

	// The original client request is only loggable once the stored
	// action's interaction modality is known.
	req.InteractionType = action.InteractionMethod
	if opts.Deferred != nil {
		opts.Deferred.Replay(tlog)
	}
	tlog.Info("action", "Replaying cached action",
		zap.String("key", key),
		zap.String("domain", action.Domain),
		zap.String("intent", action.Intent),
		zap.String("interactionMethod", action.InteractionMethod.String()))

	resp, err := o.runActionTurn(ctx, tlog, action, extraSlots, req, opts)
	return o.finishTurn(ctx, tlog, req, resp, err, start, "action")
}

func (o *Orchestrator) runActionTurn(ctx context.Context, tlog *tracelog.TraceLogger, action *domain.CachedAction, extraSlots map[string]string, req *domain.Request, opts TurnOptions) (*domain.Response, error) {
	// The stored action already fixes the hypothesis, so replay enters
	// at engine invocation: no audio transcode, no recognition.
	if err := o.normalizeRequest(ctx, tlog, req); err != nil {
		return nil, err
	}
	o.refreshClientContext(ctx, tlog, req.ClientContext)
	stack := o.prefetchStack(ctx, tlog, req.ClientContext)

	mergeSlots(action, extraSlots)
	result := action.ToRecoResult()
	result.Utterance = req.UtteranceText()

	hyps := []domain.RankedHypothesis{{Result: result}}
	return o.invokeAndAssemble(ctx, tlog, req, hyps, stack, false, opts)
}

// fetchAction retrieves and decodes a cached action within the bounded
// wait; a miss surfaces as a CacheMissError naming the key.
func (o *Orchestrator) fetchAction(ctx context.Context, key string) (*domain.CachedAction, error) {
	res, err := o.cache.TryRetrieve(ctx, actionKeyPrefix+key, o.cfg.ActionWait)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &domain.CacheMissError{Key: key}
	}
	telemetry.CacheReadLatency.WithLabelValues("action").Observe(res.Latency.Seconds())

	var action domain.CachedAction
	if err := json.Unmarshal(res.Value, &action); err != nil {
		return nil, fmt.Errorf("cached action %q is corrupt: %w", key, err)
	}
	return &action, nil
}

// mergeSlots overrides stored slots by name and appends new ones.
func mergeSlots(action *domain.CachedAction, extra map[string]string) {
	if len(extra) == 0 {
		return
	}
	seen := make(map[string]bool, len(action.Slots))
	for i := range action.Slots {
		if value, ok := extra[action.Slots[i].Name]; ok {
			action.Slots[i].Value = value
		}
		seen[action.Slots[i].Name] = true
	}
	for name, value := range extra {
		if !seen[name] {
			action.Slots = append(action.Slots, domain.SlotValue{Name: name, Value: value})
		}
	}
}

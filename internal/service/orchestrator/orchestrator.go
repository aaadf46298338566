// Package orchestrator is the single authoritative path turning a
// normalized request into a response: load shedding, validation,
// understanding, hypothesis reranking, engine invocation, and
// capability-gated assembly. Live queries, cached action replays, and
// key/value actions all flow through the same pipeline.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/adapter/audio"
	"github.com/parlance-ai/parlance/internal/adapter/queue"
	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/observability/telemetry"
	"github.com/parlance-ai/parlance/internal/observability/tracelog"
	"github.com/parlance-ai/parlance/internal/ports"
)

const turnEventsSubject = "parlance.turn.completed"

// Config tunes the orchestrator. Zero values fall back to production
// defaults.
type Config struct {
	// FailFast propagates engine and pipeline errors instead of
	// converting them to Failure responses. Diagnostic use only.
	FailFast bool
	// CPULoadLimit is the utilization above which monitoring-flagged
	// traffic is shed. Exactly the limit is still allowed through.
	CPULoadLimit float64
	// SpeechTimeout bounds server-side recognition.
	SpeechTimeout time.Duration
	// ActionWait bounds the cached-action fetch on replay.
	ActionWait time.Duration
	// ContextTTL is the sliding lifetime of cached client contexts.
	ContextTTL time.Duration
	// PageTTL is the lifetime of hosted HTML pages in the blob cache.
	PageTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.CPULoadLimit == 0 {
		c.CPULoadLimit = 80.0
	}
	if c.SpeechTimeout == 0 {
		c.SpeechTimeout = 2 * time.Second
	}
	if c.ActionWait == 0 {
		c.ActionWait = 5 * time.Second
	}
	if c.ContextTTL == 0 {
		c.ContextTTL = 24 * time.Hour
	}
	if c.PageTTL == 0 {
		c.PageTTL = time.Hour
	}
	return c
}

// LoadSampler reports recent host CPU utilization in [0, 100].
// *telemetry.LoadMonitor satisfies it.
type LoadSampler interface {
	CPUPercent() float64
}

// Deps are the collaborators one orchestrator borrows. Cache, Audio, and
// Queue are owned by whoever constructed them, not by the orchestrator.
type Deps struct {
	Engine        ports.DialogEngine
	Understanding ports.UnderstandingService
	Recognizer    ports.SpeechRecognizer
	Verifier      ports.TokenVerifier
	// Timezones is optional; nil skips the timezone backfill step.
	Timezones     ports.TimezoneResolver
	Conversations ports.ConversationStore
	Cache         ports.Cache
	Audio         *audio.Pipeline
	// Load is optional; nil disables load shedding.
	Load LoadSampler
	// Queue is optional; nil disables turn analytics events.
	Queue queue.MessageQueue
	Log   *zap.Logger
}

// TurnOptions carries per-call behavior the HTTP layer decides.
type TurnOptions struct {
	// ContextFree marks requests rebuilt from a cached client context;
	// they always resolve to a redirect, never inline audio or HTML.
	ContextFree bool
	// Deferred holds log messages buffered before the trace id was
	// known; they are replayed once the trace logger exists.
	Deferred *tracelog.DeferredBuffer
}

type Orchestrator struct {
	engine        ports.DialogEngine
	understanding ports.UnderstandingService
	recognizer    ports.SpeechRecognizer
	verifier      ports.TokenVerifier
	timezones     ports.TimezoneResolver
	conversations ports.ConversationStore
	cache         ports.Cache
	audio         *audio.Pipeline
	load          LoadSampler
	mq            queue.MessageQueue
	cfg           Config
	log           *zap.Logger

	// gate is held in read mode for the duration of every turn; Quiesce
	// takes it in write mode to drain all in-flight turns.
	gate sync.RWMutex
}

func New(deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		engine:        deps.Engine,
		understanding: deps.Understanding,
		recognizer:    deps.Recognizer,
		verifier:      deps.Verifier,
		timezones:     deps.Timezones,
		conversations: deps.Conversations,
		cache:         deps.Cache,
		audio:         deps.Audio,
		load:          deps.Load,
		mq:            deps.Queue,
		cfg:           cfg.withDefaults(),
		log:           deps.Log,
	}
}

// HandleQuery runs one live turn end to end.
func (o *Orchestrator) HandleQuery(ctx context.Context, req *domain.Request, opts TurnOptions) (*domain.Response, error) {
	o.gate.RLock()
	defer o.gate.RUnlock()
	start := time.Now()

	ctx, span := o.startTurnSpan(ctx, "dialog.turn", req)
	defer span.End()

	tlog := tracelog.New(o.log, req.TraceID, req.Flags)
	if opts.Deferred != nil {
		opts.Deferred.Replay(tlog)
	}

	if resp := o.shedLoad(tlog, req); resp != nil {
		return resp, nil
	}

	resp, err := o.runLiveTurn(ctx, tlog, req, opts)
	return o.finishTurn(ctx, tlog, req, resp, err, start, "query")
}

func (o *Orchestrator) startTurnSpan(ctx context.Context, name string, req *domain.Request) (context.Context, trace.Span) {
	return otel.Tracer("parlance/orchestrator").Start(ctx, name,
		trace.WithAttributes(
			attribute.String("dialog.trace_id", req.TraceID),
			attribute.Int("dialog.schema_version", req.SchemaVersion),
		))
}

// shedLoad rejects synthetic monitoring traffic when the host CPU is
// strictly above the limit. Exactly at the limit is allowed through.
func (o *Orchestrator) shedLoad(tlog *tracelog.TraceLogger, req *domain.Request) *domain.Response {
	if !req.HasFlag(domain.FlagMonitoring) || o.load == nil {
		return nil
	}
	usage := o.load.CPUPercent()
	if usage <= o.cfg.CPULoadLimit {
		return nil
	}
	telemetry.DeprioritizedRequestsTotal.Inc()
	tlog.Warn("orchestrator", "Deprioritizing monitoring traffic under CPU load",
		zap.Float64("cpuPercent", usage))
	return domain.NewFailureResponse(req.TraceID, "server is under heavy load; monitoring traffic deprioritized")
}

func (o *Orchestrator) runLiveTurn(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, opts TurnOptions) (*domain.Response, error) {
	if err := o.validate(ctx, tlog, req); err != nil {
		return nil, err
	}
	o.refreshClientContext(ctx, tlog, req.ClientContext)

	stack := o.prefetchStack(ctx, tlog, req.ClientContext)

	clientSupplied := len(req.LanguageUnderstanding) > 0
	var phrases []domain.RecognizedPhrase
	if clientSupplied {
		tlog.Debug("understanding", "Using client-supplied understanding, skipping remote call")
		phrases = req.LanguageUnderstanding
	} else {
		var err error
		phrases, err = o.runUnderstanding(ctx, tlog, req, stack)
		if err != nil {
			return nil, err
		}
	}

	hyps := rerank(phrases, req.UtteranceText())
	if top := hyps[0].Result; top != nil {
		tlog.Debug("ranker", "Selected hypothesis",
			zap.String("domain", top.Domain),
			zap.String("intent", top.Intent),
			zap.Float64("confidence", top.Confidence))
	}

	isNew := req.InteractionType == domain.InputProgrammatic && clientSupplied
	return o.invokeAndAssemble(ctx, tlog, req, hyps, stack, isNew, opts)
}

// runUnderstanding calls the remote classifier with a domain scope of
// (requested ∩ loaded) ∪ reserved domains ∪ domains on the cached
// conversation stack.
func (o *Orchestrator) runUnderstanding(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, stack *domain.ConversationStack) ([]domain.RecognizedPhrase, error) {
	scope := o.understandingScope(ctx, tlog, req, stack)

	var utterances []string
	if req.SpeechInput != nil && len(req.SpeechInput.Phrases) > 0 {
		for _, p := range req.SpeechInput.Phrases {
			if p.DisplayText != "" {
				utterances = append(utterances, p.DisplayText)
			}
		}
	} else if req.TextInput != "" {
		utterances = []string{req.TextInput}
	}
	if len(utterances) == 0 {
		return nil, nil
	}

	phrases, err := o.understanding.Recognize(ctx, &ports.UnderstandingRequest{
		TraceID:     req.TraceID,
		Locale:      req.ClientContext.Locale,
		Utterances:  utterances,
		DomainScope: scope,
		Flags:       req.Flags,
	})
	if err != nil {
		return nil, err
	}

	// The classifier does not know the recognizer's confidence in each
	// transcript; carry it over from the speech input by display text.
	if req.SpeechInput != nil {
		srConf := make(map[string]float64, len(req.SpeechInput.Phrases))
		for _, p := range req.SpeechInput.Phrases {
			srConf[p.DisplayText] = p.SREngineConfidence
		}
		for i := range phrases {
			if phrases[i].SREngineConfidence == 0 {
				phrases[i].SREngineConfidence = srConf[phrases[i].Utterance]
			}
		}
	}
	return phrases, nil
}

func (o *Orchestrator) understandingScope(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, stack *domain.ConversationStack) []string {
	scope := make(map[string]bool)

	loaded, err := o.engine.LoadedDomains(ctx)
	if err != nil {
		tlog.Warn("understanding", "Could not list loaded domains, using requested scope as-is", zap.Error(err))
		for _, d := range req.DomainScope {
			scope[d] = true
		}
	} else if len(req.DomainScope) == 0 {
		for _, d := range loaded {
			scope[d] = true
		}
	} else {
		loadedSet := make(map[string]bool, len(loaded))
		for _, d := range loaded {
			loadedSet[d] = true
		}
		for _, d := range req.DomainScope {
			if loadedSet[d] {
				scope[d] = true
			}
		}
	}

	scope[domain.DomainCommon] = true
	scope[domain.DomainSideSpeech] = true
	for _, d := range stack.Domains() {
		scope[d] = true
	}

	out := make([]string, 0, len(scope))
	for d := range scope {
		out = append(out, d)
	}
	return out
}

// invokeAndAssemble is the common tail of every turn: engine invocation
// plus response assembly. Action replays re-enter the pipeline here.
func (o *Orchestrator) invokeAndAssemble(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, hyps []domain.RankedHypothesis, stack *domain.ConversationStack, isNewConversation bool, opts TurnOptions) (*domain.Response, error) {
	authLevel := o.resolveAuthLevel(ctx, tlog, req)

	engResp, err := o.engine.Process(ctx, &ports.EngineRequest{
		TraceID:           req.TraceID,
		Hypotheses:        hyps,
		ClientContext:     req.ClientContext,
		AuthLevel:         authLevel,
		InputMethod:       req.InteractionType,
		IsNewConversation: isNewConversation,
		ConversationStack: stack,
		EntityContext:     req.EntityContext,
		EntityInput:       req.EntityInput,
		Utterance:         req.UtteranceText(),
		RequestData:       req.RequestData,
		Flags:             req.Flags,
	})
	if err != nil {
		return nil, err
	}
	return o.assemble(ctx, tlog, req, engResp, opts)
}

// resolveAuthLevel degrades to no authentication on verifier failure
// rather than failing the turn.
func (o *Orchestrator) resolveAuthLevel(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request) ports.AuthLevel {
	if o.verifier == nil || len(req.AuthTokens) == 0 {
		return ports.AuthLevelNone
	}
	level, err := o.verifier.Verify(ctx, req.AuthTokens, req.ClientContext.ClientID, req.ClientContext.UserID)
	if err != nil {
		tlog.Warn("auth", "Token verification failed, treating request as unauthenticated", zap.Error(err))
		return ports.AuthLevelNone
	}
	return level
}

// finishTurn applies the shared error policy, flushes trace history, and
// records metrics and the analytics event. Every turn exits through here.
func (o *Orchestrator) finishTurn(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, resp *domain.Response, err error, start time.Time, action string) (*domain.Response, error) {
	if err != nil {
		if o.cfg.FailFast {
			return nil, err
		}
		var engErr *domain.EngineError
		if errors.As(err, &engErr) {
			tlog.Error("orchestrator", "Dialog engine declared a failure", zap.Error(err))
		} else {
			tlog.Error("orchestrator", "Turn failed", zap.Error(err))
		}
		resp = domain.NewFailureResponse(req.TraceID, err.Error())
	}

	if req.HasFlag(domain.FlagTrace) {
		resp.TraceInfo = tlog.Events()
	}

	elapsed := time.Since(start)
	telemetry.TurnsTotal.WithLabelValues(action, resp.ExecutionResult.String()).Inc()
	telemetry.TurnLatency.Observe(elapsed.Seconds())
	o.publishTurnEvent(req, resp, action, elapsed)

	return resp, nil
}

type turnEvent struct {
	TraceID   string    `json:"traceId"`
	Action    string    `json:"action"`
	Domain    string    `json:"domain,omitempty"`
	Intent    string    `json:"intent,omitempty"`
	Result    string    `json:"result"`
	LatencyMs int64     `json:"latencyMs"`
	Timestamp time.Time `json:"timestamp"`
}

// publishTurnEvent emits a fire-and-forget analytics event; publish
// failures are logged and never affect the turn.
func (o *Orchestrator) publishTurnEvent(req *domain.Request, resp *domain.Response, action string, elapsed time.Duration) {
	if o.mq == nil {
		return
	}
	event := turnEvent{
		TraceID:   req.TraceID,
		Action:    action,
		Result:    resp.ExecutionResult.String(),
		LatencyMs: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if resp.SelectedRecoResult != nil {
		event.Domain = resp.SelectedRecoResult.Domain
		event.Intent = resp.SelectedRecoResult.Intent
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := o.mq.Publish(turnEventsSubject, data); err != nil {
		o.log.Warn("Turn event publish failed",
			zap.String("traceId", req.TraceID),
			zap.Error(err))
	}
}

// prefetchStack loads the most recent conversation stack for this
// user/client pair; absence is normal for a fresh conversation.
func (o *Orchestrator) prefetchStack(ctx context.Context, tlog *tracelog.TraceLogger, cc *domain.ClientContext) *domain.ConversationStack {
	if o.conversations == nil {
		return nil
	}
	stack, err := o.conversations.Retrieve(ctx, cc.UserID, cc.ClientID)
	if err != nil {
		tlog.Warn("conversation", "Conversation stack fetch failed", zap.Error(err))
		return nil
	}
	return stack
}

// Reset clears the cached conversation state for a user/client pair.
func (o *Orchestrator) Reset(ctx context.Context, userID, clientID string) error {
	o.gate.RLock()
	defer o.gate.RUnlock()
	if o.conversations == nil {
		return nil
	}
	o.log.Info("Resetting client conversation state",
		zap.String("userId", userID),
		zap.String("clientId", clientID))
	return o.conversations.Clear(ctx, userID, clientID)
}

// FetchView retrieves a plugin-owned static view asset through the
// engine, since the owning plugin package may live on a different host.
func (o *Orchestrator) FetchView(ctx context.Context, pluginID, path string, ifModifiedSince *time.Time) (*ports.ViewAsset, error) {
	return o.engine.FetchPluginView(ctx, pluginID, path, ifModifiedSince)
}

// OpenAudioStream opens the single-use read side of a streamed response.
func (o *Orchestrator) OpenAudioStream(ctx context.Context, key string, maxWait time.Duration) (*ports.AudioReadStream, error) {
	return o.audio.OpenStream(ctx, key, maxWait)
}

// Quiesce drains every in-flight turn, runs fn while new turns are
// blocked, and then reopens the gate. Used for maintenance operations
// such as shutdown draining.
func (o *Orchestrator) Quiesce(fn func() error) error {
	o.gate.Lock()
	defer o.gate.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

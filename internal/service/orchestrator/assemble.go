package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/observability/tracelog"
	"github.com/parlance-ai/parlance/internal/ports"
)

// assemble builds the client-facing response from the engine's output,
// gating every optional modality on the client's capability bitmask.
func (o *Orchestrator) assemble(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, eng *ports.EngineResponse, opts TurnOptions) (*domain.Response, error) {
	cc := req.ClientContext
	resp := &domain.Response{
		SchemaVersion:   domain.CurrentSchemaVersion,
		TraceID:         req.TraceID,
		ExecutionResult: eng.ExecutionResult,

		ResponseText: eng.ResponseText,
		ResponseURL:  eng.ResponseURL,
		URLScope:     eng.URLScope,
		ResponseData: eng.ResponseData,

		SelectedRecoResult: eng.SelectedRecoResult,
		AugmentedQuery:     eng.AugmentedQuery,

		ContinueImmediately:         eng.ContinueImmediately,
		ConversationLifetimeSeconds: eng.ConversationLifetimeSeconds,

		ErrorMessage:          eng.ErrorMessage,
		IsRetrying:            eng.IsRetrying,
		SuggestedRetryDelayMs: eng.SuggestedRetryDelayMs,
	}

	if eng.ClientAction != "" && cc.HasCapability(domain.CapClientActions) {
		resp.ResponseAction = eng.ClientAction
	}
	if len(eng.TriggerKeywords) > 0 && cc.HasCapability(domain.CapKeywordSpotter) {
		resp.TriggerKeywords = eng.TriggerKeywords
	}

	o.assembleHTML(ctx, tlog, req, eng, resp)

	if opts.ContextFree {
		// Context-free requests always resolve to a redirect; they never
		// receive inline audio or HTML equivalents.
		resp.ResponseHTML = ""
		return resp, nil
	}

	if cc.HasCapability(domain.CapCanSynthesizeSpeech) {
		resp.ResponseSSML = eng.ResponseSSML
	}
	o.assembleAudio(ctx, tlog, req, eng, resp)
	return resp, nil
}

// assembleHTML either inlines the engine's HTML or parks it in the blob
// cache under a fresh single-use key and points the client there.
func (o *Orchestrator) assembleHTML(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, eng *ports.EngineResponse, resp *domain.Response) {
	cc := req.ClientContext
	if eng.ResponseHTML == "" || !cc.CanDisplayHTML() {
		return
	}
	if cc.CanRenderHTMLDirectly() {
		resp.ResponseHTML = eng.ResponseHTML
		return
	}

	key := uuid.NewString()
	if err := o.storePage(ctx, key, eng.ResponseHTML, req.TraceID); err != nil {
		tlog.Error("assembler", "Hosted page store failed, dropping HTML", zap.Error(err))
		return
	}
	url := "/cache?page=" + key
	if req.HasFlag(domain.FlagTrace) {
		url += "&trace=" + req.TraceID
	}
	resp.ResponseURL = url
	resp.URLScope = domain.URLScopeLocal
	tlog.Debug("assembler", "Hosted response HTML", zap.String("key", key))
}

// assembleAudio builds the final response audio and delivers it either as
// a streaming URL or inline bytes, per client capability.
func (o *Orchestrator) assembleAudio(ctx context.Context, tlog *tracelog.TraceLogger, req *domain.Request, eng *ports.EngineResponse, resp *domain.Response) {
	cc := req.ClientContext
	if !cc.HasCapability(domain.CapHasSpeakers) {
		return
	}

	pcm, err := o.audio.BuildFinalAudio(ctx, eng.ResponseSSML, cc.Locale,
		cc.HasCapability(domain.CapCanSynthesizeSpeech), eng.CustomAudio, eng.CustomAudioOrdering)
	if err != nil {
		tlog.Error("assembler", "Response audio build failed, responding without audio", zap.Error(err))
		return
	}
	if pcm == nil {
		return
	}

	preferred := o.preferredCodec(req)
	if cc.HasCapability(domain.CapSupportsStreamingAudio) {
		key := uuid.NewString()
		if err := o.audio.BeginStreaming(ctx, req.TraceID, key, pcm, preferred); err != nil {
			tlog.Error("assembler", "Could not schedule audio relay", zap.Error(err))
			return
		}
		url := "/cache?audio=" + key
		if req.HasFlag(domain.FlagTrace) {
			url += "&trace=" + req.TraceID
		}
		resp.StreamingAudioURL = url
		return
	}

	encoded, err := o.audio.EncodeInline(pcm, preferred)
	if err != nil {
		tlog.Error("assembler", "Inline audio encode failed", zap.Error(err))
		return
	}
	resp.ResponseAudio = encoded
}

func (o *Orchestrator) preferredCodec(req *domain.Request) string {
	if req.ClientContext.HasCapability(domain.CapSupportsCompressedAudio) {
		return req.PreferredAudioCodec
	}
	return ""
}

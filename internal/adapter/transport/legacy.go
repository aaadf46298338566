package transport

import "github.com/parlance-ai/parlance/internal/domain"

// Legacy wire schemas, versions 15 through 17, plus the single-step
// upgrade functions chaining them to the current generation. Each upgrade
// is a pure function converting exactly one version step; parsing composes
// them oldest to newest.

// requestV17 lacks the entity-context fields and the barge-in playback
// timestamp added in v18.
type requestV17 struct {
	SchemaVersion   int                             `json:"version"`
	TraceID         string                          `json:"traceId"`
	InteractionType domain.InputMethod              `json:"interactionType"`
	Context         *domain.ClientContext           `json:"context"`
	AuthTokens      []domain.AuthToken              `json:"authTokens,omitempty"`
	TextInput       string                          `json:"textInput,omitempty"`
	SpeechInput     *domain.SpeechRecognitionResult `json:"speechInput,omitempty"`
	AudioInput      *domain.AudioData               `json:"audioInput,omitempty"`
	DomainScope     []string                        `json:"domainScope,omitempty"`
	Understanding   []domain.RecognizedPhrase       `json:"understandingData,omitempty"`
	PreferredCodec  string                          `json:"preferredAudioCodec,omitempty"`
	PreferredFormat string                          `json:"preferredAudioFormat,omitempty"`
	Flags           uint32                          `json:"flags"`
	RequestData     map[string]string               `json:"requestData,omitempty"`
}

func upgradeRequestV17(r *requestV17) *domain.Request {
	return &domain.Request{
		SchemaVersion:         18,
		TraceID:               r.TraceID,
		InteractionType:       r.InteractionType,
		ClientContext:         r.Context,
		AuthTokens:            r.AuthTokens,
		TextInput:             r.TextInput,
		SpeechInput:           r.SpeechInput,
		AudioInput:            r.AudioInput,
		DomainScope:           r.DomainScope,
		LanguageUnderstanding: r.Understanding,
		PreferredAudioCodec:   r.PreferredCodec,
		PreferredAudioFormat:  r.PreferredFormat,
		Flags:                 r.Flags,
		RequestData:           r.RequestData,
	}
}

// requestV16 predates structured speech input (parallel hypothesis and
// confidence arrays) and the preferred-audio-format hint.
type requestV16 struct {
	SchemaVersion     int                       `json:"version"`
	TraceID           string                    `json:"traceId"`
	InteractionType   domain.InputMethod        `json:"interactionType"`
	Context           *domain.ClientContext     `json:"context"`
	AuthTokens        []domain.AuthToken        `json:"authTokens,omitempty"`
	TextInput         string                    `json:"textInput,omitempty"`
	SpeechHypotheses  []string                  `json:"speechHypotheses,omitempty"`
	SpeechConfidences []float64                 `json:"speechConfidences,omitempty"`
	AudioInput        *domain.AudioData         `json:"audioInput,omitempty"`
	DomainScope       []string                  `json:"domainScope,omitempty"`
	Understanding     []domain.RecognizedPhrase `json:"understandingData,omitempty"`
	PreferredCodec    string                    `json:"preferredAudioCodec,omitempty"`
	Flags             uint32                    `json:"flags"`
	RequestData       map[string]string         `json:"requestData,omitempty"`
}

func upgradeRequestV16(r *requestV16) *requestV17 {
	out := &requestV17{
		SchemaVersion:   17,
		TraceID:         r.TraceID,
		InteractionType: r.InteractionType,
		Context:         r.Context,
		AuthTokens:      r.AuthTokens,
		TextInput:       r.TextInput,
		AudioInput:      r.AudioInput,
		DomainScope:     r.DomainScope,
		Understanding:   r.Understanding,
		PreferredCodec:  r.PreferredCodec,
		Flags:           r.Flags,
		RequestData:     r.RequestData,
	}
	if len(r.SpeechHypotheses) > 0 {
		phrases := make([]domain.SpeechPhrase, len(r.SpeechHypotheses))
		for i, text := range r.SpeechHypotheses {
			phrases[i].DisplayText = text
			if i < len(r.SpeechConfidences) {
				phrases[i].SREngineConfidence = r.SpeechConfidences[i]
			}
		}
		out.SpeechInput = &domain.SpeechRecognitionResult{Phrases: phrases}
	}
	return out
}

// requestV15 predates both the scoped auth-token list and the flags
// bitmask; credentials rode as two bare strings and verbosity as
// individual booleans.
type requestV15 struct {
	SchemaVersion     int                       `json:"version"`
	TraceID           string                    `json:"traceId"`
	InteractionType   domain.InputMethod        `json:"interactionType"`
	Context           *domain.ClientContext     `json:"context"`
	UserAuthToken     string                    `json:"userAuthToken,omitempty"`
	ClientAuthToken   string                    `json:"clientAuthToken,omitempty"`
	TextInput         string                    `json:"textInput,omitempty"`
	SpeechHypotheses  []string                  `json:"speechHypotheses,omitempty"`
	SpeechConfidences []float64                 `json:"speechConfidences,omitempty"`
	AudioInput        *domain.AudioData         `json:"audioInput,omitempty"`
	DomainScope       []string                  `json:"domainScope,omitempty"`
	Understanding     []domain.RecognizedPhrase `json:"understandingData,omitempty"`
	PreferredCodec    string                    `json:"preferredAudioCodec,omitempty"`
	Debug             bool                      `json:"debug,omitempty"`
	TraceRequested    bool                      `json:"traceRequested,omitempty"`
	RequestData       map[string]string         `json:"requestData,omitempty"`
}

func upgradeRequestV15(r *requestV15) *requestV16 {
	out := &requestV16{
		SchemaVersion:     16,
		TraceID:           r.TraceID,
		InteractionType:   r.InteractionType,
		Context:           r.Context,
		TextInput:         r.TextInput,
		SpeechHypotheses:  r.SpeechHypotheses,
		SpeechConfidences: r.SpeechConfidences,
		AudioInput:        r.AudioInput,
		DomainScope:       r.DomainScope,
		Understanding:     r.Understanding,
		PreferredCodec:    r.PreferredCodec,
		RequestData:       r.RequestData,
	}
	if r.UserAuthToken != "" {
		out.AuthTokens = append(out.AuthTokens, domain.AuthToken{Scope: "user", Token: r.UserAuthToken})
	}
	if r.ClientAuthToken != "" {
		out.AuthTokens = append(out.AuthTokens, domain.AuthToken{Scope: "client", Token: r.ClientAuthToken})
	}
	if r.Debug {
		out.Flags |= domain.FlagDebug
	}
	if r.TraceRequested {
		out.Flags |= domain.FlagTrace
	}
	return out
}

// responseV17 predates the trace-info event list.
type responseV17 struct {
	SchemaVersion   int                     `json:"version"`
	TraceID         string                  `json:"traceId"`
	ExecutionResult domain.Result           `json:"executionResult"`
	ResponseText    string                  `json:"responseText,omitempty"`
	ResponseSSML    string                  `json:"responseSsml,omitempty"`
	ResponseHTML    string                  `json:"responseHtml,omitempty"`
	ResponseURL     string                  `json:"responseUrl,omitempty"`
	URLScope        domain.URLScope         `json:"urlScope,omitempty"`
	ResponseAudio   *domain.AudioData       `json:"responseAudio,omitempty"`
	StreamingURL    string                  `json:"streamingAudioUrl,omitempty"`
	ResponseAction  string                  `json:"responseAction,omitempty"`
	ResponseData    map[string]string       `json:"responseData,omitempty"`
	SelectedReco    *domain.RecoResult      `json:"selectedRecoResult,omitempty"`
	AugmentedQuery  string                  `json:"augmentedQuery,omitempty"`
	ContinueNow     bool                    `json:"continueImmediately,omitempty"`
	ConvLifetime    int                     `json:"conversationLifetimeSeconds,omitempty"`
	TriggerKeywords []domain.TriggerKeyword `json:"triggerKeywords,omitempty"`
	ErrorMessage    string                  `json:"errorMessage,omitempty"`
	IsRetrying      bool                    `json:"isRetrying,omitempty"`
	RetryDelayMs    int64                   `json:"suggestedRetryDelayMs,omitempty"`
}

func upgradeResponseV17(r *responseV17) *domain.Response {
	return &domain.Response{
		SchemaVersion:               18,
		TraceID:                     r.TraceID,
		ExecutionResult:             r.ExecutionResult,
		ResponseText:                r.ResponseText,
		ResponseSSML:                r.ResponseSSML,
		ResponseHTML:                r.ResponseHTML,
		ResponseURL:                 r.ResponseURL,
		URLScope:                    r.URLScope,
		ResponseAudio:               r.ResponseAudio,
		StreamingAudioURL:           r.StreamingURL,
		ResponseAction:              r.ResponseAction,
		ResponseData:                r.ResponseData,
		SelectedRecoResult:          r.SelectedReco,
		AugmentedQuery:              r.AugmentedQuery,
		ContinueImmediately:         r.ContinueNow,
		ConversationLifetimeSeconds: r.ConvLifetime,
		TriggerKeywords:             r.TriggerKeywords,
		ErrorMessage:                r.ErrorMessage,
		IsRetrying:                  r.IsRetrying,
		SuggestedRetryDelayMs:       r.RetryDelayMs,
	}
}

// responseV16 predates trigger keywords.
type responseV16 struct {
	SchemaVersion   int                `json:"version"`
	TraceID         string             `json:"traceId"`
	ExecutionResult domain.Result      `json:"executionResult"`
	ResponseText    string             `json:"responseText,omitempty"`
	ResponseSSML    string             `json:"responseSsml,omitempty"`
	ResponseHTML    string             `json:"responseHtml,omitempty"`
	ResponseURL     string             `json:"responseUrl,omitempty"`
	URLScope        domain.URLScope    `json:"urlScope,omitempty"`
	ResponseAudio   *domain.AudioData  `json:"responseAudio,omitempty"`
	StreamingURL    string             `json:"streamingAudioUrl,omitempty"`
	ResponseAction  string             `json:"responseAction,omitempty"`
	ResponseData    map[string]string  `json:"responseData,omitempty"`
	SelectedReco    *domain.RecoResult `json:"selectedRecoResult,omitempty"`
	AugmentedQuery  string             `json:"augmentedQuery,omitempty"`
	ContinueNow     bool               `json:"continueImmediately,omitempty"`
	ConvLifetime    int                `json:"conversationLifetimeSeconds,omitempty"`
	ErrorMessage    string             `json:"errorMessage,omitempty"`
	IsRetrying      bool               `json:"isRetrying,omitempty"`
	RetryDelayMs    int64              `json:"suggestedRetryDelayMs,omitempty"`
}

func upgradeResponseV16(r *responseV16) *responseV17 {
	return &responseV17{
		SchemaVersion:   17,
		TraceID:         r.TraceID,
		ExecutionResult: r.ExecutionResult,
		ResponseText:    r.ResponseText,
		ResponseSSML:    r.ResponseSSML,
		ResponseHTML:    r.ResponseHTML,
		ResponseURL:     r.ResponseURL,
		URLScope:        r.URLScope,
		ResponseAudio:   r.ResponseAudio,
		StreamingURL:    r.StreamingURL,
		ResponseAction:  r.ResponseAction,
		ResponseData:    r.ResponseData,
		SelectedReco:    r.SelectedReco,
		AugmentedQuery:  r.AugmentedQuery,
		ContinueNow:     r.ContinueNow,
		ConvLifetime:    r.ConvLifetime,
		ErrorMessage:    r.ErrorMessage,
		IsRetrying:      r.IsRetrying,
		RetryDelayMs:    r.RetryDelayMs,
	}
}

// responseV15 predates streaming audio delivery.
type responseV15 struct {
	SchemaVersion   int                `json:"version"`
	TraceID         string             `json:"traceId"`
	ExecutionResult domain.Result      `json:"executionResult"`
	ResponseText    string             `json:"responseText,omitempty"`
	ResponseSSML    string             `json:"responseSsml,omitempty"`
	ResponseHTML    string             `json:"responseHtml,omitempty"`
	ResponseURL     string             `json:"responseUrl,omitempty"`
	URLScope        domain.URLScope    `json:"urlScope,omitempty"`
	ResponseAudio   *domain.AudioData  `json:"responseAudio,omitempty"`
	ResponseAction  string             `json:"responseAction,omitempty"`
	ResponseData    map[string]string  `json:"responseData,omitempty"`
	SelectedReco    *domain.RecoResult `json:"selectedRecoResult,omitempty"`
	AugmentedQuery  string             `json:"augmentedQuery,omitempty"`
	ContinueNow     bool               `json:"continueImmediately,omitempty"`
	ConvLifetime    int                `json:"conversationLifetimeSeconds,omitempty"`
	ErrorMessage    string             `json:"errorMessage,omitempty"`
}

func upgradeResponseV15(r *responseV15) *responseV16 {
	return &responseV16{
		SchemaVersion:   16,
		TraceID:         r.TraceID,
		ExecutionResult: r.ExecutionResult,
		ResponseText:    r.ResponseText,
		ResponseSSML:    r.ResponseSSML,
		ResponseHTML:    r.ResponseHTML,
		ResponseURL:     r.ResponseURL,
		URLScope:        r.URLScope,
		ResponseAudio:   r.ResponseAudio,
		ResponseAction:  r.ResponseAction,
		ResponseData:    r.ResponseData,
		SelectedReco:    r.SelectedReco,
		AugmentedQuery:  r.AugmentedQuery,
		ContinueNow:     r.ContinueNow,
		ConvLifetime:    r.ConvLifetime,
		ErrorMessage:    r.ErrorMessage,
	}
}

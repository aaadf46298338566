package domain

import "time"

// Result is the terminal outcome of a dialog turn.
type Result int

const (
	ResultSuccess Result = iota
	ResultFailure
	// ResultSkip means no loaded plugin claimed the turn.
	ResultSkip
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// URLScope says whether a response URL points back into this service or to
// an external site.
type URLScope int

const (
	URLScopeLocal URLScope = iota
	URLScopeExternal
)

// TriggerKeyword arms the client's keyword spotter for a followup phrase.
type TriggerKeyword struct {
	Phrase            string `json:"phrase"`
	ExpireTimeSeconds int    `json:"expireTimeSeconds"`
	AllowBargeIn      bool   `json:"allowBargeIn"`
}

// TraceEvent is one buffered log event returned to a tracing client.
type TraceEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
}

// Response is the assembled reply for one turn. Optional fields are
// capability-gated during assembly; absent modalities stay zero.
type Response struct {
	SchemaVersion   int    `json:"version"`
	TraceID         string `json:"traceId"`
	ExecutionResult Result `json:"executionResult"`

	ResponseText string `json:"responseText,omitempty"`
	ResponseSSML string `json:"responseSsml,omitempty"`
	ResponseHTML string `json:"responseHtml,omitempty"`

	ResponseURL string   `json:"responseUrl,omitempty"`
	URLScope    URLScope `json:"urlScope,omitempty"`

	ResponseAudio     *AudioData `json:"responseAudio,omitempty"`
	StreamingAudioURL string     `json:"streamingAudioUrl,omitempty"`

	// ResponseAction is an opaque client-action script, gated on the
	// client-actions capability.
	ResponseAction string            `json:"responseAction,omitempty"`
	ResponseData   map[string]string `json:"responseData,omitempty"`

	SelectedRecoResult *RecoResult `json:"selectedRecoResult,omitempty"`
	AugmentedQuery     string      `json:"augmentedQuery,omitempty"`

	ContinueImmediately         bool `json:"continueImmediately,omitempty"`
	ConversationLifetimeSeconds int  `json:"conversationLifetimeSeconds,omitempty"`

	TriggerKeywords []TriggerKeyword `json:"triggerKeywords,omitempty"`

	ErrorMessage          string `json:"errorMessage,omitempty"`
	IsRetrying            bool   `json:"isRetrying,omitempty"`
	SuggestedRetryDelayMs int64  `json:"suggestedRetryDelayMs,omitempty"`

	TraceInfo []TraceEvent `json:"traceInfo,omitempty"`
}

// NewFailureResponse builds a minimal failure reply carrying the trace id.
func NewFailureResponse(traceID, message string) *Response {
	return &Response{
		SchemaVersion:   CurrentSchemaVersion,
		TraceID:         traceID,
		ExecutionResult: ResultFailure,
		ErrorMessage:    message,
	}
}

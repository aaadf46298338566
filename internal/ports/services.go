package ports

import (
	"context"
	"time"

	"github.com/parlance-ai/parlance/internal/domain"
)

// AuthLevel is the trust level resolved from the request's auth tokens.
type AuthLevel int

const (
	AuthLevelNone AuthLevel = iota
	AuthLevelClientVerified
	AuthLevelUserVerified
	AuthLevelFull
)

// AudioOrdering says where engine-supplied custom audio sits relative to
// synthesized speech in the final response audio.
type AudioOrdering int

const (
	AudioOrderingUnspecified AudioOrdering = iota
	AudioOrderingBeforeSpeech
	AudioOrderingAfterSpeech
)

// EngineRequest is the orchestrator's call into the dialog engine for one
// turn, after validation and reranking.
type EngineRequest struct {
	TraceID    string
	Hypotheses []domain.RankedHypothesis

	ClientContext *domain.ClientContext
	AuthLevel     AuthLevel
	InputMethod   domain.InputMethod
	// IsNewConversation is true only for programmatic turns carrying
	// client-supplied understanding.
	IsNewConversation bool

	ConversationStack *domain.ConversationStack
	EntityContext     []byte
	EntityInput       []domain.EntityReference

	Utterance   string
	RequestData map[string]string
	Flags       uint32
}

// EngineResponse is what the dialog engine hands back for assembly.
type EngineResponse struct {
	ExecutionResult domain.Result

	ResponseText string
	ResponseSSML string
	ResponseHTML string
	ResponseURL  string
	URLScope     domain.URLScope

	ClientAction string
	ResponseData map[string]string

	SelectedRecoResult *domain.RecoResult
	AugmentedQuery     string

	ContinueImmediately         bool
	ConversationLifetimeSeconds int
	TriggerKeywords             []domain.TriggerKeyword

	// CustomAudio is pre-rendered PCM supplied by the answering plugin.
	CustomAudio         *domain.AudioData
	CustomAudioOrdering AudioOrdering

	ErrorMessage          string
	IsRetrying            bool
	SuggestedRetryDelayMs int64
}

// ViewAsset is one plugin-owned static view resource.
type ViewAsset struct {
	Data         []byte
	MimeType     string
	LastModified time.Time
	// NotModified is set when the conditional timestamp was satisfied and
	// Data is empty.
	NotModified bool
}

// DialogEngine is the conversational state machine behind this gateway,
// reached over a narrow interface. Its errors of type *domain.EngineError
// are declared failures; anything else is unexpected.
type DialogEngine interface {
	Process(ctx context.Context, req *EngineRequest) (*EngineResponse, error)
	// LoadedDomains lists the recognition domains currently answerable.
	LoadedDomains(ctx context.Context) ([]string, error)
	// FetchPluginView retrieves a versioned static asset owned by a
	// plugin package, which may live on a different host.
	FetchPluginView(ctx context.Context, pluginID, path string, ifModifiedSince *time.Time) (*ViewAsset, error)
}

// UnderstandingRequest scopes one call to the language-understanding
// service.
type UnderstandingRequest struct {
	TraceID     string
	Locale      string
	Utterances  []string
	DomainScope []string
	Flags       uint32
}

// UnderstandingService is the remote LU classifier.
type UnderstandingService interface {
	Recognize(ctx context.Context, req *UnderstandingRequest) ([]domain.RecognizedPhrase, error)
}

// SpeechRecognizer transcribes PCM audio server-side when the client sent
// raw audio without a transcript.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, audio *domain.AudioData, locale string) (*domain.SpeechRecognitionResult, error)
}

// SpeechSynthesizer renders SSML or plain text to PCM audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, ssml, locale string) (*domain.AudioData, error)
}

// TokenVerifier resolves the request's auth tokens to a trust level.
// Verification failures degrade the level, they do not fail the turn.
type TokenVerifier interface {
	Verify(ctx context.Context, tokens []domain.AuthToken, clientID, userID string) (AuthLevel, error)
}

// TimezoneQuery carries whatever location hints the client supplied.
type TimezoneQuery struct {
	Latitude         *float64
	Longitude        *float64
	UTCOffsetMinutes *int
	ReferenceTime    time.Time
}

// TimezoneResult is the resolver's backfill for missing time fields.
type TimezoneResult struct {
	TimeZoneName     string
	UTCOffsetMinutes int
	LocalTime        time.Time
}

// TimezoneResolver backfills timezone/offset/local-time from geo
// coordinates or a supplied offset. Optional; a nil resolver skips the
// backfill step.
type TimezoneResolver interface {
	Resolve(ctx context.Context, q TimezoneQuery) (*TimezoneResult, error)
}

// ConversationStore reads and clears the per-user conversation stack
// maintained by the engine tier.
type ConversationStore interface {
	Retrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error)
	Clear(ctx context.Context, userID, clientID string) error
}

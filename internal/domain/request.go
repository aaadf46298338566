package domain

// CurrentSchemaVersion is the wire schema generation this build speaks
// natively. The transport layer upgrades the three prior versions.
const CurrentSchemaVersion = 18

// OldestSupportedSchemaVersion is the floor of the upgrade chain.
const OldestSupportedSchemaVersion = CurrentSchemaVersion - 3

// InputMethod describes how the user produced this turn.
type InputMethod int

const (
	InputUnknown InputMethod = iota
	InputTyped
	InputSpoken
	InputTactile
	// InputProgrammatic marks machine-generated turns such as cached
	// action replays or scripted clients.
	InputProgrammatic
)

func (m InputMethod) String() string {
	switch m {
	case InputTyped:
		return "typed"
	case InputSpoken:
		return "spoken"
	case InputTactile:
		return "tactile"
	case InputProgrammatic:
		return "programmatic"
	default:
		return "unknown"
	}
}

// Request flags, a bitmask on the wire.
const (
	FlagNone uint32 = 0
	// FlagDebug widens log verbosity for this turn.
	FlagDebug uint32 = 1 << 0
	// FlagTrace retains an in-memory event buffer returned in the response.
	FlagTrace uint32 = 1 << 1
	// FlagMonitoring marks synthetic health-check traffic, subject to load
	// shedding under CPU pressure.
	FlagMonitoring uint32 = 1 << 2
	// FlagLogNothing collapses logging to a null (or trace-buffer-only) sink.
	FlagLogNothing uint32 = 1 << 3
	// FlagNoPII narrows the privacy classes this turn may log.
	FlagNoPII uint32 = 1 << 4
)

// AudioData is a chunk of encoded audio plus the codec needed to decode it.
type AudioData struct {
	Codec       string `json:"codec"`
	CodecParams string `json:"codecParams,omitempty"`
	Data        []byte `json:"data"`
}

// SpeechPhrase is one alternate transcript from a speech recognizer.
type SpeechPhrase struct {
	DisplayText        string  `json:"displayText"`
	LexicalForm        string  `json:"lexicalForm,omitempty"`
	SREngineConfidence float64 `json:"srEngineConfidence"`
}

// SpeechRecognitionResult is the n-best output of speech recognition,
// either client-supplied or produced server-side during validation.
type SpeechRecognitionResult struct {
	Phrases []SpeechPhrase `json:"recognizedPhrases"`
}

// BestTranscript returns the top display text, or "" when empty.
func (r *SpeechRecognitionResult) BestTranscript() string {
	if r == nil || len(r.Phrases) == 0 {
		return ""
	}
	return r.Phrases[0].DisplayText
}

// AuthToken is an opaque credential scoped to a user, a client, or both.
type AuthToken struct {
	Scope string `json:"scope"`
	Token string `json:"token"`
}

// EntityReference names an entity in the client-supplied serialized
// entity context that the client wants injected into this turn.
type EntityReference struct {
	EntityID string `json:"entityId"`
}

// Request is one conversational turn as submitted by a client. Validation
// mutates it in place: identifier hashing, reference-time parsing, audio
// transcoding, server-side recognition backfill.
type Request struct {
	SchemaVersion   int            `json:"version"`
	TraceID         string         `json:"traceId,omitempty"`
	InteractionType InputMethod    `json:"interactionType"`
	ClientContext   *ClientContext `json:"context"`
	AuthTokens      []AuthToken    `json:"authTokens,omitempty"`

	TextInput   string                   `json:"textInput,omitempty"`
	SpeechInput *SpeechRecognitionResult `json:"speechInput,omitempty"`
	AudioInput  *AudioData               `json:"audioInput,omitempty"`

	// DomainScope narrows which recognition domains the client wants
	// considered; empty means all loaded domains.
	DomainScope []string `json:"domainScope,omitempty"`
	// LanguageUnderstanding carries client-supplied hypotheses; when
	// present the remote understanding call is skipped entirely.
	LanguageUnderstanding []RecognizedPhrase `json:"understandingData,omitempty"`

	PreferredAudioCodec  string `json:"preferredAudioCodec,omitempty"`
	PreferredAudioFormat string `json:"preferredAudioFormat,omitempty"`

	Flags uint32 `json:"flags"`
	// ClientAudioPlaybackTimeMs is how far into the previous prompt the
	// user barged in, when known.
	ClientAudioPlaybackTimeMs *int64 `json:"clientAudioPlaybackTimeMs,omitempty"`

	RequestData   map[string]string `json:"requestData,omitempty"`
	EntityContext []byte            `json:"entityContext,omitempty"`
	EntityInput   []EntityReference `json:"entityInput,omitempty"`
}

// UtteranceText returns the best available text for this turn: typed text
// first, then the top speech transcript.
func (r *Request) UtteranceText() string {
	if r.TextInput != "" {
		return r.TextInput
	}
	return r.SpeechInput.BestTranscript()
}

// HasFlag reports whether every bit in mask is set on the request.
func (r *Request) HasFlag(mask uint32) bool {
	return r.Flags&mask == mask
}

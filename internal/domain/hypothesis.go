package domain

// Reserved recognition domains. These are always in scope and never receive
// the reranking confidence boost.
const (
	// DomainCommon catches general chit-chat / side speech.
	DomainCommon = "common"
	// DomainSideSpeech is the side-speech fallback domain.
	DomainSideSpeech = "side_speech"
	// IntentSideSpeech is the side-speech intent within DomainCommon.
	IntentSideSpeech = "side_speech"
	// IntentNoReco marks a turn with no usable recognition at all.
	IntentNoReco = "noreco"
)

// IsReservedDomain reports whether domain is one of the always-on fallback
// domains excluded from the reranking multiplier.
func IsReservedDomain(domain string) bool {
	return domain == DomainCommon || domain == DomainSideSpeech
}

// SlotValue is one tagged slot within a recognized intent.
type SlotValue struct {
	Name        string            `json:"name"`
	Value       string            `json:"value"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// TaggedData is one slot-tagging hypothesis over an utterance.
type TaggedData struct {
	Utterance  string      `json:"utterance"`
	Slots      []SlotValue `json:"slots,omitempty"`
	Confidence float64     `json:"confidence"`
}

// RecoResult is a single domain/intent classification of an utterance.
type RecoResult struct {
	Domain     string       `json:"domain"`
	Intent     string       `json:"intent"`
	Utterance  string       `json:"utterance,omitempty"`
	Confidence float64      `json:"confidence"`
	TagHyps    []TaggedData `json:"tagHyps,omitempty"`
}

// RecognizedPhrase is the understanding output for one transcript
// alternate: the utterance plus its n-best domain/intent recognitions,
// ordered best first.
type RecognizedPhrase struct {
	Utterance string `json:"utterance"`
	// SREngineConfidence is the recognizer's confidence in this
	// transcript; zero means unknown.
	SREngineConfidence float64      `json:"srEngineConfidence,omitempty"`
	Recognition        []RecoResult `json:"recognition"`
}

// Best returns the top recognition for this phrase, or nil when empty.
func (p *RecognizedPhrase) Best() *RecoResult {
	if p == nil || len(p.Recognition) == 0 {
		return nil
	}
	return &p.Recognition[0]
}

// RankedHypothesis is one reranked candidate handed to the dialog engine.
type RankedHypothesis struct {
	Result *RecoResult
	// DialogPriority lets the engine prefer hypotheses regardless of
	// confidence; lower wins, zero is default.
	DialogPriority int
}

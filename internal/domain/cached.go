package domain

// CachedBlob is a transient payload parked in the blob cache: hosted HTML
// pages too large or unsupported for inline delivery, streamed audio
// metadata, or generic plugin data. Keys are fresh random identifiers and
// never reused.
type CachedBlob struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
	// LifetimeSeconds is the remaining validity at retrieval time; a
	// positive value tells the client a conditionally-fetched copy is
	// still good.
	LifetimeSeconds int    `json:"lifetimeSeconds,omitempty"`
	TraceID         string `json:"traceId,omitempty"`
}

// CachedAction is a stored domain/intent/slot bundle retrievable once by an
// opaque key. Replaying it synthesizes a full-confidence hypothesis and
// re-enters the dialog pipeline.
type CachedAction struct {
	Domain            string      `json:"domain"`
	Intent            string      `json:"intent"`
	Slots             []SlotValue `json:"slots,omitempty"`
	InteractionMethod InputMethod `json:"interactionMethod"`
	// LifetimeSeconds bounds how long the key remains replayable.
	LifetimeSeconds int `json:"lifetimeSeconds,omitempty"`
}

// ToRecoResult synthesizes the full-confidence hypothesis used when a
// cached action is replayed.
func (a *CachedAction) ToRecoResult() *RecoResult {
	return &RecoResult{
		Domain:     a.Domain,
		Intent:     a.Intent,
		Confidence: 1.0,
		TagHyps: []TaggedData{{
			Slots:      a.Slots,
			Confidence: 1.0,
		}},
	}
}

// ConversationTurn is one frame of a client's cached conversation stack,
// enough to widen understanding scope for contextual disambiguation.
type ConversationTurn struct {
	Domain string `json:"domain"`
	Intent string `json:"intent"`
}

// ConversationStack is the most recent dialog state for a user/client pair.
type ConversationStack struct {
	Turns []ConversationTurn `json:"turns"`
}

// Domains returns the distinct domains on the stack, most recent first.
func (s *ConversationStack) Domains() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool, len(s.Turns))
	out := make([]string, 0, len(s.Turns))
	for i := len(s.Turns) - 1; i >= 0; i-- {
		d := s.Turns[i].Domain
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

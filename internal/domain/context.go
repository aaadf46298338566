package domain

import "time"

// Client capability bits. A client advertises what it can render so response
// assembly never sends a modality the device cannot handle.
const (
	CapDisplayBasicText        uint32 = 1 << 0
	CapDisplayUnlimitedText    uint32 = 1 << 1
	CapDisplayBasicHTML        uint32 = 1 << 2
	CapDisplayHTML5            uint32 = 1 << 3
	CapHasSpeakers             uint32 = 1 << 4
	CapCanSynthesizeSpeech     uint32 = 1 << 5
	CapSupportsCompressedAudio uint32 = 1 << 6
	CapSupportsStreamingAudio  uint32 = 1 << 7
	CapServeHTML               uint32 = 1 << 8
	CapClientActions           uint32 = 1 << 9
	CapKeywordSpotter          uint32 = 1 << 10
	CapDoNotRenderTextAsHTML   uint32 = 1 << 11
	CapIsOnLocalMachine        uint32 = 1 << 12
)

// ClientContext describes the device and user behind a query. It rides on
// every request and is also persisted in the client-context cache (keyed by
// client id, sliding 24h TTL) so context-free GET requests can be
// reconstructed later.
type ClientContext struct {
	ClientID     string `json:"clientId"`
	UserID       string `json:"userId"`
	ClientName   string `json:"clientName,omitempty"`
	Capabilities uint32 `json:"capabilities"`
	Locale       string `json:"locale"`
	// Client wall-clock time, wire format "2006-01-02T15:04:05".
	ReferenceDateTime string            `json:"referenceDateTime,omitempty"`
	UTCOffsetMinutes  *int              `json:"utcOffset,omitempty"`
	Latitude          *float64          `json:"latitude,omitempty"`
	Longitude         *float64          `json:"longitude,omitempty"`
	UserTimeZone      string            `json:"userTimeZone,omitempty"`
	ExtraContext      map[string]string `json:"extraClientContext,omitempty"`

	// Parsed from ReferenceDateTime during validation; not on the wire.
	ReferenceTime *time.Time `json:"-"`
}

// HasCapability reports whether every bit in mask is set.
func (c *ClientContext) HasCapability(mask uint32) bool {
	return c.Capabilities&mask == mask
}

// CanRenderHTMLDirectly reports whether the response may carry inline HTML
// instead of a cached-page redirect.
func (c *ClientContext) CanRenderHTMLDirectly() bool {
	return c.HasCapability(CapServeHTML)
}

// CanDisplayHTML reports whether the client can show HTML at all, directly
// or via a hosted page.
func (c *ClientContext) CanDisplayHTML() bool {
	return c.Capabilities&(CapDisplayBasicHTML|CapDisplayHTML5|CapServeHTML) != 0
}

package audio

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical PCM format every decoder conforms to before recognition or
// synthesis mixing.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
)

// PCMBuffer is uncompressed signed 16-bit audio.
type PCMBuffer struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

func (b *PCMBuffer) frameCount() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Codec converts between wire audio bytes and PCM.
type Codec interface {
	Name() string
	Decode(params string, data []byte) (*PCMBuffer, error)
	// Encode returns wire bytes plus the codec params a reader needs to
	// decode them.
	Encode(pcm *PCMBuffer) (data []byte, params string, err error)
	// BytesPerSecond is the encoded byte rate for pcm-shaped input, used
	// to size ~100ms relay chunks.
	BytesPerSecond(sampleRate, channels int) int
}

// CodecRegistry resolves codecs by name with a PCM fallback.
type CodecRegistry struct {
	codecs map[string]Codec
}

func NewCodecRegistry(codecs ...Codec) *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		r.codecs[strings.ToLower(c.Name())] = c
	}
	return r
}

// Get resolves name case-insensitively; ok is false for unknown codecs.
func (r *CodecRegistry) Get(name string) (Codec, bool) {
	c, ok := r.codecs[strings.ToLower(name)]
	return c, ok
}

// GetOrFallback resolves the preferred codec, falling back to uncompressed
// PCM when the preference is unknown or empty.
func (r *CodecRegistry) GetOrFallback(preferred string) Codec {
	if c, ok := r.Get(preferred); ok {
		return c
	}
	c, _ := r.Get(CodecNamePCM)
	return c
}

// formatParams renders the codec parameter string readers parse back.
func formatParams(sampleRate, channels int) string {
	return fmt.Sprintf("samplerate=%d channels=%d", sampleRate, channels)
}

// parseParams extracts samplerate/channels from a codec parameter string,
// defaulting to the canonical format for missing fields.
func parseParams(params string) (sampleRate, channels int) {
	sampleRate = CanonicalSampleRate
	channels = CanonicalChannels
	for _, field := range strings.Fields(params) {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.Atoi(parts[1])
		if err != nil || v <= 0 {
			continue
		}
		switch strings.ToLower(parts[0]) {
		case "samplerate":
			sampleRate = v
		case "channels":
			channels = v
		}
	}
	return sampleRate, channels
}

package audio

import (
	"encoding/binary"
	"errors"
)

// CodecNamePCM is the uncompressed fallback every client can decode.
const CodecNamePCM = "pcm"

// PCMCodec is signed 16-bit little-endian passthrough.
type PCMCodec struct{}

func (PCMCodec) Name() string { return CodecNamePCM }

func (PCMCodec) Decode(params string, data []byte) (*PCMBuffer, error) {
	if len(data)%2 != 0 {
		return nil, errors.New("pcm payload has odd byte length")
	}
	sampleRate, channels := parseParams(params)
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return &PCMBuffer{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}

func (PCMCodec) Encode(pcm *PCMBuffer) ([]byte, string, error) {
	data := make([]byte, len(pcm.Samples)*2)
	for i, s := range pcm.Samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data, formatParams(pcm.SampleRate, pcm.Channels), nil
}

func (PCMCodec) BytesPerSecond(sampleRate, channels int) int {
	return sampleRate * channels * 2
}

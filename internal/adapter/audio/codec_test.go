package audio

import (
	"math"
	"testing"
)

func sineWave(sampleRate, channels, frames int, freq float64) *PCMBuffer {
	buf := &PCMBuffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([]int16, frames*channels),
	}
	for f := 0; f < frames; f++ {
		v := int16(12000 * math.Sin(2*math.Pi*freq*float64(f)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			buf.Samples[f*channels+ch] = v
		}
	}
	return buf
}

func TestPCMCodec_RoundTripExact(t *testing.T) {
	original := sineWave(16000, 1, 1600, 440)

	data, params, err := (PCMCodec{}).Encode(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := (PCMCodec{}).Decode(params, data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.SampleRate != 16000 || decoded.Channels != 1 {
		t.Errorf("format lost: %d/%d", decoded.SampleRate, decoded.Channels)
	}
	if len(decoded.Samples) != len(original.Samples) {
		t.Fatalf("sample count changed: %d -> %d", len(original.Samples), len(decoded.Samples))
	}
	for i := range decoded.Samples {
		if decoded.Samples[i] != original.Samples[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, original.Samples[i], decoded.Samples[i])
		}
	}
}

func TestG711_RoundTripWithinQuantizationError(t *testing.T) {
	codecs := []Codec{ULawCodec{}, ALawCodec{}}
	original := sineWave(8000, 1, 800, 300)

	for _, codec := range codecs {
		data, params, err := codec.Encode(original)
		if err != nil {
			t.Fatalf("%s encode failed: %v", codec.Name(), err)
		}
		if len(data) != len(original.Samples) {
			t.Errorf("%s should emit one byte per sample, got %d for %d",
				codec.Name(), len(data), len(original.Samples))
		}

		decoded, err := codec.Decode(params, data)
		if err != nil {
			t.Fatalf("%s decode failed: %v", codec.Name(), err)
		}

		// Companding is lossy; the error must stay within the largest
		// quantization step.
		for i := range decoded.Samples {
			diff := int(decoded.Samples[i]) - int(original.Samples[i])
			if diff < 0 {
				diff = -diff
			}
			if diff > 1024 {
				t.Fatalf("%s sample %d error too large: %d vs %d",
					codec.Name(), i, original.Samples[i], decoded.Samples[i])
			}
		}
	}
}

func TestConform_StereoDownmixAndResample(t *testing.T) {
	// Arrange: one second of 44.1kHz stereo.
	in := sineWave(44100, 2, 44100, 440)

	// Act
	out := Conform(in, CanonicalSampleRate, CanonicalChannels)

	// Assert
	if out.SampleRate != CanonicalSampleRate || out.Channels != CanonicalChannels {
		t.Fatalf("not conformed: %d/%d", out.SampleRate, out.Channels)
	}
	if len(out.Samples) != CanonicalSampleRate {
		t.Errorf("expected ~%d samples for one second, got %d", CanonicalSampleRate, len(out.Samples))
	}
}

func TestConform_NoopWhenAlreadyCanonical(t *testing.T) {
	in := sineWave(CanonicalSampleRate, CanonicalChannels, 100, 200)

	out := Conform(in, CanonicalSampleRate, CanonicalChannels)

	if out != in {
		t.Error("expected canonical input to pass through untouched")
	}
}

func TestCodecRegistry_FallbackToPCM(t *testing.T) {
	registry := NewCodecRegistry(PCMCodec{}, ULawCodec{}, ALawCodec{})

	if c := registry.GetOrFallback("opus"); c.Name() != CodecNamePCM {
		t.Errorf("expected pcm fallback for unknown codec, got %s", c.Name())
	}
	if c := registry.GetOrFallback(""); c.Name() != CodecNamePCM {
		t.Errorf("expected pcm fallback for empty preference, got %s", c.Name())
	}
	if c := registry.GetOrFallback("ULAW"); c.Name() != CodecNameULaw {
		t.Errorf("expected case-insensitive ulaw hit, got %s", c.Name())
	}
}

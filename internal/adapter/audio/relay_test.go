package audio

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

// scriptedSource feeds a fixed chunk script to the relay.
type scriptedSource struct {
	chunks [][]byte
	pos    int
}

func (s *scriptedSource) Codec() string       { return "pcm" }
func (s *scriptedSource) CodecParams() string { return "samplerate=16000 channels=1" }

func (s *scriptedSource) NextChunk() ([]byte, error) {
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// collectingSink records everything relayed into it.
type collectingSink struct {
	buf    bytes.Buffer
	closed bool
}

func (c *collectingSink) Write(p []byte) (int, error) { return c.buf.Write(p) }
func (c *collectingSink) Close() error {
	c.closed = true
	return nil
}

func TestRelay_FuzzedChunkDistributions(t *testing.T) {
	// Every random chunk-size distribution must come out byte-exact and in
	// order, with no deadlock.
	for seed := int64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewSource(seed))

		chunkCount := rng.Intn(40)
		chunks := make([][]byte, chunkCount)
		var want bytes.Buffer
		for i := range chunks {
			chunk := make([]byte, rng.Intn(9000))
			rng.Read(chunk)
			chunks[i] = chunk
			want.Write(chunk)
		}

		sink := &collectingSink{}
		if err := Relay(&scriptedSource{chunks: chunks}, sink); err != nil {
			t.Fatalf("seed %d: relay failed: %v", seed, err)
		}

		if !bytes.Equal(sink.buf.Bytes(), want.Bytes()) {
			t.Fatalf("seed %d: relayed %d bytes, want %d, content mismatch",
				seed, sink.buf.Len(), want.Len())
		}
		if !sink.closed {
			t.Fatalf("seed %d: sink was not closed", seed)
		}
	}
}

func TestRelay_ZeroChunks(t *testing.T) {
	sink := &collectingSink{}

	if err := Relay(&scriptedSource{}, sink); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	if sink.buf.Len() != 0 {
		t.Errorf("expected no bytes, got %d", sink.buf.Len())
	}
	if !sink.closed {
		t.Error("sink was not closed")
	}
}

func TestEncoderSource_ChunksAtCodecByteRate(t *testing.T) {
	// Arrange: one second of canonical PCM.
	pcm := &PCMBuffer{
		SampleRate: CanonicalSampleRate,
		Channels:   CanonicalChannels,
		Samples:    make([]int16, CanonicalSampleRate),
	}

	// Act
	src, err := NewEncoderSource(PCMCodec{}, pcm)
	if err != nil {
		t.Fatalf("encoder source failed: %v", err)
	}

	first, err := src.NextChunk()

	// Assert: 100ms of s16le mono at 16kHz is 3200 bytes.
	if err != nil {
		t.Fatalf("first chunk failed: %v", err)
	}
	if len(first) != 3200 {
		t.Errorf("expected 3200-byte chunk, got %d", len(first))
	}

	total := len(first)
	for {
		chunk, err := src.NextChunk()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("chunk failed: %v", err)
		}
		total += len(chunk)
	}
	if total != CanonicalSampleRate*2 {
		t.Errorf("chunks do not cover the full payload: %d bytes", total)
	}
}

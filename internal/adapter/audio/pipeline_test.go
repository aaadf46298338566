package audio

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/infrastructure/workerpool"
	"github.com/parlance-ai/parlance/internal/mocks"
	"github.com/parlance-ai/parlance/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestPipeline(t *testing.T, synth ports.SpeechSynthesizer) (*Pipeline, *mocks.MockStreamingAudioCache, *workerpool.Pool) {
	t.Helper()
	streams := mocks.NewMockStreamingAudioCache()
	pool := workerpool.New(2, newTestLogger())
	t.Cleanup(pool.Close)
	registry := NewCodecRegistry(PCMCodec{}, ULawCodec{}, ALawCodec{})
	return NewPipeline(registry, streams, pool, synth, newTestLogger()), streams, pool
}

func pcmAudioData(t *testing.T, samples []int16) *domain.AudioData {
	t.Helper()
	data, params, err := (PCMCodec{}).Encode(&PCMBuffer{
		SampleRate: CanonicalSampleRate,
		Channels:   CanonicalChannels,
		Samples:    samples,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return &domain.AudioData{Codec: CodecNamePCM, CodecParams: params, Data: data}
}

func TestBuildFinalAudio_CustomBeforeSpeech(t *testing.T) {
	// Arrange
	ctx := context.Background()
	ttsSamples := []int16{100, 100, 100}
	customSamples := []int16{-5, -5}
	synth := &mocks.MockSpeechSynthesizer{
		SynthesizeFunc: func(ctx context.Context, ssml, locale string) (*domain.AudioData, error) {
			return pcmAudioData(t, ttsSamples), nil
		},
	}
	pipeline, _, _ := newTestPipeline(t, synth)

	// Act
	out, err := pipeline.BuildFinalAudio(ctx, "<speak>hi</speak>", "en-US", false,
		pcmAudioData(t, customSamples), ports.AudioOrderingBeforeSpeech)

	// Assert: custom audio leads when ordering says before-speech.
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := append(append([]int16{}, customSamples...), ttsSamples...)
	if len(out.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out.Samples))
	}
	for i := range want {
		if out.Samples[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], out.Samples[i])
		}
	}
}

func TestBuildFinalAudio_SpeechFirstByDefault(t *testing.T) {
	ctx := context.Background()
	ttsSamples := []int16{7, 7}
	customSamples := []int16{9}
	synth := &mocks.MockSpeechSynthesizer{
		SynthesizeFunc: func(ctx context.Context, ssml, locale string) (*domain.AudioData, error) {
			return pcmAudioData(t, ttsSamples), nil
		},
	}
	pipeline, _, _ := newTestPipeline(t, synth)

	out, err := pipeline.BuildFinalAudio(ctx, "<speak>hi</speak>", "en-US", false,
		pcmAudioData(t, customSamples), ports.AudioOrderingAfterSpeech)

	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := append(append([]int16{}, ttsSamples...), customSamples...)
	for i := range want {
		if out.Samples[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], out.Samples[i])
		}
	}
}

func TestBuildFinalAudio_CustomOnlyWhenNoSpeech(t *testing.T) {
	// No SSML at all: custom audio passes through regardless of ordering.
	ctx := context.Background()
	pipeline, _, _ := newTestPipeline(t, &mocks.MockSpeechSynthesizer{})

	out, err := pipeline.BuildFinalAudio(ctx, "", "en-US", false,
		pcmAudioData(t, []int16{1, 2, 3}), ports.AudioOrderingAfterSpeech)

	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(out.Samples) != 3 {
		t.Errorf("expected custom audio only, got %d samples", len(out.Samples))
	}
}

func TestBuildFinalAudio_SkipsSynthesisWhenClientCan(t *testing.T) {
	ctx := context.Background()
	called := false
	synth := &mocks.MockSpeechSynthesizer{
		SynthesizeFunc: func(ctx context.Context, ssml, locale string) (*domain.AudioData, error) {
			called = true
			return nil, nil
		},
	}
	pipeline, _, _ := newTestPipeline(t, synth)

	out, err := pipeline.BuildFinalAudio(ctx, "<speak>hi</speak>", "en-US", true, nil, ports.AudioOrderingUnspecified)

	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if called {
		t.Error("synthesis must be skipped when the client synthesizes locally")
	}
	if out != nil {
		t.Error("expected no server-side audio")
	}
}

func TestTranscodeToPCM_ConformsCompressedInput(t *testing.T) {
	// Arrange: µ-law at 8kHz.
	pipeline, _, _ := newTestPipeline(t, nil)
	src := sineWave(8000, 1, 800, 300)
	data, params, err := (ULawCodec{}).Encode(src)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Act
	out, err := pipeline.TranscodeToPCM(&domain.AudioData{Codec: "ulaw", CodecParams: params, Data: data})

	// Assert
	if err != nil {
		t.Fatalf("transcode failed: %v", err)
	}
	if out.Codec != CodecNamePCM {
		t.Errorf("expected pcm output, got %s", out.Codec)
	}
	rate, channels := parseParams(out.CodecParams)
	if rate != CanonicalSampleRate || channels != CanonicalChannels {
		t.Errorf("not canonical: %d/%d", rate, channels)
	}
}

func TestBeginStreaming_RelaysAllBytes(t *testing.T) {
	// Arrange
	ctx := context.Background()
	pipeline, streams, pool := newTestPipeline(t, nil)
	pcm := sineWave(CanonicalSampleRate, CanonicalChannels, CanonicalSampleRate/2, 440)
	wantData, _, _ := (PCMCodec{}).Encode(pcm)

	// Act
	if err := pipeline.BeginStreaming(ctx, domain.NewTraceID(), "stream-key", pcm, "unknown-codec"); err != nil {
		t.Fatalf("begin streaming failed: %v", err)
	}

	// Wait for the background relay to finish.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if data, closed := streams.StreamBytes("stream-key"); closed {
			if !bytes.Equal(data, wantData) {
				t.Fatalf("relayed bytes differ: %d vs %d", len(data), len(wantData))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("relay did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = pool
}

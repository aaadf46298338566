package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/mocks"
)

func TestPseudonymizeIdentifier(t *testing.T) {
	short := "ordinary-client-id"
	if got := pseudonymizeIdentifier(short); got != short {
		t.Errorf("short identifiers must pass through, got %q", got)
	}

	long := strings.Repeat("x", 300)
	hashed := pseudonymizeIdentifier(long)
	if len(hashed) != 32 {
		t.Errorf("expected a 32-char pseudonymous id, got %d chars", len(hashed))
	}
	if hashed != pseudonymizeIdentifier(long) {
		t.Error("hashing must be deterministic")
	}
	if hashed == pseudonymizeIdentifier(long+"y") {
		t.Error("distinct identifiers must not collide trivially")
	}
}

func TestRoundOffsetMinutes(t *testing.T) {
	tests := []struct {
		delta time.Duration
		want  int
	}{
		{0, 0},
		{62 * time.Minute, 60},
		{-173 * time.Minute, -180},
		{5*time.Hour + 37*time.Minute, 330},
		{7 * time.Minute, 0},
		{8 * time.Minute, 15},
	}
	for _, tt := range tests {
		if got := roundOffsetMinutes(tt.delta); got != tt.want {
			t.Errorf("roundOffsetMinutes(%v) = %d, want %d", tt.delta, got, tt.want)
		}
	}
}

func TestValidate_UnparsableReferenceTimeIsDropped(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})
	req := typedRequest("hello")
	req.ClientContext.ReferenceDateTime = "March 5th at noon"

	if _, err := o.HandleQuery(context.Background(), req, TurnOptions{}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if req.ClientContext.ReferenceDateTime != "" || req.ClientContext.ReferenceTime != nil {
		t.Error("unparsable reference time must be dropped, not fatal")
	}
}

func TestValidate_OffsetInferredFromWallClock(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})
	req := typedRequest("hello")
	// Client clock roughly one hour ahead of UTC.
	ahead := time.Now().UTC().Add(61 * time.Minute)
	req.ClientContext.ReferenceDateTime = ahead.Format(referenceTimeFormat)

	if _, err := o.HandleQuery(context.Background(), req, TurnOptions{}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if req.ClientContext.UTCOffsetMinutes == nil {
		t.Fatal("offset was not inferred")
	}
	if got := *req.ClientContext.UTCOffsetMinutes; got != 60 {
		t.Errorf("expected offset rounded to 60 minutes, got %d", got)
	}
}

func TestValidate_ExplicitOffsetWinsOverInference(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})
	req := typedRequest("hello")
	explicit := -480
	req.ClientContext.UTCOffsetMinutes = &explicit
	ahead := time.Now().UTC().Add(2 * time.Hour)
	req.ClientContext.ReferenceDateTime = ahead.Format(referenceTimeFormat)

	if _, err := o.HandleQuery(context.Background(), req, TurnOptions{}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if *req.ClientContext.UTCOffsetMinutes != -480 {
		t.Errorf("explicit offset was overwritten: %d", *req.ClientContext.UTCOffsetMinutes)
	}
}

func TestValidate_SpokenInputWithoutTranscriptRunsRecognition(t *testing.T) {
	// Arrange
	o, f := newTestOrchestrator(t, Config{})
	f.recognizer.RecognizeFunc = func(ctx context.Context, audio *domain.AudioData, locale string) (*domain.SpeechRecognitionResult, error) {
		return &domain.SpeechRecognitionResult{Phrases: []domain.SpeechPhrase{{
			DisplayText:        "play some jazz",
			SREngineConfidence: 0.85,
		}}}, nil
	}
	req := typedRequest("")
	req.InteractionType = domain.InputSpoken
	req.AudioInput = &domain.AudioData{
		Codec:       "pcm",
		CodecParams: "samplerate=16000 channels=1",
		Data:        make([]byte, 3200),
	}

	// Act
	resp, err := o.HandleQuery(context.Background(), req, TurnOptions{})

	// Assert
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if resp.ExecutionResult != domain.ResultSuccess {
		t.Fatalf("expected success, got %v (%s)", resp.ExecutionResult, resp.ErrorMessage)
	}
	if req.SpeechInput.BestTranscript() != "play some jazz" {
		t.Errorf("recognition transcript not backfilled: %q", req.SpeechInput.BestTranscript())
	}
}

func TestValidate_EmptyRecognitionFailsTheTurn(t *testing.T) {
	o, f := newTestOrchestrator(t, Config{})
	f.recognizer.RecognizeFunc = func(ctx context.Context, audio *domain.AudioData, locale string) (*domain.SpeechRecognitionResult, error) {
		return &domain.SpeechRecognitionResult{}, nil
	}
	req := typedRequest("")
	req.InteractionType = domain.InputSpoken
	req.AudioInput = &domain.AudioData{
		Codec:       "pcm",
		CodecParams: "samplerate=16000 channels=1",
		Data:        make([]byte, 3200),
	}

	resp, err := o.HandleQuery(context.Background(), req, TurnOptions{})

	if err != nil {
		t.Fatalf("validation failures convert to Failure responses: %v", err)
	}
	if resp.ExecutionResult != domain.ResultFailure {
		t.Errorf("expected Failure, got %v", resp.ExecutionResult)
	}
	if f.engine.LastRequest != nil {
		t.Error("the engine must not run after a validation failure")
	}
}

func TestValidate_CompressedAudioTranscodedToPCM(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})
	req := typedRequest("hello")
	// One second of µ-law silence at 8 kHz.
	req.AudioInput = &domain.AudioData{
		Codec:       "ulaw",
		CodecParams: "samplerate=8000 channels=1",
		Data:        make([]byte, 8000),
	}

	if _, err := o.HandleQuery(context.Background(), req, TurnOptions{}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if req.AudioInput.Codec != "pcm" {
		t.Errorf("input audio must be canonical PCM after validation, got %q", req.AudioInput.Codec)
	}
}

func TestValidate_TimezoneBackfillRespectsExplicitValues(t *testing.T) {
	o, _ := newTestOrchestrator(t, Config{})
	// The fixture leaves the resolver unset; attach one for this test.
	o.timezones = &mocks.MockTimezoneResolver{}

	req := typedRequest("hello")
	lat, lon := 47.6, -122.3
	req.ClientContext.Latitude = &lat
	req.ClientContext.Longitude = &lon
	req.ClientContext.UserTimeZone = "Europe/Lisbon"

	if _, err := o.HandleQuery(context.Background(), req, TurnOptions{}); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if req.ClientContext.UserTimeZone != "Europe/Lisbon" {
		t.Errorf("explicit timezone was overwritten: %q", req.ClientContext.UserTimeZone)
	}
	if req.ClientContext.UTCOffsetMinutes == nil || *req.ClientContext.UTCOffsetMinutes != -480 {
		t.Error("missing offset must be backfilled from the resolver")
	}
}

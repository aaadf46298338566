package understanding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/ports"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log, _ := zap.NewDevelopment()
	return NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, log)
}

func TestRecognize_RoundTrip(t *testing.T) {
	// Arrange
	var received recognizeRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recognize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("request did not decode: %v", err)
		}
		json.NewEncoder(w).Encode(recognizeResponse{
			Phrases: []domain.RecognizedPhrase{{
				Utterance: "turn on the lights",
				Recognition: []domain.RecoResult{{
					Domain:     "smarthome",
					Intent:     "lights_on",
					Confidence: 0.87,
				}},
			}},
		})
	}))

	// Act
	phrases, err := client.Recognize(context.Background(), &ports.UnderstandingRequest{
		TraceID:     domain.NewTraceID(),
		Locale:      "en-US",
		Utterances:  []string{"turn on the lights"},
		DomainScope: []string{"smarthome", "common"},
	})

	// Assert
	if err != nil {
		t.Fatalf("recognize failed: %v", err)
	}
	if len(phrases) != 1 || phrases[0].Best().Domain != "smarthome" {
		t.Errorf("unexpected phrases: %+v", phrases)
	}
	if received.Locale != "en-US" || len(received.DomainScope) != 2 {
		t.Errorf("scope did not survive the wire: %+v", received)
	}
}

func TestRecognize_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	hits := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	req := &ports.UnderstandingRequest{
		TraceID:    domain.NewTraceID(),
		Locale:     "en-US",
		Utterances: []string{"hello"},
	}

	for i := 0; i < 5; i++ {
		if _, err := client.Recognize(context.Background(), req); err == nil {
			t.Fatal("expected a failure")
		}
	}

	_, err := client.Recognize(context.Background(), req)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected the breaker to be open, got %v", err)
	}
	if hits >= 6 {
		t.Errorf("the open breaker should stop reaching the service, saw %d hits", hits)
	}
}

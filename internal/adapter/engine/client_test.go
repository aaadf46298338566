package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestProcess_RoundTrip(t *testing.T) {
	// Arrange
	var received processRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" || r.Method != http.MethodPost {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("request body did not decode: %v", err)
		}
		json.NewEncoder(w).Encode(processResponse{
			ExecutionResult: int(domain.ResultSuccess),
			ResponseText:    "it is noon",
			ResponseSSML:    "<speak>it is noon</speak>",
		})
	}))

	req := &ports.EngineRequest{
		TraceID:   domain.NewTraceID(),
		Utterance: "what time is it",
		Hypotheses: []domain.RankedHypothesis{{
			Result: &domain.RecoResult{Domain: "clock", Intent: "current_time", Confidence: 0.9},
		}},
		ClientContext: &domain.ClientContext{ClientID: "c1", UserID: "u1", Locale: "en-US", Capabilities: 1},
		AuthLevel:     ports.AuthLevelUserVerified,
		InputMethod:   domain.InputTyped,
	}

	// Act
	resp, err := client.Process(context.Background(), req)

	// Assert
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if resp.ExecutionResult != domain.ResultSuccess || resp.ResponseText != "it is noon" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if received.Utterance != "what time is it" {
		t.Errorf("utterance did not survive the wire: %q", received.Utterance)
	}
	if received.AuthLevel != int(ports.AuthLevelUserVerified) {
		t.Errorf("auth level did not survive the wire: %d", received.AuthLevel)
	}
	if len(received.Hypotheses) != 1 || received.Hypotheses[0].Result.Domain != "clock" {
		t.Errorf("hypotheses did not survive the wire: %+v", received.Hypotheses)
	}
}

func TestProcess_ServerErrorBecomesEngineError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Process(context.Background(), &ports.EngineRequest{TraceID: domain.NewTraceID()})

	if err == nil {
		t.Fatal("expected an error")
	}
	var engErr *domain.EngineError
	if !asEngineError(err, &engErr) {
		t.Errorf("expected an EngineError, got %T: %v", err, err)
	}
}

func asEngineError(err error, target **domain.EngineError) bool {
	e, ok := err.(*domain.EngineError)
	if ok {
		*target = e
	}
	return ok
}

func TestFetchPluginView_ConditionalAndMissing(t *testing.T) {
	modified := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/views/weather/style.css":
			if r.Header.Get("If-Modified-Since") != "" {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("Content-Type", "text/css")
			w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
			w.Write([]byte("body{}"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	asset, err := client.FetchPluginView(context.Background(), "weather", "style.css", nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if asset == nil || string(asset.Data) != "body{}" || asset.MimeType != "text/css" {
		t.Errorf("unexpected asset: %+v", asset)
	}
	if !asset.LastModified.Equal(modified) {
		t.Errorf("last-modified did not parse: %v", asset.LastModified)
	}

	cond, err := client.FetchPluginView(context.Background(), "weather", "style.css", &modified)
	if err != nil {
		t.Fatalf("conditional fetch failed: %v", err)
	}
	if cond == nil || !cond.NotModified {
		t.Errorf("expected a not-modified asset, got %+v", cond)
	}

	missing, err := client.FetchPluginView(context.Background(), "clock", "logo.png", nil)
	if err != nil {
		t.Fatalf("missing fetch errored: %v", err)
	}
	if missing != nil {
		t.Errorf("a 404 should yield a nil asset, got %+v", missing)
	}
}

func TestRetrieve_FreshConversationIsNil(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	stack, err := client.Retrieve(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("retrieve errored on a fresh conversation: %v", err)
	}
	if stack != nil {
		t.Errorf("expected nil stack, got %+v", stack)
	}
}

func TestRetrieve_ReturnsStack(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") != "u1" || r.URL.Query().Get("client") != "c1" {
			t.Errorf("identity missing from query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(domain.ConversationStack{
			Turns: []domain.ConversationTurn{{Domain: "smarthome", Intent: "lights_on"}},
		})
	}))

	stack, err := client.Retrieve(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if stack == nil || len(stack.Turns) != 1 || stack.Turns[0].Domain != "smarthome" {
		t.Errorf("unexpected stack: %+v", stack)
	}
}

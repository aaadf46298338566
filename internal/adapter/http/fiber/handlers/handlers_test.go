package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/adapter/audio"
	"github.com/parlance-ai/parlance/internal/adapter/http/fiber/middleware"
	"github.com/parlance-ai/parlance/internal/adapter/transport"
	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/infrastructure/workerpool"
	"github.com/parlance-ai/parlance/internal/mocks"
	"github.com/parlance-ai/parlance/internal/ports"
	"github.com/parlance-ai/parlance/internal/service/orchestrator"
)

type testEnv struct {
	app    *fiber.App
	proto  transport.Protocol
	engine *mocks.MockDialogEngine
	cache  *mocks.MockCache
	convos *mocks.MockConversationStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	engine := &mocks.MockDialogEngine{}
	cacheStore := mocks.NewMockCache()
	convos := &mocks.MockConversationStore{}
	streams := mocks.NewMockStreamingAudioCache()

	pool := workerpool.New(2, log)
	t.Cleanup(pool.Close)
	codecs := audio.NewCodecRegistry(audio.PCMCodec{}, audio.ULawCodec{}, audio.ALawCodec{})
	pipeline := audio.NewPipeline(codecs, streams, pool, &mocks.MockSpeechSynthesizer{}, log)

	orch := orchestrator.New(orchestrator.Deps{
		Engine:        engine,
		Understanding: &mocks.MockUnderstandingService{},
		Recognizer:    &mocks.MockSpeechRecognizer{},
		Verifier:      &mocks.MockTokenVerifier{},
		Conversations: convos,
		Cache:         cacheStore,
		Audio:         pipeline,
		Log:           log,
	}, orchestrator.Config{})

	protocols := transport.NewRegistry(transport.NewJSONProtocol(log))

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	query := NewQueryHandler(orch, protocols, log)
	action := NewActionHandler(orch, protocols, log)
	cache := NewCacheHandler(orch, log)
	reset := NewResetHandler(orch, log)
	views := NewViewsHandler(orch, log)
	status := NewStatusHandler(protocols, "test")

	app.Post("/query", query.Submit)
	app.Get("/query", query.SubmitContextFree)
	app.Get("/action", action.Replay)
	app.Post("/action", action.ReplayWithBody)
	app.Put("/action", action.ReplayKeyValue)
	app.Get("/cache", cache.Fetch)
	app.Get("/reset", reset.Reset)
	app.Get("/views/:plugin/*", views.Fetch)
	app.Get("/status", status.Status)

	return &testEnv{
		app:    app,
		proto:  protocols.Default(),
		engine: engine,
		cache:  cacheStore,
		convos: convos,
	}
}

func wireRequest(t *testing.T, env *testEnv, capabilities uint32) []byte {
	t.Helper()
	body, err := env.proto.WriteRequest(&domain.Request{
		SchemaVersion:   domain.CurrentSchemaVersion,
		TraceID:         domain.NewTraceID(),
		InteractionType: domain.InputTyped,
		TextInput:       "turn on the lights",
		ClientContext: &domain.ClientContext{
			ClientID:     "client-1",
			UserID:       "user-1",
			Capabilities: capabilities,
			Locale:       "en-US",
		},
	})
	if err != nil {
		t.Fatalf("could not serialize request: %v", err)
	}
	return body
}

func postQuery(t *testing.T, env *testEnv, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestQuery_PostTurnRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp := postQuery(t, env, wireRequest(t, env, domain.CapDisplayBasicText))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("unexpected content type %q", ct)
	}
	payload, _ := io.ReadAll(resp.Body)
	parsed, err := env.proto.ParseResponse(payload)
	if err != nil {
		t.Fatalf("response did not parse: %v", err)
	}
	if parsed.ExecutionResult != domain.ResultSuccess || parsed.ResponseText != "ok" {
		t.Errorf("unexpected response payload: %+v", parsed)
	}
	if env.engine.LastRequest == nil {
		t.Error("engine was never invoked")
	}
}

func TestQuery_UnknownFormatRejected(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/query?format=msgpack", bytes.NewReader(wireRequest(t, env, domain.CapDisplayBasicText)))
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("error body did not decode: %v", err)
	}
	if !strings.Contains(body["error"], "msgpack") {
		t.Errorf("error should name the unknown format, got %q", body["error"])
	}
}

func TestQuery_MalformedBodyRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := postQuery(t, env, []byte("{not json"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed body, got %d", resp.StatusCode)
	}
}

func TestQuery_ContextFreeRedirectsToHostedPage(t *testing.T) {
	env := newTestEnv(t)
	env.engine.ProcessFunc = func(ctx context.Context, r *ports.EngineRequest) (*ports.EngineResponse, error) {
		return &ports.EngineResponse{
			ExecutionResult: domain.ResultSuccess,
			ResponseText:    "lights on",
			ResponseHTML:    "<p>lights on</p>",
		}, nil
	}

	// A regular turn first, so the client context gets cached.
	warm := postQuery(t, env, wireRequest(t, env, domain.CapDisplayBasicText|domain.CapDisplayHTML5))
	warm.Body.Close()

	req := httptest.NewRequest(http.MethodGet, "/query?q=lights&client=client-1", nil)
	resp, err := env.app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/cache?page=") {
		t.Errorf("expected a hosted page redirect, got %q", loc)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "rel=preload") {
		t.Errorf("expected a preload hint, got %q", link)
	}

	// The redirect target serves the page with its declared lifetime.
	follow := httptest.NewRequest(http.MethodGet, loc, nil)
	page, err := env.app.Test(follow, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("page fetch failed: %v", err)
	}
	defer page.Body.Close()
	if page.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for the hosted page, got %d", page.StatusCode)
	}
	html, _ := io.ReadAll(page.Body)
	if string(html) != "<p>lights on</p>" {
		t.Errorf("unexpected page body %q", html)
	}
	if ct := page.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected page content type %q", ct)
	}
	if cc := page.Header.Get("Cache-Control"); !strings.HasPrefix(cc, "max-age=") {
		t.Errorf("expected a max-age directive, got %q", cc)
	}
}

func TestQuery_ContextFreeWithoutCachedContext(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/query?q=lights&client=stranger", nil)
	resp, err := env.app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown client, got %d", resp.StatusCode)
	}
}

func TestCache_MissingItemIs404(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/cache?page=nope", nil)
	resp, err := env.app.Test(req, int((15 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCache_NoParameterIs400(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/cache", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAction_KeyValueReplayAppliesOverrides(t *testing.T) {
	env := newTestEnv(t)

	stored, _ := json.Marshal(domain.CachedAction{
		Domain:            "smarthome",
		Intent:            "set_temperature",
		Slots:             []domain.SlotValue{{Name: "temp", Value: "68"}},
		InteractionMethod: domain.InputTactile,
	})
	if err := env.cache.Store(context.Background(), "dialogaction:act-1", stored, time.Minute, true); err != nil {
		t.Fatal(err)
	}
	warm := postQuery(t, env, wireRequest(t, env, domain.CapDisplayBasicText))
	warm.Body.Close()
	env.engine.LastRequest = nil

	req := httptest.NewRequest(http.MethodPut, "/action?key=act-1&client=client-1",
		strings.NewReader("temp=72&room=kitchen"))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, err := env.app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	engReq := env.engine.LastRequest
	if engReq == nil {
		t.Fatal("engine was never invoked")
	}
	slots := engReq.Hypotheses[0].Result.TagHyps[0].Slots
	byName := make(map[string]string, len(slots))
	for _, s := range slots {
		byName[s.Name] = s.Value
	}
	if byName["temp"] != "72" {
		t.Errorf("expected the temp override, got %q", byName["temp"])
	}
	if byName["room"] != "kitchen" {
		t.Errorf("expected the appended room slot, got %q", byName["room"])
	}
}

func TestAction_MissReportsFailureNamingKey(t *testing.T) {
	env := newTestEnv(t)
	body := wireRequest(t, env, domain.CapDisplayBasicText)

	req := httptest.NewRequest(http.MethodPost, "/action?key=gone", bytes.NewReader(body))
	resp, err := env.app.Test(req, int((15 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("a stale action key still yields a protocol response, got %d", resp.StatusCode)
	}
	payload, _ := io.ReadAll(resp.Body)
	parsed, err := env.proto.ParseResponse(payload)
	if err != nil {
		t.Fatalf("response did not parse: %v", err)
	}
	if parsed.ExecutionResult != domain.ResultFailure {
		t.Errorf("expected a failure result, got %v", parsed.ExecutionResult)
	}
	if !strings.Contains(parsed.ErrorMessage, "gone") {
		t.Errorf("failure should name the missing key, got %q", parsed.ErrorMessage)
	}
}

func TestReset_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/reset?userid=u1", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReset_ClearsConversationState(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/reset?userid=u1&clientid=c1", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(env.convos.Cleared) != 1 || env.convos.Cleared[0] != "u1/c1" {
		t.Errorf("conversation state was not cleared: %v", env.convos.Cleared)
	}
}

func TestViews_ConditionalFetch(t *testing.T) {
	env := newTestEnv(t)
	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.engine.FetchPluginViewFunc = func(ctx context.Context, pluginID, path string, since *time.Time) (*ports.ViewAsset, error) {
		if pluginID != "weather" || path != "style.css" {
			return nil, nil
		}
		if since != nil && !modified.After(*since) {
			return &ports.ViewAsset{NotModified: true}, nil
		}
		return &ports.ViewAsset{
			Data:         []byte("body{}"),
			MimeType:     "text/css",
			LastModified: modified,
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/views/weather/style.css", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lm := resp.Header.Get("Last-Modified"); lm == "" {
		t.Error("expected a Last-Modified header")
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("unexpected content type %q", ct)
	}

	cond := httptest.NewRequest(http.MethodGet, "/views/weather/style.css", nil)
	cond.Header.Set("If-Modified-Since", modified.Format(http.TimeFormat))
	notMod, err := env.app.Test(cond)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer notMod.Body.Close()
	if notMod.StatusCode != http.StatusNotModified {
		t.Errorf("expected 304, got %d", notMod.StatusCode)
	}

	missing := httptest.NewRequest(http.MethodGet, "/views/clock/logo.png", nil)
	gone, err := env.app.Test(missing)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", gone.StatusCode)
	}
}

func TestStatus_ReportsSchemaWindowAndProtocols(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Status              string   `json:"status"`
		SchemaVersion       int      `json:"schemaVersion"`
		OldestSchemaVersion int      `json:"oldestSchemaVersion"`
		Protocols           []string `json:"protocols"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("status body did not decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("unexpected status %q", body.Status)
	}
	if body.SchemaVersion != domain.CurrentSchemaVersion || body.OldestSchemaVersion != domain.OldestSupportedSchemaVersion {
		t.Errorf("unexpected schema window: %d..%d", body.OldestSchemaVersion, body.SchemaVersion)
	}
	found := false
	for _, name := range body.Protocols {
		if name == "json" {
			found = true
		}
	}
	if !found {
		t.Errorf("json protocol missing from %v", body.Protocols)
	}
}

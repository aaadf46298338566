package mocks

import (
	"context"
	"time"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/ports"
)

// MockDialogEngine is a mock implementation of ports.DialogEngine.
type MockDialogEngine struct {
	ProcessFunc         func(ctx context.Context, req *ports.EngineRequest) (*ports.EngineResponse, error)
	LoadedDomainsFunc   func(ctx context.Context) ([]string, error)
	FetchPluginViewFunc func(ctx context.Context, pluginID, path string, ifModifiedSince *time.Time) (*ports.ViewAsset, error)

	// LastRequest records the most recent Process call for assertions.
	LastRequest *ports.EngineRequest
}

func (m *MockDialogEngine) Process(ctx context.Context, req *ports.EngineRequest) (*ports.EngineResponse, error) {
	m.LastRequest = req
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, req)
	}
	return &ports.EngineResponse{
		ExecutionResult: domain.ResultSuccess,
		ResponseText:    "ok",
	}, nil
}

func (m *MockDialogEngine) LoadedDomains(ctx context.Context) ([]string, error) {
	if m.LoadedDomainsFunc != nil {
		return m.LoadedDomainsFunc(ctx)
	}
	return []string{"smarthome", "weather", "clock", domain.DomainCommon, domain.DomainSideSpeech}, nil
}

func (m *MockDialogEngine) FetchPluginView(ctx context.Context, pluginID, path string, ifModifiedSince *time.Time) (*ports.ViewAsset, error) {
	if m.FetchPluginViewFunc != nil {
		return m.FetchPluginViewFunc(ctx, pluginID, path, ifModifiedSince)
	}
	return nil, nil
}

// MockUnderstandingService is a mock implementation of
// ports.UnderstandingService.
type MockUnderstandingService struct {
	RecognizeFunc func(ctx context.Context, req *ports.UnderstandingRequest) ([]domain.RecognizedPhrase, error)
	LastRequest   *ports.UnderstandingRequest
	Called        bool
}

func (m *MockUnderstandingService) Recognize(ctx context.Context, req *ports.UnderstandingRequest) ([]domain.RecognizedPhrase, error) {
	m.Called = true
	m.LastRequest = req
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, req)
	}
	return nil, nil
}

// MockSpeechRecognizer is a mock implementation of ports.SpeechRecognizer.
type MockSpeechRecognizer struct {
	RecognizeFunc func(ctx context.Context, audio *domain.AudioData, locale string) (*domain.SpeechRecognitionResult, error)
	Called        bool
}

func (m *MockSpeechRecognizer) Recognize(ctx context.Context, audio *domain.AudioData, locale string) (*domain.SpeechRecognitionResult, error) {
	m.Called = true
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, audio, locale)
	}
	return nil, nil
}

// MockSpeechSynthesizer is a mock implementation of
// ports.SpeechSynthesizer. The default returns a short PCM buffer.
type MockSpeechSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, ssml, locale string) (*domain.AudioData, error)
}

func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, ssml, locale string) (*domain.AudioData, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, ssml, locale)
	}
	data := make([]byte, 3200)
	for i := range data {
		data[i] = byte(i % 7)
	}
	return &domain.AudioData{
		Codec:       "pcm",
		CodecParams: "samplerate=16000 channels=1",
		Data:        data,
	}, nil
}

// MockTokenVerifier is a mock implementation of ports.TokenVerifier.
type MockTokenVerifier struct {
	VerifyFunc func(ctx context.Context, tokens []domain.AuthToken, clientID, userID string) (ports.AuthLevel, error)
}

func (m *MockTokenVerifier) Verify(ctx context.Context, tokens []domain.AuthToken, clientID, userID string) (ports.AuthLevel, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, tokens, clientID, userID)
	}
	return ports.AuthLevelNone, nil
}

// MockTimezoneResolver is a mock implementation of ports.TimezoneResolver.
type MockTimezoneResolver struct {
	ResolveFunc func(ctx context.Context, q ports.TimezoneQuery) (*ports.TimezoneResult, error)
}

func (m *MockTimezoneResolver) Resolve(ctx context.Context, q ports.TimezoneQuery) (*ports.TimezoneResult, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, q)
	}
	return &ports.TimezoneResult{
		TimeZoneName:     "America/Los_Angeles",
		UTCOffsetMinutes: -480,
		LocalTime:        q.ReferenceTime,
	}, nil
}

// MockConversationStore is a mock implementation of
// ports.ConversationStore.
type MockConversationStore struct {
	RetrieveFunc func(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error)
	ClearFunc    func(ctx context.Context, userID, clientID string) error
	Cleared      []string
}

func (m *MockConversationStore) Retrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, userID, clientID)
	}
	return nil, nil
}

func (m *MockConversationStore) Clear(ctx context.Context, userID, clientID string) error {
	m.Cleared = append(m.Cleared, userID+"/"+clientID)
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, userID, clientID)
	}
	return nil
}

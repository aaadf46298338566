package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
)

// Synthesizer renders SSML to PCM through the text-to-speech service. The
// response body is raw audio; the codec rides in headers.
type Synthesizer struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewSynthesizer(cfg Config, log *zap.Logger) *Synthesizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Synthesizer{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type synthesizeRequest struct {
	SSML   string `json:"ssml"`
	Locale string `json:"locale"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, ssml, locale string) (*domain.AudioData, error) {
	payload, err := json.Marshal(synthesizeRequest{SSML: ssml, Locale: locale})
	if err != nil {
		return nil, fmt.Errorf("speech: marshal synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("speech: synthesize status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read audio: %w", err)
	}
	audio := &domain.AudioData{
		Codec:       resp.Header.Get("X-Audio-Codec"),
		CodecParams: resp.Header.Get("X-Audio-Codec-Params"),
		Data:        data,
	}
	if audio.Codec == "" {
		audio.Codec = "pcm"
	}
	s.log.Debug("Speech synthesis completed",
		zap.String("locale", locale),
		zap.Int("bytes", len(data)))
	return audio, nil
}

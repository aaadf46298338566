package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
)

// Recognizer posts canonical PCM to the speech-recognition service and
// returns the transcript alternates. The orchestrator bounds each call
// with its own timeout context.
type Recognizer struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewRecognizer(cfg Config, log *zap.Logger) *Recognizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Recognizer{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (r *Recognizer) Recognize(ctx context.Context, audio *domain.AudioData, locale string) (*domain.SpeechRecognitionResult, error) {
	target := r.baseURL + "/recognize?locale=" + url.QueryEscape(locale)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(audio.Data))
	if err != nil {
		return nil, fmt.Errorf("speech: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("X-Audio-Codec", audio.Codec)
	if audio.CodecParams != "" {
		httpReq.Header.Set("X-Audio-Codec-Params", audio.CodecParams)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speech: recognize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("speech: recognize status %d", resp.StatusCode)
	}

	var out domain.SpeechRecognitionResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("speech: decode result: %w", err)
	}
	r.log.Debug("Speech recognition completed",
		zap.String("locale", locale),
		zap.Int("alternates", len(out.Phrases)))
	return &out, nil
}

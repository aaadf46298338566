package understanding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/ports"
)

// Client calls the remote language-understanding classifier. An open
// breaker or transport failure surfaces as an error; the orchestrator
// degrades the turn to its fallback hypothesis.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "language-understanding",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		log:        log,
	}
}

type recognizeRequest struct {
	TraceID     string   `json:"traceId"`
	Locale      string   `json:"locale"`
	Utterances  []string `json:"utterances"`
	DomainScope []string `json:"domainScope,omitempty"`
	Flags       uint32   `json:"flags,omitempty"`
}

type recognizeResponse struct {
	Phrases []domain.RecognizedPhrase `json:"phrases"`
}

func (c *Client) Recognize(ctx context.Context, req *ports.UnderstandingRequest) ([]domain.RecognizedPhrase, error) {
	payload, err := json.Marshal(recognizeRequest{
		TraceID:     req.TraceID,
		Locale:      req.Locale,
		Utterances:  req.Utterances,
		DomainScope: req.DomainScope,
		Flags:       req.Flags,
	})
	if err != nil {
		return nil, fmt.Errorf("understanding: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("understanding: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("understanding: status %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := res.(*http.Response)
	defer resp.Body.Close()

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("understanding: decode response: %w", err)
	}
	c.log.Debug("Understanding call completed",
		zap.String("traceId", req.TraceID),
		zap.Int("phrases", len(out.Phrases)))
	return out.Phrases, nil
}

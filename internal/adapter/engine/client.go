package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/domain"
	"github.com/parlance-ai/parlance/internal/ports"
)

// Client talks to the dialog engine tier over its HTTP API. It implements
// both ports.DialogEngine and ports.ConversationStore, since the engine
// owns the per-user dialog state.
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
		timeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dialog-engine",
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

// processRequest is the wire form of one engine invocation.
type processRequest struct {
	TraceID           string                    `json:"traceId"`
	Hypotheses        []processHypothesis       `json:"hypotheses"`
	ClientContext     *domain.ClientContext     `json:"clientContext"`
	AuthLevel         int                       `json:"authLevel"`
	InputMethod       int                       `json:"inputMethod"`
	IsNewConversation bool                      `json:"isNewConversation"`
	Stack             *domain.ConversationStack `json:"conversationStack,omitempty"`
	EntityContext     []byte                    `json:"entityContext,omitempty"`
	EntityInput       []domain.EntityReference  `json:"entityInput,omitempty"`
	Utterance         string                    `json:"utterance,omitempty"`
	RequestData       map[string]string         `json:"requestData,omitempty"`
	Flags             uint32                    `json:"flags,omitempty"`
}

type processHypothesis struct {
	Result         *domain.RecoResult `json:"result"`
	DialogPriority int                `json:"dialogPriority,omitempty"`
}

// processResponse mirrors ports.EngineResponse on the wire.
type processResponse struct {
	ExecutionResult int `json:"executionResult"`

	ResponseText string `json:"responseText,omitempty"`
	ResponseSSML string `json:"responseSsml,omitempty"`
	ResponseHTML string `json:"responseHtml,omitempty"`
	ResponseURL  string `json:"responseUrl,omitempty"`
	URLScope     int    `json:"urlScope,omitempty"`

	ClientAction string            `json:"clientAction,omitempty"`
	ResponseData map[string]string `json:"responseData,omitempty"`

	SelectedRecoResult *domain.RecoResult `json:"selectedRecoResult,omitempty"`
	AugmentedQuery     string             `json:"augmentedQuery,omitempty"`

	ContinueImmediately         bool                    `json:"continueImmediately,omitempty"`
	ConversationLifetimeSeconds int                     `json:"conversationLifetimeSeconds,omitempty"`
	TriggerKeywords             []domain.TriggerKeyword `json:"triggerKeywords,omitempty"`

	CustomAudio         *domain.AudioData `json:"customAudio,omitempty"`
	CustomAudioOrdering int               `json:"customAudioOrdering,omitempty"`

	ErrorMessage          string `json:"errorMessage,omitempty"`
	IsRetrying            bool   `json:"isRetrying,omitempty"`
	SuggestedRetryDelayMs int64  `json:"suggestedRetryDelayMs,omitempty"`
}

func (c *Client) Process(ctx context.Context, req *ports.EngineRequest) (*ports.EngineResponse, error) {
	wire := processRequest{
		TraceID:           req.TraceID,
		ClientContext:     req.ClientContext,
		AuthLevel:         int(req.AuthLevel),
		InputMethod:       int(req.InputMethod),
		IsNewConversation: req.IsNewConversation,
		Stack:             req.ConversationStack,
		EntityContext:     req.EntityContext,
		EntityInput:       req.EntityInput,
		Utterance:         req.Utterance,
		RequestData:       req.RequestData,
		Flags:             req.Flags,
	}
	for _, h := range req.Hypotheses {
		wire.Hypotheses = append(wire.Hypotheses, processHypothesis{
			Result:         h.Result,
			DialogPriority: h.DialogPriority,
		})
	}

	var out processResponse
	if err := c.postJSON(ctx, "/process", &wire, &out); err != nil {
		return nil, &domain.EngineError{Message: "process call failed", Err: err}
	}
	return &ports.EngineResponse{
		ExecutionResult: domain.Result(out.ExecutionResult),

		ResponseText: out.ResponseText,
		ResponseSSML: out.ResponseSSML,
		ResponseHTML: out.ResponseHTML,
		ResponseURL:  out.ResponseURL,
		URLScope:     domain.URLScope(out.URLScope),

		ClientAction: out.ClientAction,
		ResponseData: out.ResponseData,

		SelectedRecoResult: out.SelectedRecoResult,
		AugmentedQuery:     out.AugmentedQuery,

		ContinueImmediately:         out.ContinueImmediately,
		ConversationLifetimeSeconds: out.ConversationLifetimeSeconds,
		TriggerKeywords:             out.TriggerKeywords,

		CustomAudio:         out.CustomAudio,
		CustomAudioOrdering: ports.AudioOrdering(out.CustomAudioOrdering),

		ErrorMessage:          out.ErrorMessage,
		IsRetrying:            out.IsRetrying,
		SuggestedRetryDelayMs: out.SuggestedRetryDelayMs,
	}, nil
}

func (c *Client) LoadedDomains(ctx context.Context) ([]string, error) {
	var out struct {
		Domains []string `json:"domains"`
	}
	if err := c.getJSON(ctx, "/domains", nil, &out); err != nil {
		return nil, err
	}
	return out.Domains, nil
}

// FetchPluginView retrieves a plugin-owned static asset, passing the
// conditional timestamp through. A nil asset means the plugin has no such
// file.
func (c *Client) FetchPluginView(ctx context.Context, pluginID, path string, ifModifiedSince *time.Time) (*ports.ViewAsset, error) {
	target := c.baseURL + "/views/" + url.PathEscape(pluginID) + "/" + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: create view request: %w", err)
	}
	if ifModifiedSince != nil {
		httpReq.Header.Set("If-Modified-Since", ifModifiedSince.UTC().Format(http.TimeFormat))
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: fetch view: %w", err)
	}
	resp := res.(*http.Response)
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return &ports.ViewAsset{NotModified: true}, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("engine: view fetch status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("engine: read view body: %w", err)
	}
	asset := &ports.ViewAsset{
		Data:     data,
		MimeType: resp.Header.Get("Content-Type"),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := time.Parse(http.TimeFormat, lm); err == nil {
			asset.LastModified = ts
		}
	}
	return asset, nil
}

// Retrieve loads the conversation stack the engine holds for this
// user/client pair. A 404 is a fresh conversation, not an error.
func (c *Client) Retrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	var out domain.ConversationStack
	err := c.getJSON(ctx, "/conversation?user="+url.QueryEscape(userID)+"&client="+url.QueryEscape(clientID), nil, &out)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Clear drops the engine-side conversation state for this pair.
func (c *Client) Clear(ctx context.Context, userID, clientID string) error {
	target := c.baseURL + "/conversation?user=" + url.QueryEscape(userID) + "&client=" + url.QueryEscape(clientID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("engine: create clear request: %w", err)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return fmt.Errorf("engine: clear conversation: %w", err)
	}
	resp := res.(*http.Response)
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("engine: clear status %d", resp.StatusCode)
	}
	return nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("engine: unexpected status %d", e.status)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("engine: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("engine: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *Client) getJSON(ctx context.Context, path string, _ interface{}, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("engine: create request: %w", err)
	}
	return c.do(httpReq, out)
}

func (c *Client) do(httpReq *http.Request, out interface{}) error {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker; 4xx is the caller's problem.
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, &statusError{status: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		return err
	}
	resp := res.(*http.Response)
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("engine: decode response: %w", err)
	}
	return nil
}

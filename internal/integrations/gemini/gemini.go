package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"

	// Generation parameters are fixed by the product, not user-tunable.
	temperature     = 0.7
	maxOutputTokens = 4000

	defaultMaxAttempts = 3
	retryBaseDelay     = 300 * time.Millisecond
)

// Request/response shapes for the generateContent endpoint. Only the
// fields this client relies on are declared.

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a well-formed error payload reported by the endpoint.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: api error %d: %s", e.Code, e.Message)
}

// HTTPStatusError captures non-2xx responses without a parseable error body.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Config holds the client settings injected from configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	// MaxAttempts bounds the retry loop; zero means the default.
	MaxAttempts int
}

// ChatModel implements eino's chat model contract against the Gemini
// generateContent REST endpoint. The endpoint has no system-role
// channel, so system turns are sent as leading user turns.
type ChatModel struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
}

// NewChatModel validates the config and returns a ready client.
func NewChatModel(cfg Config) (*ChatModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}

	m := &ChatModel{
		apiKey:      apiKey,
		model:       strings.TrimSpace(cfg.Model),
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient:  cfg.HTTPClient,
		maxAttempts: cfg.MaxAttempts,
	}
	if m.model == "" {
		m.model = defaultModel
	}
	if m.baseURL == "" {
		m.baseURL = defaultBaseURL
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = defaultMaxAttempts
	}
	return m, nil
}

// Generate sends the conversation and returns the assistant reply.
// A single logical attempt from the caller's perspective; transient
// transport failures and 429/5xx responses are retried with jitter
// inside the bounded loop.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	body, err := json.Marshal(generateRequest{
		Contents: toContents(input),
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	raw, err := m.doWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	var payload generateResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", decErr)
	}
	if payload.Error != nil {
		return nil, &APIError{Code: payload.Error.Code, Message: payload.Error.Message}
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini: no candidates in response")
	}

	return schema.AssistantMessage(payload.Candidates[0].Content.Parts[0].Text, nil), nil
}

// Stream satisfies the chat model contract by wrapping the single
// Generate result; the endpoint variant in use here is not streamed.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is required by the interface; tool calling is out of scope.
func (m *ChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("gemini: tool binding is not supported")
}

func (m *ChatModel) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", m.baseURL, m.model, url.QueryEscape(m.apiKey))
}

func (m *ChatModel) doWithRetry(ctx context.Context, body []byte) ([]byte, error) {
	endpoint := m.endpoint()

	var lastErr error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithJitter(ctx, attempt); err != nil {
				return nil, err
			}
		}

		raw, retryable, err := m.doOnce(ctx, endpoint, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("gemini: request failed after %d attempts: %w", m.maxAttempts, lastErr)
}

func (m *ChatModel) doOnce(ctx context.Context, endpoint string, body []byte) (raw []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, false, nil
	}

	retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500

	// Non-2xx bodies usually carry the structured error payload.
	var payload generateResponse
	if decErr := json.Unmarshal(raw, &payload); decErr == nil && payload.Error != nil {
		return nil, retryable, &APIError{Code: payload.Error.Code, Message: payload.Error.Message}
	}
	return nil, retryable, &HTTPStatusError{StatusCode: resp.StatusCode, URL: endpoint, Body: string(raw)}
}

func sleepWithJitter(ctx context.Context, attempt int) error {
	delay := retryBaseDelay << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(retryBaseDelay)))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// toContents maps eino messages onto the endpoint's role vocabulary:
// system and user turns become "user", assistant turns become "model".
func toContents(input []*schema.Message) []content {
	contents := make([]content, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		role := "user"
		if msg.Role == schema.Assistant {
			role = "model"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: msg.Content}},
		})
	}
	return contents
}

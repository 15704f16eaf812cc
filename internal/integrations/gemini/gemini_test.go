package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, srv *httptest.Server, maxAttempts int) *ChatModel {
	t.Helper()
	m, err := NewChatModel(Config{
		APIKey:      "test-key",
		Model:       "gemini-2.5-flash",
		BaseURL:     srv.URL,
		HTTPClient:  srv.Client(),
		MaxAttempts: maxAttempts,
	})
	require.NoError(t, err)
	return m
}

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}

func TestGenerateSuccess(t *testing.T) {
	var captured generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"괜찮아요, 정상 범위예요."}]}}]}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv, 1)
	reply, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("너는 신생아 육아 어시스턴트야"),
		schema.UserMessage("아기가 딸꾹질을 해요"),
		schema.AssistantMessage("딸꾹질은 흔한 일이에요", nil),
		schema.UserMessage("계속 하는데 괜찮나요?"),
	})
	require.NoError(t, err)
	require.Equal(t, schema.Assistant, reply.Role)
	require.Equal(t, "괜찮아요, 정상 범위예요.", reply.Content)

	// System turns ride the user role; assistant turns map to "model".
	require.Len(t, captured.Contents, 4)
	require.Equal(t, "user", captured.Contents[0].Role)
	require.Equal(t, "user", captured.Contents[1].Role)
	require.Equal(t, "model", captured.Contents[2].Role)
	require.Equal(t, "user", captured.Contents[3].Role)
	require.Equal(t, "계속 하는데 괜찮나요?", captured.Contents[3].Parts[0].Text)
	require.InDelta(t, 0.7, captured.GenerationConfig.Temperature, 0.0001)
	require.Equal(t, 4000, captured.GenerationConfig.MaxOutputTokens)
}

func TestGenerateAPIErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv, 1)
	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "API key not valid", apiErr.Message)
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv, 1)
	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no candidates")
}

func TestGenerateRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv, 2)
	reply, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	require.Equal(t, "ok", reply.Content)
	require.Equal(t, 2, calls)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := newTestModel(t, srv, 2)
	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
}

func TestBindToolsUnsupported(t *testing.T) {
	m, err := NewChatModel(Config{APIKey: "k"})
	require.NoError(t, err)
	require.Error(t, m.BindTools(nil))
}

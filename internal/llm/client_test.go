// internal/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"support-triage/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestClient(t *testing.T, baseURL string, maxRetries int, timeout time.Duration) *Client {
	return NewClient(&Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Timeout:     timeout,
		MaxRetries:  maxRetries,
		MaxTokens:   800,
		Temperature: 0.3,
	}, logger.NewTestLogger(t))
}

func completionResponse(text string) []byte {
	body, _ := json.Marshal(map[string]string{"text": text})
	return body
}

// ==========================
// Core Functionality Tests
// ==========================

func TestClient_Complete_Success(t *testing.T) {
	var gotPrompt string
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Prompt      string  `json:"prompt"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Prompt
		assert.Equal(t, 800, req.MaxTokens)

		w.Write(completionResponse("generated answer"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2, 5*time.Second)
	text, err := client.Complete(context.Background(), "classify this")

	require.NoError(t, err)
	assert.Equal(t, "generated answer", text)
	assert.Equal(t, "classify this", gotPrompt)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestClient_Complete_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(completionResponse("recovered"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2, 5*time.Second)
	text, err := client.Complete(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Complete_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2, 5*time.Second)
	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailed))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Complete_TimeoutMapsToErrTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(completionResponse("too late"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2, 20*time.Millisecond)
	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestClient_Complete_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(completionResponse("too late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := newTestClient(t, server.URL, 2, 5*time.Second)
	_, err := client.Complete(ctx, "prompt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

// staticResponseTransport returns a canned response regardless of context
// state, reproducing a call that completes just as the context expires.
type staticResponseTransport struct {
	body *closeTrackingBody
}

func (tr *staticResponseTransport) RoundTrip(_ *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       tr.body,
		Header:     make(http.Header),
	}, nil
}

type closeTrackingBody struct {
	io.Reader
	closed bool
}

func (b *closeTrackingBody) Close() error {
	b.closed = true
	return nil
}

func TestClient_Complete_ClosesBodyWhenContextExpiresAfterResponse(t *testing.T) {
	body := &closeTrackingBody{Reader: strings.NewReader(`{"text": "too late"}`)}
	client := newTestClient(t, "http://llm.internal", 0, 0)
	client.client.Transport = &staticResponseTransport{body: body}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "prompt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, body.closed)
}

// ==========================
// Edge Cases
// ==========================

func TestClient_Complete_MalformedResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0, 5*time.Second)
	_, err := client.Complete(context.Background(), "prompt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailed))
}

func TestClient_Complete_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(completionResponse("ok"))
	}))
	defer server.Close()

	client := NewClient(&Config{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	}, logger.NewTestLogger(t))

	_, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_Complete_RequestBodySentOnEveryAttempt(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		bodies = append(bodies, req.Prompt)
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(completionResponse("second try"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1, 5*time.Second)
	text, err := client.Complete(context.Background(), "same prompt")

	require.NoError(t, err)
	assert.Equal(t, "second try", text)
	assert.Equal(t, []string{"same prompt", "same prompt"}, bodies)
}

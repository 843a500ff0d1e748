package completion

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noWait(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c, err := New(Options{Endpoint: url + "/", APIKey: "secret", Model: "m1", MaxAttempts: 2, JSON: true}, zap.NewNop())
	require.NoError(t, err)
	c.wait = noWait
	return c
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_, _ = gz.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"basics\":{}} "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL).GenerateContent(context.Background(), "be strict", "resume text")
	require.NoError(t, err)
	assert.Equal(t, `{"basics":{}}`, out)

	assert.Equal(t, "m1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "resume text", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestGenerateContentRetriesServerErrorOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GenerateContent(context.Background(), "", "text")
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerateContentDoesNotRetryClientError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GenerateContent(context.Background(), "", "text")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateContentEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GenerateContent(context.Background(), "", "text")
	require.Error(t, err)
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(Options{}, nil)
	require.Error(t, err)

	c, err := New(Options{APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
	assert.Equal(t, defaultModel, c.Model())
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, retryAfter("5"))
	assert.Zero(t, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, retryAfter(""))
}

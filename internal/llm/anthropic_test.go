package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropicClient(t *testing.T) {
	_, err := newAnthropicClient(Config{})
	require.Error(t, err)

	client, err := newAnthropicClient(Config{APIKey: "k", Model: "claude-opus-4-1"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-opus-4-1", client.Engine())
	assert.Equal(t, defaultMaxTokens, client.maxTokens)
	assert.InDelta(t, defaultTemperature, client.temperature, 1e-9)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","content":[{"type":"text","text":"{\"a\":"},{"type":"tool_use"},{"type":"text","text":"1}"}]}`))
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{System: "auditor", Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
	assert.Equal(t, "auditor", captured["system"])
	assert.EqualValues(t, defaultMaxTokens, captured["max_tokens"])
}

func TestAnthropicClient_Errors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
		}))
		defer server.Close()

		client, err := newAnthropicClient(Config{APIKey: "k", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), Request{Prompt: "x"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.False(t, apiErr.Temporary())
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"content":[]}`))
		}))
		defer server.Close()

		client, err := newAnthropicClient(Config{APIKey: "k", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.Complete(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no content in response")
	})
}

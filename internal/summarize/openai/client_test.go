package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize"
)

func TestGenerateSendsPrompt(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Summary text"}}]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "sk-test", Temperature: DefaultTemperature}, srv.Client())
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), summarize.Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "Summary text", out)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "sys"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "usr"}, got.Messages[1])
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status int
		body   string
	}{
		"api error":    {http.StatusOK, `{"error":{"message":"bad key"}}`},
		"status only":  {http.StatusTooManyRequests, `rate limited`},
		"no choices":   {http.StatusOK, `{"choices":[]}`},
		"server error": {http.StatusInternalServerError, `{"choices":[{"message":{"content":"x"}}]}`},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			c, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, srv.Client())
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), summarize.Prompt{})
			require.Error(t, err)
		})
	}
}

func TestGenerateNoChoicesIsEmptyResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), summarize.Prompt{})
	assert.True(t, errors.Is(err, summarize.ErrEmptyResponse))
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}

package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSendsConfiguredSampling(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c, err := NewChatter(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		MaxTokens:   64,
		Temperature: 0.9,
	})
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), "sys", "user")
	require.NoError(t, err)

	assert.Equal(t, float64(64), body["max_tokens"])
	assert.Equal(t, 0.9, body["temperature"])
	assert.Equal(t, "sys", body["system"])
}

func TestNewChatterDefaultsMaxTokens(t *testing.T) {
	c, err := NewChatter(Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
}

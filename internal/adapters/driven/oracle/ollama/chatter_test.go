package ollama

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
		w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	c := NewChatter(Config{
		BaseURL:     srv.URL,
		MaxTokens:   64,
		Temperature: 0.9,
	})

	_, err := c.Chat(context.Background(), "sys", "user")
	require.NoError(t, err)

	opts, ok := body["options"].(map[string]any)
	require.True(t, ok, "request carries an options object")
	assert.Equal(t, float64(64), opts["num_predict"])
	assert.Equal(t, 0.9, opts["temperature"])
}

func TestNewChatterDefaultsMaxTokens(t *testing.T) {
	c := NewChatter(Config{})
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediascribe-backend/internal/domain"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:8b", req.Model)
		assert.Equal(t, "summarize this", req.Prompt)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(map[string]string{"response": "a summary"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.1:8b")
	reply, err := c.Generate(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.Equal(t, "a summary", reply)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("empty response body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"response": ""})
		}))
		defer srv.Close()

		c := NewOllamaClient(srv.URL, "llama3.1:8b")
		_, err := c.Generate(context.Background(), "prompt")
		assert.ErrorIs(t, err, domain.ErrExternalCall)
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewOllamaClient(srv.URL, "llama3.1:8b")
		_, err := c.Generate(context.Background(), "prompt")
		assert.ErrorIs(t, err, domain.ErrExternalCall)
	})
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"scores": []}`, Done: true, DoneReason: "stop"})
	}))
	defer srv.Close()

	c := NewOllamaClient(WithBaseURL(srv.URL+"/"), WithModel("mistral"))
	assert.Equal(t, "mistral", c.Model())

	out, err := c.Generate(context.Background(), "score these", GenerateOptions{MaxTokens: 64, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"scores": []}`, out)

	assert.Equal(t, "mistral", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 0, got.Options["temperature"], "zero temperature is sent")
	assert.EqualValues(t, 64, got.Options["num_predict"])
}

func TestOllamaClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "long" {
			json.NewEncoder(w).Encode(ollamaResponse{Response: "{", Done: true, DoneReason: "length", EvalCount: 8})
			return
		}
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(WithBaseURL(srv.URL))

	_, err := c.Generate(context.Background(), "x", GenerateOptions{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = c.Generate(context.Background(), "long", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

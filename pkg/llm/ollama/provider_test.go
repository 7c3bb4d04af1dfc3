package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/pkg/llm"
)

func TestChat_SendsOptionsAndParsesReply(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "Section 80C allows ₹1.5 lakh."}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3")
	out, err := p.Generate(context.Background(), "80C limit?", llm.WithMaxTokens(64), llm.WithTemperature(0.1))
	require.NoError(t, err)

	assert.Equal(t, "Section 80C allows ₹1.5 lakh.", out)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 64, got.Options.NumPredict)
	assert.InDelta(t, 0.1, got.Options.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestChat_ErrorStatusAndEmptyReply(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  "}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	_, err := p.Generate(context.Background(), "hi")
	assert.ErrorContains(t, err, "status 500")

	status = http.StatusOK
	_, err = p.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	assert.NoError(t, NewOllamaProvider(srv.URL, "llama3").Ping(context.Background()))
	assert.Error(t, NewOllamaProvider(srv.URL, "mistral").Ping(context.Background()))
	assert.NoError(t, llm.Probe(context.Background(), NewOllamaProvider(srv.URL, "llama3")))
}

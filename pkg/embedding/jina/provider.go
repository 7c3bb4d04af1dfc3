package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"wealthadvisor-ai/pkg/embedding"
)

type JinaProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ embedding.Provider = &JinaProvider{}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewJinaProvider(apiKey string) *JinaProvider {
	return &JinaProvider{
		apiKey:  apiKey,
		baseURL: "https://api.jina.ai/v1/embeddings",
		model:   "jina-embeddings-v2-base-en",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *JinaProvider) WithBaseURL(url string) *JinaProvider {
	p.baseURL = url
	return p
}

func (p *JinaProvider) Name() string {
	return "jina/" + p.model
}

func (p *JinaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *JinaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonData, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var jinaResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if jinaResp.Error != nil {
		return nil, fmt.Errorf("jina api returned error: %s", jinaResp.Error.Message)
	}

	if len(jinaResp.Data) != len(texts) {
		return nil, fmt.Errorf("jina returned %d embeddings for %d inputs", len(jinaResp.Data), len(texts))
	}

	// The API reports an index per item; order by it rather than trusting response order.
	sort.Slice(jinaResp.Data, func(i, j int) bool { return jinaResp.Data[i].Index < jinaResp.Data[j].Index })

	out := make([][]float32, len(texts))
	for i, d := range jinaResp.Data {
		out[i] = embedding.Normalize(d.Embedding)
	}
	return out, nil
}

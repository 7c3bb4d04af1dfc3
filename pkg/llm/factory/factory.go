package factory

import (
	"fmt"

	"wealthadvisor-ai/pkg/llm"
	"wealthadvisor-ai/pkg/llm/huggingface"
	"wealthadvisor-ai/pkg/llm/ollama"
)

type Settings struct {
	Provider    string // "ollama" or "huggingface"
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

func NewLLMProvider(s Settings) (llm.LLMProvider, error) {
	switch s.Provider {
	case "ollama", "":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		p := ollama.NewOllamaProvider(baseURL, s.Model)
		if s.Temperature > 0 {
			p.Temperature = s.Temperature
		}
		return p, nil
	case "huggingface":
		if s.APIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(s.APIKey, s.BaseURL, s.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}

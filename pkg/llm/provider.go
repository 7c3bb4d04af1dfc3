package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// Pinger is implemented by providers that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe checks that p is usable: Ping when available, else a one-word generation.
func Probe(ctx context.Context, p LLMProvider) error {
	if p == nil {
		return ErrNoProvider
	}
	if pinger, ok := p.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	_, err := p.Generate(ctx, "Reply with OK.", WithMaxTokens(2))
	return err
}

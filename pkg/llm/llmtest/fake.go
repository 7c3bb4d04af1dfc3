// Package llmtest provides a scripted LLMProvider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"wealthadvisor-ai/pkg/llm"
)

// Fake answers from Reply (or Replies, matched by prompt substring) and records every prompt.
// When Hold is set each call first reports its prompt on Started (if set) and
// then waits for a value on Hold or for ctx to end.
type Fake struct {
	mu      sync.Mutex
	Reply   string
	Replies map[string]string
	Err     error
	Prompts []string

	Started chan<- string
	Hold    <-chan struct{}
}

var _ llm.LLMProvider = &Fake{}

func (f *Fake) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return f.Generate(ctx, b.String(), options...)
}

func (f *Fake) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	started, hold := f.Started, f.Hold
	f.mu.Unlock()

	if started != nil {
		started <- prompt
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Err != nil {
		return "", f.Err
	}
	for needle, reply := range f.Replies {
		if strings.Contains(prompt, needle) {
			return reply, nil
		}
	}
	return f.Reply, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

func (f *Fake) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Prompts) == 0 {
		return ""
	}
	return f.Prompts[len(f.Prompts)-1]
}

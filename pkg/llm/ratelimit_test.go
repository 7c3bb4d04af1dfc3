package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/pkg/llm"
	"wealthadvisor-ai/pkg/llm/llmtest"
)

func TestRateLimited_DisabledReturnsProvider(t *testing.T) {
	f := &llmtest.Fake{Reply: "ok"}
	assert.Same(t, llm.LLMProvider(f), llm.NewRateLimited(f, 0, 1))
}

func TestRateLimited_HonoursContext(t *testing.T) {
	f := &llmtest.Fake{Reply: "ok"}
	p := llm.NewRateLimited(f, 0.001, 1)

	out, err := p.Generate(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Generate(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, f.Calls())
}

func TestProbe_FallsBackToGenerate(t *testing.T) {
	f := &llmtest.Fake{Reply: "OK"}
	require.NoError(t, llm.Probe(context.Background(), f))
	assert.Equal(t, 1, f.Calls())
	assert.ErrorIs(t, llm.Probe(context.Background(), nil), llm.ErrNoProvider)
}

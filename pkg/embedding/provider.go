package embedding

import "context"

// Provider turns text into dense vectors. Implementations must be safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

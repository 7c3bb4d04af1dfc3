package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Retriever is what the orchestrator queries. Holder serves it from a local
// index; other backends (e.g. pgvector) can implement it too.
type Retriever interface {
	Retrieve(ctx context.Context, query []float32, p Params) ([]Result, error)
	Ready() bool
}

// CorpusFunc produces the chunks to embed when a rebuild is needed.
type CorpusFunc func() ([]Chunk, error)

// Holder serves the current index through an atomic pointer. Rebuilds run on
// a private Index and are swapped in only after they succeed; at most one
// rebuild runs at a time.
type Holder struct {
	dir     string
	current atomic.Pointer[Index]
	buildMu sync.Mutex
	log     *zap.Logger
}

var _ Retriever = (*Holder)(nil)

func NewHolder(dir string, log *zap.Logger) *Holder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Holder{dir: dir, log: log.Named("vectorindex")}
}

func (h *Holder) Current() (*Index, bool) {
	ix := h.current.Load()
	return ix, ix != nil
}

func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

func (h *Holder) Retrieve(ctx context.Context, query []float32, p Params) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix := h.current.Load()
	if ix == nil {
		return nil, ErrNotReady
	}
	return ix.Retrieve(query, p)
}

// LoadOrBuild takes the fast path (load from disk) unless force is set or
// the persisted index is missing or unreadable, in which case the corpus is
// embedded, persisted and swapped in.
func (h *Holder) LoadOrBuild(ctx context.Context, corpus CorpusFunc, emb Embedder, force bool) (*Index, error) {
	if !force {
		ix, err := Load(h.dir)
		if err == nil {
			h.current.Store(ix)
			h.log.Info("index loaded from disk", zap.String("dir", h.dir), zap.Int("vectors", ix.Len()))
			return ix, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			h.log.Info("no persisted index, building", zap.String("dir", h.dir))
		} else {
			h.log.Warn("failed to load existing index, rebuilding", zap.String("dir", h.dir), zap.Error(err))
		}
	}
	return h.Rebuild(ctx, corpus, emb)
}

func (h *Holder) Rebuild(ctx context.Context, corpus CorpusFunc, emb Embedder) (*Index, error) {
	h.buildMu.Lock()
	defer h.buildMu.Unlock()

	chunks, err := corpus()
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	h.log.Info("building index", zap.Int("chunks", len(chunks)))

	ix, err := Build(ctx, chunks, emb)
	if err != nil {
		return nil, err
	}
	if err := ix.Save(h.dir); err != nil {
		// The freshly built index is still valid in memory.
		h.log.Error("failed to persist index", zap.String("dir", h.dir), zap.Error(err))
	}
	h.current.Store(ix)
	h.log.Info("index built and swapped in", zap.Int("vectors", ix.Len()), zap.Int("dim", ix.Dim()))
	return ix, nil
}

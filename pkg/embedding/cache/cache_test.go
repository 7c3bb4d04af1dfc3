package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

type fakeProvider struct {
	calls      atomic.Int64
	batchCalls atomic.Int64
	fixed      []float32
	err        error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) vector(text string) []float32 {
	if f.fixed != nil {
		return append([]float32(nil), f.fixed...)
	}
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, 8)
	for i := range v {
		v[i] = float32(sum[i]) / 255
	}
	return v
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls.Add(1)
	f.calls.Add(int64(len(texts)))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func newTestCache(t *testing.T, p *fakeProvider, opts ...Option) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), p, zap.NewNop(), opts...)
	require.NoError(t, err)
	return c
}

func TestEmbedQuery_MissThenHit(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(t, p)
	ctx := context.Background()

	first, err := c.EmbedQuery(ctx, "What is the 80C limit?")
	require.NoError(t, err)
	second, err := c.EmbedQuery(ctx, "What is the 80C limit?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, p.calls.Load())

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 2, stats.TotalRequests)
	assert.Equal(t, 50.0, stats.HitRatePct)
}

func TestEmbedQuery_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{}
	c1, err := New(dir, p, nil)
	require.NoError(t, err)
	v1, err := c1.EmbedQuery(context.Background(), "sip vs lumpsum")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, Key("sip vs lumpsum")[:2], Key("sip vs lumpsum")+".vec"))
	require.NoError(t, err)

	p2 := &fakeProvider{err: errors.New("must not be called")}
	c2, err := New(dir, p2, nil)
	require.NoError(t, err)
	v2, err := c2.EmbedQuery(context.Background(), "sip vs lumpsum")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Zero(t, p2.calls.Load())
}

func TestEmbedQuery_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{}
	c, err := New(dir, p, nil)
	require.NoError(t, err)

	key := Key("emergency fund")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, key[:2]), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, key[:2], key+".vec"), []byte("garbage"), 0o644))

	v, err := c.EmbedQuery(context.Background(), "emergency fund")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.EqualValues(t, 1, p.calls.Load())
	assert.EqualValues(t, 1, c.Stats().Misses)

	// The bad entry was overwritten.
	_, err = c.EmbedQuery(context.Background(), "emergency fund")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestEmbedQuery_ProviderErrorPropagates(t *testing.T) {
	c := newTestCache(t, &fakeProvider{err: errors.New("model down")})
	_, err := c.EmbedQuery(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model down")
}

func TestEmbedQuery_ConcurrentMissesCoalesce(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.EmbedQuery(context.Background(), "same text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.calls.Load(), int64(16))
	assert.EqualValues(t, 16, c.Stats().TotalRequests)
}

func TestEmbedDocuments_BatchesOnlyMisses(t *testing.T) {
	p := &fakeProvider{}
	c := newTestCache(t, p)
	ctx := context.Background()

	_, err := c.EmbedQuery(ctx, "b")
	require.NoError(t, err)

	out, err := c.EmbedDocuments(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, p.vector("a"), out[0])
	assert.Equal(t, p.vector("b"), out[1])
	assert.Equal(t, p.vector("c"), out[2])

	assert.EqualValues(t, 1, p.batchCalls.Load())
	assert.EqualValues(t, 3, p.calls.Load()) // "b" once via query, "a" and "c" in the batch

	again, err := c.EmbedDocuments(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.EqualValues(t, 1, p.batchCalls.Load())
}

func TestRedisTier_SharedAcrossDisks(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p1 := &fakeProvider{}
	c1 := newTestCache(t, p1, WithRedis(client, 0))
	v1, err := c1.EmbedQuery(context.Background(), "gst on gold")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisKeyPrefix+Key("gst on gold")))

	p2 := &fakeProvider{err: errors.New("must not be called")}
	c2 := newTestCache(t, p2, WithRedis(client, 0))
	v2, err := c2.EmbedQuery(context.Background(), "gst on gold")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, c2.Stats().Hits)
}

func TestRedisTier_OutageIsMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	p := &fakeProvider{}
	c := newTestCache(t, p, WithRedis(client, 0))
	v, err := c.EmbedQuery(context.Background(), "ppf lock-in")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.EqualValues(t, 1, p.calls.Load())
}

type countingObserver struct{ hits, misses atomic.Int64 }

func (o *countingObserver) ObserveCache(hit bool) {
	if hit {
		o.hits.Add(1)
	} else {
		o.misses.Add(1)
	}
}

func TestObserverSeesOutcomes(t *testing.T) {
	obs := &countingObserver{}
	c := newTestCache(t, &fakeProvider{}, WithObserver(obs))
	for i := 0; i < 3; i++ {
		_, err := c.EmbedQuery(context.Background(), "nps tier 1")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, obs.hits.Load())
	assert.EqualValues(t, 1, obs.misses.Load())
}

func TestCachedVectorIsBitIdentical(t *testing.T) {
	parent := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		bits := rapid.SliceOfN(rapid.Uint32(), 1, 64).Draw(rt, "bits")
		text := rapid.String().Draw(rt, "text")

		want := make([]float32, len(bits))
		for i, b := range bits {
			want[i] = math.Float32frombits(b)
		}

		dir, err := os.MkdirTemp(parent, "prop")
		if err != nil {
			rt.Fatalf("temp dir: %v", err)
		}
		p := &fakeProvider{fixed: want}
		c, err := New(dir, p, nil)
		if err != nil {
			rt.Fatalf("new cache: %v", err)
		}

		first, err := c.EmbedQuery(context.Background(), text)
		if err != nil {
			rt.Fatalf("first: %v", err)
		}
		second, err := c.EmbedQuery(context.Background(), text)
		if err != nil {
			rt.Fatalf("second: %v", err)
		}
		if p.calls.Load() != 1 {
			rt.Fatalf("provider called %d times", p.calls.Load())
		}
		for i := range want {
			if math.Float32bits(first[i]) != bits[i] || math.Float32bits(second[i]) != bits[i] {
				rt.Fatalf("index %d differs", i)
			}
		}
	})
}

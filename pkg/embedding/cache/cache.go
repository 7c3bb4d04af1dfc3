// Package cache wraps an embedding provider with a content-addressed store.
//
// Vectors live on disk under <dir>/<first two hex chars>/<sha256>.vec and,
// when a Redis client is attached, in a shared second tier. Lookup order is
// disk, then Redis, then the provider. Every storage error is logged and
// treated as a miss; the provider is the only thing that can fail a call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wealthadvisor-ai/pkg/embedding"
)

var vecMagic = [4]byte{'E', 'V', 'C', '1'}

const redisKeyPrefix = "emb:"

type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	TotalRequests int64   `json:"total_requests"`
	HitRatePct    float64 `json:"hit_rate_pct"`
	TotalSavedMs  float64 `json:"total_saved_ms"`
}

// Observer is notified of every lookup outcome. Used by the metrics collector.
type Observer interface {
	ObserveCache(hit bool)
}

type Cache struct {
	dir      string
	provider embedding.Provider
	log      *zap.Logger

	redis    *redis.Client
	redisTTL time.Duration
	observer Observer

	group singleflight.Group

	hits          atomic.Int64
	misses        atomic.Int64
	computed      atomic.Int64 // texts embedded by the provider
	computedNanos atomic.Int64
	savedNanos    atomic.Int64
}

type Option func(*Cache)

// WithRedis enables the shared tier. A zero ttl keeps entries forever.
func WithRedis(client *redis.Client, ttl time.Duration) Option {
	return func(c *Cache) {
		c.redis = client
		c.redisTTL = ttl
	}
}

func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

func New(dir string, provider embedding.Provider, log *zap.Logger, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create embedding cache dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cache{dir: dir, provider: provider, log: log.Named("embedding_cache")}
	for _, opt := range opts {
		opt(c)
	}
	c.log.Info("embedding cache ready",
		zap.String("dir", dir),
		zap.String("provider", provider.Name()),
		zap.Bool("redis", c.redis != nil))
	return c, nil
}

// Key is the hex SHA-256 of the raw UTF-8 text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+".vec")
}

func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := c.Lookup(ctx, text)
	return vec, err
}

// Lookup is EmbedQuery that also reports whether the vector came from a cache tier.
func (c *Cache) Lookup(ctx context.Context, text string) ([]float32, bool, error) {
	key := Key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		c.recordHit()
		return vec, true, nil
	}
	c.recordMiss()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have stored it while we waited.
		if vec, ok := c.readDisk(key); ok {
			return vec, nil
		}
		start := time.Now()
		vec, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.recordCompute(1, time.Since(start))
		c.store(ctx, key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("embed query: %w", err)
	}
	return clone(v.([]float32)), false, nil
}

// EmbedDocuments resolves hits first and sends the remaining texts to the
// provider as a single batch. Output order matches input order.
func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if vec, ok := c.lookup(ctx, Key(t)); ok {
			c.recordHit()
			out[i] = vec
			continue
		}
		c.recordMiss()
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	start := time.Now()
	vecs, err := c.provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embed documents: provider returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	c.recordCompute(len(missTexts), time.Since(start))
	c.log.Debug("batch embedded", zap.Int("count", len(missTexts)), zap.Duration("elapsed", time.Since(start)))

	for j, idx := range missIdx {
		c.store(ctx, Key(missTexts[j]), vecs[j])
		out[idx] = vecs[j]
	}
	return out, nil
}

func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = math.Round(float64(hits)/float64(total)*1000) / 10
	}
	return Stats{
		Hits:          hits,
		Misses:        misses,
		TotalRequests: total,
		HitRatePct:    rate,
		TotalSavedMs:  math.Round(float64(c.savedNanos.Load())/1e4) / 100,
	}
}

func (c *Cache) recordHit() {
	c.hits.Add(1)
	// A hit saves roughly what an average provider call costs.
	if n := c.computed.Load(); n > 0 {
		c.savedNanos.Add(c.computedNanos.Load() / n)
	}
	if c.observer != nil {
		c.observer.ObserveCache(true)
	}
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	if c.observer != nil {
		c.observer.ObserveCache(false)
	}
}

func (c *Cache) recordCompute(n int, elapsed time.Duration) {
	c.computed.Add(int64(n))
	c.computedNanos.Add(int64(elapsed))
}

func (c *Cache) lookup(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.readDisk(key); ok {
		return vec, true
	}
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("redis read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	vec, err := decode(raw)
	if err != nil {
		c.log.Warn("redis entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.writeDisk(key, raw)
	return vec, true
}

func (c *Cache) store(ctx context.Context, key string, vec []float32) {
	raw := encode(vec)
	c.writeDisk(key, raw)
	if c.redis != nil {
		if err := c.redis.Set(ctx, redisKeyPrefix+key, raw, c.redisTTL).Err(); err != nil {
			c.log.Warn("redis write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *Cache) readDisk(key string) ([]float32, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn("cache read error", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	vec, err := decode(raw)
	if err != nil {
		c.log.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *Cache) writeDisk(key string, raw []byte) {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		c.log.Warn("cache write error", zap.String("key", key), zap.Error(err))
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), key+".*.tmp")
	if err != nil {
		c.log.Warn("cache write error", zap.String("key", key), zap.Error(err))
		return
	}
	_, werr := tmp.Write(raw)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		c.log.Warn("cache write error", zap.String("key", key), zap.Error(errors.Join(werr, cerr)))
		return
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		c.log.Warn("cache write error", zap.String("key", key), zap.Error(err))
	}
}

func encode(vec []float32) []byte {
	buf := make([]byte, 8+4*len(vec))
	copy(buf, vecMagic[:])
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(v))
	}
	return buf
}

func decode(raw []byte) ([]float32, error) {
	if len(raw) < 8 || [4]byte(raw[:4]) != vecMagic {
		return nil, errors.New("bad header")
	}
	dim := int(binary.LittleEndian.Uint32(raw[4:]))
	if len(raw) != 8+4*dim {
		return nil, fmt.Errorf("length %d does not match dim %d", len(raw), dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[8+4*i:]))
	}
	return vec, nil
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

package evaluation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/utils"
)

const DefaultWindow = 1000

type Latency struct {
	EmbedMs         float64 `json:"embed_ms"`
	RetrieveMs      float64 `json:"retrieve_ms"`
	LLMMs           float64 `json:"llm_ms"`
	TotalMs         float64 `json:"total_ms"`
	CachedEmbedding bool    `json:"cached_embedding"`
}

// Observation is everything known about one served query.
type Observation struct {
	Query           string
	SessionID       string
	Intent          string
	RetrievedTitles []string
	RelevantTitles  []string
	Answer          string
	Reference       string
	ContextChunks   []string
	Latency         Latency
}

type RetrievalScores struct {
	PrecisionAtK   float64 `json:"p@4"`
	RecallAtK      float64 `json:"r@4"`
	F1AtK          float64 `json:"f1@4"`
	ReciprocalRank float64 `json:"mrr"`
	NDCGAtK        float64 `json:"ndcg@4"`
	HitRate        float64 `json:"hit_rate"`
}

type ResponseScores struct {
	BLEU1        *float64 `json:"bleu_1,omitempty"`
	RougeL       *float64 `json:"rouge_l,omitempty"`
	Faithfulness float64  `json:"faithfulness"`
}

// Record is also the JSONL log line.
type Record struct {
	Timestamp float64          `json:"timestamp"`
	SessionID string           `json:"session_id"`
	Intent    string           `json:"intent"`
	Retrieval *RetrievalScores `json:"retrieval,omitempty"`
	Response  ResponseScores   `json:"response"`
	Latency   Latency          `json:"latency"`
}

// Score computes the metrics for o. Retrieval metrics need ground truth and
// reference metrics need a reference answer.
func Score(o Observation, now time.Time) Record {
	rec := Record{
		Timestamp: float64(now.UnixNano()) / 1e9,
		SessionID: o.SessionID,
		Intent:    o.Intent,
		Latency:   o.Latency,
		Response:  ResponseScores{Faithfulness: Faithfulness(o.Answer, o.ContextChunks)},
	}
	if len(o.RelevantTitles) > 0 {
		e := RetrievalEval{Retrieved: o.RetrievedTitles, Relevant: o.RelevantTitles, K: DefaultK}
		rec.Retrieval = &RetrievalScores{
			PrecisionAtK:   e.PrecisionAtK(),
			RecallAtK:      e.RecallAtK(),
			F1AtK:          e.F1AtK(),
			ReciprocalRank: e.ReciprocalRank(),
			NDCGAtK:        e.NDCGAtK(),
			HitRate:        e.HitRate(),
		}
	}
	if o.Reference != "" {
		b, r := BLEU1(o.Answer, o.Reference), RougeL(o.Answer, o.Reference)
		rec.Response.BLEU1, rec.Response.RougeL = &b, &r
	}
	return rec
}

type StoreOption func(*Store)

func WithLogPath(path string) StoreOption {
	return func(s *Store) { s.logPath = path }
}

func WithCollector(c *Collector) StoreOption {
	return func(s *Store) { s.collector = c }
}

func WithWindow(n int) StoreOption {
	return func(s *Store) { s.window = n }
}

// Store keeps the most recent records in memory and appends every record to
// an optional JSONL log.
type Store struct {
	mu        sync.Mutex
	records   *utils.Ring[Record]
	total     int64
	window    int
	logPath   string
	collector *Collector
	now       func() time.Time
	log       *zap.Logger
}

func NewStore(log *zap.Logger, opts ...StoreOption) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{window: DefaultWindow, now: time.Now, log: log.Named("evaluation")}
	for _, opt := range opts {
		opt(s)
	}
	s.records = utils.NewRing[Record](s.window)
	return s
}

func (s *Store) Collector() *Collector { return s.collector }

func (s *Store) Record(o Observation) Record {
	rec := Score(o, s.now())

	s.mu.Lock()
	s.records.Push(rec)
	s.total++
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.observeLatency(o.Latency)
	}
	s.appendLog(rec)

	fields := []zap.Field{
		zap.String("intent", rec.Intent),
		zap.Float64("faithfulness", rec.Response.Faithfulness),
		zap.Float64("total_ms", rec.Latency.TotalMs),
	}
	if rec.Retrieval != nil {
		fields = append(fields, zap.Float64("f1@4", rec.Retrieval.F1AtK))
	}
	s.log.Debug("evaluation recorded", fields...)
	return rec
}

func (s *Store) appendLog(rec Record) {
	if s.logPath == "" {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("failed to encode metrics record", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.logPath), 0o755); err != nil {
		s.log.Warn("failed to write metrics log", zap.Error(err))
		return
	}
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn("failed to write metrics log", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.log.Warn("failed to write metrics log", zap.Error(err))
	}
}

type RetrievalAggregate struct {
	PrecisionAtK float64 `json:"precision_at_4"`
	RecallAtK    float64 `json:"recall_at_4"`
	F1AtK        float64 `json:"f1_at_4"`
	MRR          float64 `json:"mrr"`
	NDCGAtK      float64 `json:"ndcg_at_4"`
	HitRate      float64 `json:"hit_rate"`
	SampleCount  int     `json:"sample_count"`
}

type ResponseAggregate struct {
	Faithfulness float64 `json:"faithfulness"`
	SampleCount  int     `json:"sample_count"`
}

type LatencyAggregate struct {
	EmbedAvg             float64 `json:"embed_avg"`
	RetrieveAvg          float64 `json:"retrieve_avg"`
	LLMAvg               float64 `json:"llm_avg"`
	TotalAvg             float64 `json:"total_avg"`
	CachedEmbeddingCount int     `json:"cached_embedding_count"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
}

type Aggregate struct {
	TotalQueries       int64              `json:"total_queries"`
	WindowSize         int                `json:"window_size"`
	Retrieval          RetrievalAggregate `json:"retrieval"`
	Response           ResponseAggregate  `json:"response"`
	LatencyMs          LatencyAggregate   `json:"latency_ms"`
	IntentDistribution map[string]int     `json:"intent_distribution"`
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) { m.sum += v; m.n++ }

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return round4(m.sum / float64(m.n))
}

// Aggregate averages the rolling window. TotalQueries counts every record
// since start, not only the ones still in the window.
func (s *Store) Aggregate() Aggregate {
	s.mu.Lock()
	items := s.records.Items()
	total := s.total
	s.mu.Unlock()

	agg := Aggregate{TotalQueries: total, WindowSize: len(items), IntentDistribution: map[string]int{}}
	var p, r, f1, mrr, ndcg, hit, faith, embed, retrieve, llm, tot mean
	cached := 0
	for _, rec := range items {
		agg.IntentDistribution[rec.Intent]++
		if rs := rec.Retrieval; rs != nil {
			p.add(rs.PrecisionAtK)
			r.add(rs.RecallAtK)
			f1.add(rs.F1AtK)
			mrr.add(rs.ReciprocalRank)
			ndcg.add(rs.NDCGAtK)
			hit.add(rs.HitRate)
		}
		faith.add(rec.Response.Faithfulness)
		embed.add(rec.Latency.EmbedMs)
		retrieve.add(rec.Latency.RetrieveMs)
		llm.add(rec.Latency.LLMMs)
		tot.add(rec.Latency.TotalMs)
		if rec.Latency.CachedEmbedding {
			cached++
		}
	}

	agg.Retrieval = RetrievalAggregate{
		PrecisionAtK: p.value(), RecallAtK: r.value(), F1AtK: f1.value(),
		MRR: mrr.value(), NDCGAtK: ndcg.value(), HitRate: hit.value(), SampleCount: p.n,
	}
	agg.Response = ResponseAggregate{Faithfulness: faith.value(), SampleCount: faith.n}
	agg.LatencyMs = LatencyAggregate{
		EmbedAvg: embed.value(), RetrieveAvg: retrieve.value(), LLMAvg: llm.value(), TotalAvg: tot.value(),
		CachedEmbeddingCount: cached,
	}
	if len(items) > 0 {
		agg.LatencyMs.CacheHitRate = round4(float64(cached) / float64(len(items)))
	}
	return agg
}

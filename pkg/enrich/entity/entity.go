// Package entity extracts financial entities (tickers, tax terms, accounts,
// amounts, periods) from a question.
package entity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wealthadvisor-ai/pkg/llm"
)

const (
	TypeStock      = "stock"
	TypeCrypto     = "crypto"
	TypeTaxTerm    = "tax_term"
	TypeAccount    = "account"
	TypeAmount     = "amount"
	TypeTimePeriod = "time_period"
	TypeFund       = "fund"

	MethodModel     = "model"
	MethodGazetteer = "regex_gazetteer"
)

var Types = []string{TypeStock, TypeCrypto, TypeTaxTerm, TypeAccount, TypeAmount, TypeTimePeriod, TypeFund}

type Entity struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Canonical string `json:"canonical,omitempty"`
}

type Result struct {
	Entities []Entity `json:"entities"`
	// EntityMap lists surface forms per type in discovery order.
	EntityMap map[string][]string `json:"entity_map"`
	Method    string              `json:"method"`
}

func (r Result) Empty() bool {
	return len(r.Entities) == 0
}

// Terms returns every surface form and canonical name, lower-cased and
// deduplicated. Used to favour chunks that mention them.
func (r Result) Terms() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, e := range r.Entities {
		add(e.Text)
		add(e.Canonical)
	}
	return out
}

// Mentions counts how many of Terms appear as whole words in text.
func (r Result) Mentions(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, t := range r.Terms() {
		if containsWord(lower, t) {
			n++
		}
	}
	return n
}

func (r Result) Summary() string {
	if r.Empty() {
		return "No financial entities detected."
	}
	var parts []string
	for _, t := range Types {
		if vals := r.EntityMap[t]; len(vals) > 0 {
			parts = append(parts, t+": "+strings.Join(vals, ", "))
		}
	}
	return strings.Join(parts, "; ")
}

type Extractor interface {
	Extract(ctx context.Context, text string) Result
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// containsWord reports whether w occurs in s without being glued to
// neighbouring letters or digits.
func containsWord(s, w string) bool {
	if w == "" {
		return false
	}
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], w)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(w)
		leftOK := start == 0 || !isAlnum(s[start-1]) || !isAlnum(w[0])
		rightOK := end == len(s) || !isAlnum(s[end]) || !isAlnum(w[len(w)-1])
		if leftOK && rightOK {
			return true
		}
		i = start + 1
	}
	return false
}

func isUpperSymbol(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			return false
		}
	}
	return true
}

type collector struct {
	seen     map[string]struct{}
	entities []Entity
}

func (c *collector) add(text, typ, canonical string) {
	key := strings.ToLower(text) + "\x00" + typ
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.entities = append(c.entities, Entity{Text: text, Type: typ, Canonical: canonical})
}

func (c *collector) result(method string) Result {
	m := make(map[string][]string)
	for _, e := range c.entities {
		m[e.Type] = append(m[e.Type], e.Text)
	}
	return Result{Entities: c.entities, EntityMap: m, Method: method}
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

// Scan runs the gazetteers and the amount / period patterns over text.
func Scan(text string) []Entity {
	c := newCollector()
	scanInto(c, text)
	return c.entities
}

func scanInto(c *collector, text string) {
	lower := strings.ToLower(text)

	for _, s := range stocks {
		if containsWord(text, s.Text) || containsWord(lower, strings.ToLower(s.Canonical)) {
			c.add(s.Text, TypeStock, s.Canonical)
		}
	}
	for _, s := range crypto {
		var hit bool
		if isUpperSymbol(s.Text) {
			hit = containsWord(text, s.Text)
		} else {
			hit = containsWord(lower, s.Text)
		}
		if hit {
			c.add(s.Text, TypeCrypto, s.Canonical)
		}
	}
	for _, group := range []struct {
		typ   string
		terms []term
	}{
		{TypeTaxTerm, taxTerms},
		{TypeAccount, accounts},
		{TypeFund, funds},
	} {
		for _, t := range group.terms {
			if containsWord(lower, strings.ToLower(t.Text)) {
				c.add(t.Text, group.typ, t.Canonical)
			}
		}
	}

	for _, m := range amountRe.FindAllString(text, -1) {
		c.add(strings.TrimSpace(m), TypeAmount, "")
	}
	for _, m := range timeRe.FindAllString(text, -1) {
		c.add(strings.TrimSpace(m), TypeTimePeriod, "")
	}
}

// Gazetteer is the pattern-only extractor.
type Gazetteer struct{}

func (Gazetteer) Extract(_ context.Context, text string) Result {
	c := newCollector()
	if strings.TrimSpace(text) != "" {
		scanInto(c, text)
	}
	return c.result(MethodGazetteer)
}

// ModelBacked asks the generation model to label spans, keeping only spans
// that match a known pattern for the claimed type.
type ModelBacked struct {
	provider llm.LLMProvider
	log      *zap.Logger
}

func NewModelBacked(p llm.LLMProvider, log *zap.Logger) *ModelBacked {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelBacked{provider: p, log: log.Named("entity")}
}

const extractPrompt = `Extract financial entities from the message below.
Allowed types: stock, crypto, tax_term, account, amount, time_period, fund.
Respond with ONLY a JSON array such as [{"text": "Roth IRA", "type": "account"}]. Use [] when there are none.

Message: %s`

func (m *ModelBacked) Extract(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Gazetteer{}.Extract(ctx, text)
	}

	spans, err := m.modelSpans(ctx, text)
	if err != nil {
		m.log.Warn("model extraction failed, falling back to gazetteer", zap.Error(err))
		return Gazetteer{}.Extract(ctx, text)
	}

	c := newCollector()
	for _, s := range spans {
		if canonical, ok := known(s.Type, s.Text, text); ok {
			c.add(s.Text, s.Type, canonical)
		}
	}
	if len(c.entities) == 0 {
		return Gazetteer{}.Extract(ctx, text)
	}
	return c.result(MethodModel)
}

func (m *ModelBacked) modelSpans(ctx context.Context, text string) ([]Entity, error) {
	reply, err := m.provider.Generate(ctx, fmt.Sprintf(extractPrompt, text), llm.WithTemperature(0.0), llm.WithMaxTokens(256))
	if err != nil {
		return nil, err
	}
	var spans []Entity
	if err := llm.DecodeJSON(reply, &spans); err != nil {
		return nil, err
	}
	return spans, nil
}

// known validates a model span against the source text and the pattern
// tables, returning the canonical name when there is one.
func known(typ, span, source string) (string, bool) {
	span = strings.TrimSpace(span)
	if span == "" || !strings.Contains(strings.ToLower(source), strings.ToLower(span)) {
		return "", false
	}
	lookup := func(terms []term) (string, bool) {
		for _, t := range terms {
			if strings.EqualFold(t.Text, span) || (t.Canonical != "" && strings.EqualFold(t.Canonical, span)) {
				return t.Canonical, true
			}
		}
		return "", false
	}
	switch typ {
	case TypeStock:
		return lookup(stocks)
	case TypeCrypto:
		return lookup(crypto)
	case TypeTaxTerm:
		return lookup(taxTerms)
	case TypeAccount:
		return lookup(accounts)
	case TypeFund:
		return lookup(funds)
	case TypeAmount:
		return "", amountRe.FindString(span) == span
	case TypeTimePeriod:
		return "", timeRe.FindString(span) == span
	default:
		return "", false
	}
}

func New(ctx context.Context, p llm.LLMProvider, log *zap.Logger) Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		return Gazetteer{}
	}
	if err := llm.Probe(ctx, p); err != nil {
		log.Warn("entity model unavailable, using gazetteer fallback", zap.Error(err))
		return Gazetteer{}
	}
	return NewModelBacked(p, log)
}

// Package evaluation scores retrieval and answers per query and keeps a
// rolling window of the results.
package evaluation

import (
	"math"
	"slices"
	"strings"
)

const DefaultK = 4

// RetrievalEval compares retrieved chunk titles, in rank order, with the
// titles known to be relevant.
type RetrievalEval struct {
	Retrieved []string
	Relevant  []string
	K         int
}

func (e RetrievalEval) k() int {
	if e.K <= 0 {
		return DefaultK
	}
	return e.K
}

func (e RetrievalEval) relevant(title string) bool {
	return slices.Contains(e.Relevant, title)
}

func (e RetrievalEval) hitsAtK() int {
	top := e.Retrieved[:min(len(e.Retrieved), e.k())]
	n := 0
	for _, t := range top {
		if e.relevant(t) {
			n++
		}
	}
	return n
}

// PrecisionAtK divides by k even when fewer results came back.
func (e RetrievalEval) PrecisionAtK() float64 {
	if len(e.Retrieved) == 0 {
		return 0
	}
	return round4(float64(e.hitsAtK()) / float64(e.k()))
}

func (e RetrievalEval) RecallAtK() float64 {
	if len(e.Relevant) == 0 {
		return 0
	}
	return round4(float64(e.hitsAtK()) / float64(len(e.Relevant)))
}

func (e RetrievalEval) F1AtK() float64 {
	p, r := e.PrecisionAtK(), e.RecallAtK()
	if p+r == 0 {
		return 0
	}
	return round4(2 * p * r / (p + r))
}

// ReciprocalRank looks at the full result list, not just the top k.
func (e RetrievalEval) ReciprocalRank() float64 {
	for i, t := range e.Retrieved {
		if e.relevant(t) {
			return round4(1 / float64(i+1))
		}
	}
	return 0
}

// NDCGAtK uses binary relevance.
func (e RetrievalEval) NDCGAtK() float64 {
	var dcg float64
	for i, t := range e.Retrieved[:min(len(e.Retrieved), e.k())] {
		if e.relevant(t) {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}
	var idcg float64
	for i := 0; i < min(len(e.Relevant), e.k()); i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return round4(dcg / idcg)
}

func (e RetrievalEval) HitRate() float64 {
	if len(e.Retrieved) > 0 && e.relevant(e.Retrieved[0]) {
		return 1
	}
	return 0
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// BLEU1 is unigram precision of hypothesis against the reference vocabulary.
func BLEU1(hypothesis, reference string) float64 {
	hyp := tokenize(hypothesis)
	if len(hyp) == 0 {
		return 0
	}
	ref := make(map[string]struct{})
	for _, w := range tokenize(reference) {
		ref[w] = struct{}{}
	}
	hits := 0
	for _, w := range hyp {
		if _, ok := ref[w]; ok {
			hits++
		}
	}
	return round4(float64(hits) / float64(len(hyp)))
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] == b[j] {
				curr[j+1] = prev[j] + 1
			} else {
				curr[j+1] = max(curr[j], prev[j+1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// RougeL is the F-measure of the longest common token subsequence.
func RougeL(hypothesis, reference string) float64 {
	hyp, ref := tokenize(hypothesis), tokenize(reference)
	if len(hyp) == 0 || len(ref) == 0 {
		return 0
	}
	lcs := float64(lcsLength(hyp, ref))
	p, r := lcs/float64(len(hyp)), lcs/float64(len(ref))
	if p+r == 0 {
		return 0
	}
	return round4(2 * p * r / (p + r))
}

type trigram [3]string

func trigrams(tokens []string) map[trigram]struct{} {
	out := make(map[trigram]struct{})
	for i := 0; i+2 < len(tokens); i++ {
		out[trigram{tokens[i], tokens[i+1], tokens[i+2]}] = struct{}{}
	}
	return out
}

// Faithfulness is the share of answer sentences (split on '.') sharing at
// least one token 3-gram with the retrieved context.
func Faithfulness(answer string, contextChunks []string) float64 {
	var sentences []string
	for _, s := range strings.Split(answer, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return 0
	}
	ctx := trigrams(tokenize(strings.Join(contextChunks, " ")))
	supported := 0
	for _, s := range sentences {
		for g := range trigrams(tokenize(s)) {
			if _, ok := ctx[g]; ok {
				supported++
				break
			}
		}
	}
	return round4(float64(supported) / float64(len(sentences)))
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

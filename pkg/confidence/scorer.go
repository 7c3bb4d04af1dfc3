package confidence

import (
	"math"
	"regexp"
	"strings"
)

var complexityHigh = []string{
	"notice", "scrutiny", "penalty", "prosecution", "144", "148", "263", "271",
	"revised return", "rectification", "search and seizure", "appeal",
	"tribunal", "high court", "itat", "compounding",
	"foreign income", "dtaa", "form 15ca", "form 15cb",
}

var complexityMedium = []string{
	"carry forward", "set off", "loss adjustment", "indexation",
	"splitting income", "huf", "clubbing", "deemed income",
	"perquisite", "gratuity limit", "vrs exemption",
}

var (
	qualityPositive = compileAll(
		`section\s+\d`,
		`₹[\d,.]+`,
		`\d+(?:\.\d+)?%`,
		`fy\s*20\d{2}`,
		`form\s+\d+`,
		`schedule\s+\w+`,
	)
	qualityNegative = compileAll(
		`i don'?t know`,
		`i'?m not sure`,
		`cannot (?:provide|give|tell)`,
		`consult a (?:ca|tax|financial) (?:professional|advisor|expert)`,
		`beyond my (?:knowledge|scope|expertise)`,
		`this is not (?:tax|financial|legal) advice`,
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// RetrievalSignals summarise the chunks an answer was generated from.
type RetrievalSignals struct {
	TopSimilarity  float64 `json:"top_similarity_score"`
	AvgSimilarity  float64 `json:"avg_similarity_score"`
	NumChunks      int     `json:"num_chunks_retrieved"`
	ChunkDiversity float64 `json:"chunk_diversity"`
	HasExactMatch  bool    `json:"has_exact_match"`
}

// clamp01 maps NaN to 0 so malformed signals cannot poison the score.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// RetrievalScore blends the signals; nil means unknown and scores 0.5.
func RetrievalScore(s *RetrievalSignals) float64 {
	if s == nil {
		return 0.5
	}
	return clamp01(s.TopSimilarity)*0.40 +
		clamp01(s.AvgSimilarity)*0.30 +
		clamp01(s.ChunkDiversity)*0.15 +
		clamp01(float64(s.NumChunks)/4)*0.15
}

// ComplexityMultiplier is 0.4 for litigation-style topics, 0.65 for tricky
// computations and 1 otherwise.
func ComplexityMultiplier(query, answer string) float64 {
	combined := strings.ToLower(query + " " + answer)
	for _, kw := range complexityHigh {
		if strings.Contains(combined, kw) {
			return 0.4
		}
	}
	for _, kw := range complexityMedium {
		if strings.Contains(combined, kw) {
			return 0.65
		}
	}
	return 1.0
}

func AnswerQuality(answer string) float64 {
	pos, neg := 0, 0
	for _, re := range qualityPositive {
		if re.MatchString(answer) {
			pos++
		}
	}
	for _, re := range qualityNegative {
		if re.MatchString(answer) {
			neg++
		}
	}
	score := math.Min(1, float64(pos)/math.Max(2, float64(len(qualityPositive))*0.4))
	score -= math.Min(0.5, float64(neg)*0.15)
	return math.Max(0, score)
}

// LengthScore penalises answers under 20 or over 500 whitespace tokens.
func LengthScore(answer string) float64 {
	switch n := len(strings.Fields(answer)); {
	case n < 20:
		return 0.2
	case n < 50:
		return 0.6
	case n < 500:
		return 1.0
	default:
		return 0.8
	}
}

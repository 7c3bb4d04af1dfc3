package vectorindex

// Signals summarise a retrieval for the confidence gate.
type Signals struct {
	TopScore  float64 `json:"top_score"`
	AvgScore  float64 `json:"avg_score"`
	Diversity float64 `json:"diversity"`
	Count     int     `json:"n_chunks"`
}

// ComputeSignals derives top and mean relevance plus diversity, defined as
// one minus the mean pairwise cosine similarity of the returned chunks.
// A single result has diversity 1.
func ComputeSignals(results []Result) (Signals, bool) {
	if len(results) == 0 {
		return Signals{}, false
	}
	var sum, top float64
	top = results[0].Score
	for _, r := range results {
		sum += r.Score
		if r.Score > top {
			top = r.Score
		}
	}
	return Signals{
		TopScore:  top,
		AvgScore:  sum / float64(len(results)),
		Diversity: 1 - MeanPairwiseSimilarity(results),
		Count:     len(results),
	}, true
}

// MeanPairwiseSimilarity is 0 for fewer than two results.
func MeanPairwiseSimilarity(results []Result) float64 {
	if len(results) < 2 {
		return 0
	}
	var total float64
	var pairs int
	for i := 0; i < len(results); i++ {
		ni := norm(results[i].Vector)
		for j := i + 1; j < len(results); j++ {
			total += cosine(results[i].Vector, ni, results[j].Vector, norm(results[j].Vector))
			pairs++
		}
	}
	return total / float64(pairs)
}

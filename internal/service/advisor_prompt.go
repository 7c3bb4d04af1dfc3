package service

import (
	"fmt"
	"strings"

	"wealthadvisor-ai/internal/constant"
	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/repository/memory"
	"wealthadvisor-ai/pkg/bandit"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/enrich"
	"wealthadvisor-ai/pkg/enrich/sentiment"
	"wealthadvisor-ai/pkg/vectorindex"
)

// styleFor returns the response preset for arms that adapt to sentiment.
func styleFor(action string, e enrich.Context) *sentiment.Style {
	if action != bandit.SentimentAdapted && action != bandit.FullPipeline {
		return nil
	}
	st := e.Sentiment.Style()
	return &st
}

func buildPrompt(question string, history []memory.Exchange, results []vectorindex.Result, style *sentiment.Style) string {
	var ctxBuilder strings.Builder
	for i, r := range results {
		if i > 0 {
			ctxBuilder.WriteString("\n\n")
		}
		fmt.Fprintf(&ctxBuilder, "[%s | %s]\n%s", r.Metadata.Title, r.Metadata.Category, r.Content)
	}
	contextText := ctxBuilder.String()
	if contextText == "" {
		contextText = constant.AdvisorNoContext
	}

	var histBuilder strings.Builder
	for _, ex := range history {
		fmt.Fprintf(&histBuilder, "User: %s\nAssistant: %s\n", ex.Question, ex.Answer)
	}
	historyText := strings.TrimRight(histBuilder.String(), "\n")
	if historyText == "" {
		historyText = constant.AdvisorNoHistory
	}

	styleText := ""
	if style != nil {
		styleText = fmt.Sprintf(constant.AdvisorStyleBlockV1, style.Description, style.TonePrefix, style.MaxBulletPoints)
		if style.UseExamples {
			styleText += "- Include a short worked example\n"
		}
		if style.IncludeNextStep {
			styleText += "- End with one concrete next step\n"
		}
	}

	return fmt.Sprintf(constant.AdvisorPromptV1, contextText, historyText, styleText, question)
}

// sourcesFrom lists one source per distinct title, in retrieval order.
func sourcesFrom(results []vectorindex.Result) []dto.SourceDTO {
	seen := make(map[string]struct{}, len(results))
	sources := make([]dto.SourceDTO, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Metadata.Title]; ok {
			continue
		}
		seen[r.Metadata.Title] = struct{}{}
		sources = append(sources, dto.SourceDTO{
			Title:    r.Metadata.Title,
			Category: r.Metadata.Category,
			Source:   r.Metadata.Source,
			Snippet:  snippet(r.Content),
		})
	}
	return sources
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) > constant.SourceSnippetLength {
		runes = runes[:constant.SourceSnippetLength]
	}
	return string(runes) + constant.SourceEllipsis
}

// retrievalSignals is nil when nothing was retrieved, which the gate scores as neutral.
func retrievalSignals(question string, results []vectorindex.Result) *confidence.RetrievalSignals {
	sig, ok := vectorindex.ComputeSignals(results)
	if !ok {
		return nil
	}
	phrase := strings.ToLower(strings.TrimRight(strings.TrimSpace(question), "?.! "))
	exact := false
	for _, r := range results {
		if phrase != "" && strings.Contains(strings.ToLower(r.Content), phrase) {
			exact = true
			break
		}
	}
	return &confidence.RetrievalSignals{
		TopSimilarity:  sig.TopScore,
		AvgSimilarity:  sig.AvgScore,
		NumChunks:      sig.Count,
		ChunkDiversity: sig.Diversity,
		HasExactMatch:  exact,
	}
}

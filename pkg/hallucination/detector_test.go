package hallucination

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_CorrectRatePasses(t *testing.T) {
	d := New(DefaultThreshold)
	answer := "Under Section 111A, Short-Term Capital Gains on equity shares are taxed at 20% if STT has been paid."

	got := d.Check(answer, CategoryCapitalGains)
	assert.False(t, got.IsHallucination)
	assert.Equal(t, 1, got.FactsChecked)
	assert.Equal(t, 1, got.FactsPassed)
	assert.Zero(t, got.Confidence)
	assert.Empty(t, got.Findings)
	assert.Equal(t, "All 1 applicable facts passed. No hallucinations detected.", got.Explanation)
}

func TestCheck_WrongRate(t *testing.T) {
	got := New(DefaultThreshold).Check("STCG on equity is 15%.", CategoryCapitalGains)

	assert.True(t, got.IsHallucination)
	assert.True(t, got.NeedsCAReview)
	assert.Equal(t, 1.0, got.Confidence)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, Finding{
		FactKey:     "stcg_111a_rate",
		Type:        TypeWrongRate,
		Description: "STCG u/s 111A on equity: 20% (from 23 July 2024)",
		Found:       "15%",
		Expected:    "20%",
		Severity:    SeverityHigh,
	}, got.Findings[0])
}

func TestCheck_OutdatedCapitalGainsAnswer(t *testing.T) {
	text := "Under Section 111A, STCG on equity shares is taxed at 15%. LTCG under 112A is 10% with ₹1 lakh exemption."
	got := New(DefaultThreshold).Check(text, CategoryCapitalGains)

	assert.Equal(t, 2, got.FactsChecked)
	assert.Len(t, got.Findings, 2)
	assert.True(t, got.IsHallucination)
	assert.Contains(t, got.Explanation, "2 potential issue(s) in 2 facts checked:")
}

func TestCheck_WrongAmountIsCritical(t *testing.T) {
	got := New(DefaultThreshold).Check("Your LTCG exemption limit is ₹1,00,000 per year.", CategoryCapitalGains)

	assert.Equal(t, 2, got.FactsChecked)
	assert.Equal(t, 1, got.FactsPassed)
	assert.Equal(t, 0.5, got.Confidence)
	assert.True(t, got.IsHallucination)
	require.NotEmpty(t, got.Findings)
	for _, f := range got.Findings {
		assert.Equal(t, TypeWrongAmount, f.Type)
		assert.Equal(t, SeverityCritical, f.Severity)
	}
}

func TestCheck_Normalisation(t *testing.T) {
	got := New(DefaultThreshold).Check("STCG is 15 %", CategoryCapitalGains)
	assert.True(t, got.IsHallucination)
}

func TestCheck_CategoryFilter(t *testing.T) {
	d := New(DefaultThreshold)

	got := d.Check("Nothing relevant here.", CategoryTDS)
	assert.Zero(t, got.FactsChecked)
	assert.Zero(t, got.Confidence)
	assert.False(t, got.IsHallucination)

	// A trigger pulls in a fact from another category.
	got = d.Check("STCG is 15%", CategoryTDS)
	assert.True(t, got.IsHallucination)

	got = d.Check("Save more money.", "")
	assert.Equal(t, "general", got.Category)
	assert.False(t, got.IsHallucination)
}

func TestCheck_NoCategorySkipsUntriggeredFacts(t *testing.T) {
	got := New(DefaultThreshold).Check("STCG on equity is 15%. LTCG on equity is 12.5%.", "")

	assert.Equal(t, CategoryGeneral, got.Category)
	assert.Equal(t, 2, got.FactsChecked)
	assert.Equal(t, 1, got.FactsPassed)
	assert.Equal(t, 0.5, got.Confidence)
	assert.True(t, got.IsHallucination)
	assert.True(t, got.NeedsCAReview)
}

func TestCheck_ExplanationCapsFindings(t *testing.T) {
	var facts []Fact
	for i := 0; i < 7; i++ {
		facts = append(facts, Fact{Key: fmt.Sprintf("f%d", i), Description: "nine", WrongRates: []string{"9%"}})
	}
	got := NewWithRegistry(0, facts).Check("it is 9%", "")

	assert.Len(t, got.Findings, 7)
	assert.Contains(t, got.Explanation, "... and 2 more.")
}

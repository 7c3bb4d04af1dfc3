// Package hallucination checks generated answers against a registry of
// known tax rates and amounts.
package hallucination

import (
	"fmt"
	"math"
	"strings"
)

const DefaultThreshold = 0.3

// CategoryGeneral is assumed when the caller has no category. It matches no
// registry category, so only triggered facts are checked.
const CategoryGeneral = "general"

const (
	TypeWrongRate   = "wrong_rate"
	TypeWrongAmount = "wrong_amount"

	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const maxExplained = 5

type Finding struct {
	FactKey     string `json:"fact_key"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Found       string `json:"found"`
	Expected    string `json:"expected"`
	Severity    string `json:"severity"`
}

type Result struct {
	Category        string    `json:"category"`
	IsHallucination bool      `json:"is_hallucination"`
	Confidence      float64   `json:"confidence"`
	NeedsCAReview   bool      `json:"needs_ca_review"`
	FactsChecked    int       `json:"facts_checked"`
	FactsPassed     int       `json:"facts_passed"`
	Findings        []Finding `json:"findings"`
	Explanation     string    `json:"explanation"`
}

type Detector struct {
	threshold float64
	facts     []Fact
}

// New returns a detector over the built-in registry. A non-positive
// threshold uses DefaultThreshold.
func New(threshold float64) *Detector {
	return NewWithRegistry(threshold, registry)
}

func NewWithRegistry(threshold float64, facts []Fact) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold, facts: facts}
}

func (d *Detector) Threshold() float64 { return d.threshold }

// Check runs every applicable fact over text. Facts outside category are only
// checked when one of their triggers appears. An empty category means
// CategoryGeneral.
func (d *Detector) Check(text, category string) Result {
	if category == "" {
		category = CategoryGeneral
	}
	lower := strings.ToLower(text)
	findings := []Finding{}
	checked, passed := 0, 0
	review := false

	for _, f := range d.facts {
		triggered := anyIn(lower, f.Triggers)
		if f.Category != "" && f.Category != category && !triggered {
			continue
		}
		if len(f.Triggers) > 0 && !triggered {
			continue
		}

		checked++
		ff := checkFact(lower, f)
		if len(ff) == 0 {
			passed++
			continue
		}
		findings = append(findings, ff...)
		for _, x := range ff {
			if x.Severity == SeverityHigh || x.Severity == SeverityCritical {
				review = true
			}
		}
	}

	confidence := 0.0
	if checked > 0 {
		confidence = float64(checked-passed) / float64(checked)
	}
	return Result{
		Category:        category,
		IsHallucination: confidence >= d.threshold && len(findings) > 0,
		Confidence:      math.Round(confidence*10000) / 10000,
		NeedsCAReview:   review,
		FactsChecked:    checked,
		FactsPassed:     passed,
		Findings:        findings,
		Explanation:     explain(findings, checked),
	}
}

func anyIn(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func checkFact(lower string, f Fact) []Finding {
	var out []Finding
	for _, wrong := range f.WrongRates {
		if ratePresent(lower, wrong) {
			out = append(out, Finding{
				FactKey:     f.Key,
				Type:        TypeWrongRate,
				Description: f.Description,
				Found:       wrong,
				Expected:    strings.Join(f.ExpectedRates, ", "),
				Severity:    SeverityHigh,
			})
		}
	}
	for _, wrong := range f.WrongAmounts {
		if amountPresent(lower, wrong) {
			out = append(out, Finding{
				FactKey:     f.Key,
				Type:        TypeWrongAmount,
				Description: f.Description,
				Found:       wrong,
				Expected:    strings.Join(f.ExpectedAmounts, ", "),
				Severity:    SeverityCritical,
			})
		}
	}
	return out
}

var (
	rateNormalizer   = strings.NewReplacer(" ", "", "\t", "", "\n", "")
	amountNormalizer = strings.NewReplacer(" ", "", "\t", "", "\n", "", ",", "", "₹", "")
)

func ratePresent(lower, rate string) bool {
	return strings.Contains(rateNormalizer.Replace(lower), rateNormalizer.Replace(strings.ToLower(rate)))
}

func amountPresent(lower, amount string) bool {
	return strings.Contains(amountNormalizer.Replace(lower), amountNormalizer.Replace(strings.ToLower(amount)))
}

func explain(findings []Finding, checked int) string {
	if len(findings) == 0 {
		return fmt.Sprintf("All %d applicable facts passed. No hallucinations detected.", checked)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d potential issue(s) in %d facts checked:", len(findings), checked)
	for i, f := range findings {
		if i == maxExplained {
			fmt.Fprintf(&b, "\n  ... and %d more.", len(findings)-maxExplained)
			break
		}
		fmt.Fprintf(&b, "\n  [%s] %s: %s", strings.ToUpper(f.Severity), f.Type, f.Description)
		if f.Found != "" {
			fmt.Fprintf(&b, "\n    Found: %s  |  Expected: %s", f.Found, f.Expected)
		}
	}
	return b.String()
}

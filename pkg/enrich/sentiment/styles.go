package sentiment

const (
	StyleReassure  = "reassure_and_educate"
	StyleConcise   = "concise_expert"
	StyleUrgent    = "urgent_action"
	StyleEncourage = "encouraging"
	StyleBalanced  = "balanced"
)

// Style is a response preset injected into the generation prompt.
type Style struct {
	Description     string `json:"description"`
	TonePrefix      string `json:"tone_prefix"`
	MaxBulletPoints int    `json:"max_bullet_points"`
	UseExamples     bool   `json:"use_examples"`
	IncludeNextStep bool   `json:"include_next_step"`
}

var styles = map[string]Style{
	StyleReassure: {
		Description:     "High anxiety / low confidence: use empathetic, simple language",
		TonePrefix:      "I understand this can feel overwhelming. Let me break this down simply. ",
		MaxBulletPoints: 3,
		UseExamples:     true,
		IncludeNextStep: true,
	},
	StyleConcise: {
		Description:     "Low anxiety / high confidence: data-driven, minimal preamble",
		MaxBulletPoints: 5,
	},
	StyleUrgent: {
		Description:     "High urgency: prioritise actionable steps, flag deadlines",
		TonePrefix:      "Given the time constraint, here's what matters most: ",
		MaxBulletPoints: 3,
		IncludeNextStep: true,
	},
	StyleEncourage: {
		Description:     "Positive sentiment: affirm progress, expand on opportunities",
		TonePrefix:      "Great question! ",
		MaxBulletPoints: 5,
		UseExamples:     true,
		IncludeNextStep: true,
	},
	StyleBalanced: {
		Description:     "Neutral baseline",
		MaxBulletPoints: 4,
		UseExamples:     true,
		IncludeNextStep: true,
	},
}

// StyleFor returns the preset for name, or the balanced preset for unknown names.
func StyleFor(name string) Style {
	if s, ok := styles[name]; ok {
		return s
	}
	return styles[StyleBalanced]
}

// ChooseStyle applies the decision table. Rules are checked in order.
func ChooseStyle(polarity, anxiety, urgency, confidence string) string {
	switch {
	case anxiety == LevelHigh || confidence == LevelLow:
		return StyleReassure
	case urgency == LevelHigh:
		return StyleUrgent
	case polarity == Positive:
		return StyleEncourage
	case confidence == LevelHigh:
		return StyleConcise
	default:
		return StyleBalanced
	}
}

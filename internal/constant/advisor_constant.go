package constant

const (
	// AdvisorPromptV1 takes context, chat history, style block and question, in that order.
	AdvisorPromptV1 = `You are WealthAdvisor AI, an expert financial assistant for Indian personal finance and tax.
Give clear, accurate and actionable guidance based on the context below.

Guidelines:
- Be concise but complete; use bullet points for lists
- Quote the relevant figures (rates, limits, sections) from the context
- If the question falls outside the context, say so honestly
- Never provide specific investment advice for individual securities
- Recommend a qualified CA or licensed advisor for complex situations

Context from knowledge base:
%s

Conversation history:
%s
%s
User question: %s

WealthAdvisor AI answer:`

	AdvisorStyleBlockV1 = `
Response style: %s
- Start the answer with: "%s"
- Use at most %d bullet points
`

	AdvisorNoHistory = "(none)"
	AdvisorNoContext = "(no relevant documents found)"

	InternalErrorMessage = "internal error, please try again"
)

const (
	SourceSnippetLength = 200
	SourceEllipsis      = "…"
)

// IntentCategories maps an intent label to the corpus categories that
// intent-boosted retrieval favours.
var IntentCategories = map[string][]string{
	"budget":     {"budgeting", "debt"},
	"investment": {"investing", "wealth"},
	"tax":        {"tax"},
	"savings":    {"savings", "retirement", "insurance"},
}

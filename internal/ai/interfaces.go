package ai

import "context"

// Evaluator defines methods for LLM-backed prompt assessment
type Evaluator interface {
	// EvaluatePrompt scores a prompt's quality on a 1-100 scale
	EvaluatePrompt(ctx context.Context, title, description string) (*PromptEvaluation, error)

	// GenerateHybridDescription composes a description blending two parent prompts
	GenerateHybridDescription(ctx context.Context, parent1Title, parent1Description, parent2Title, parent2Description string) (string, error)
}

// PromptEvaluation 提示词质量评估结果
type PromptEvaluation struct {
	Score        int      `json:"score"` // 1-100
	Reason       string   `json:"reason"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// DefaultScore is used whenever the model returns a malformed verdict or the
// call fails outright.
const DefaultScore = 50

// DefaultEvaluation is the fallback verdict. Settlement uses it instead of
// failing a request when the evaluator is unavailable.
func DefaultEvaluation() *PromptEvaluation {
	return &PromptEvaluation{
		Score:        DefaultScore,
		Reason:       "Default evaluation",
		Strengths:    []string{"Readable"},
		Improvements: []string{"Could be more specific"},
	}
}

// FallbackHybridDescription is the hybrid description used when generation
// fails.
func FallbackHybridDescription(parent1Title, parent2Title string) string {
	return "Hybrid of " + parent1Title + " and " + parent2Title
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/jamoran1356/promptmind/internal/ai"
)

// OpenAIEvaluator implements the ai.Evaluator interface using OpenAI
type OpenAIEvaluator struct {
	client *openai.Client
	model  string
}

// NewOpenAIEvaluator creates a new OpenAI evaluator instance
func NewOpenAIEvaluator(apiKey string, model string) *OpenAIEvaluator {
	client := openai.NewClient(apiKey)
	if model == "" {
		model = openai.GPT4
	}
	return &OpenAIEvaluator{
		client: client,
		model:  model,
	}
}

// EvaluatePrompt implements the Evaluator interface
func (e *OpenAIEvaluator) EvaluatePrompt(ctx context.Context, title, description string) (*ai.PromptEvaluation, error) {
	prompt := fmt.Sprintf(`Evaluate this AI prompt on a scale of 1-100.

Title: %q
Description: %q

Respond with ONLY valid JSON:
{
  "score": <number 1-100>,
  "reason": "<one sentence>",
  "strengths": ["<strength1>", "<strength2>"],
  "improvements": ["<improvement1>", "<improvement2>"]
}`, title, description)

	resp, err := e.createChatCompletion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate prompt: %w", err)
	}

	var evaluation ai.PromptEvaluation
	if err := json.Unmarshal([]byte(resp), &evaluation); err != nil {
		return ai.DefaultEvaluation(), nil
	}

	if evaluation.Score < 1 || evaluation.Score > 100 {
		evaluation.Score = ai.DefaultScore
	}

	return &evaluation, nil
}

// GenerateHybridDescription implements the Evaluator interface
func (e *OpenAIEvaluator) GenerateHybridDescription(ctx context.Context, parent1Title, parent1Description, parent2Title, parent2Description string) (string, error) {
	prompt := fmt.Sprintf(`Create a hybrid prompt that combines these two:

Parent 1:
Title: %q
Description: %q

Parent 2:
Title: %q
Description: %q

Provide a new prompt description that blends the best aspects of both. Keep it under 500 characters.`,
		parent1Title, parent1Description, parent2Title, parent2Description)

	resp, err := e.createChatCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate hybrid description: %w", err)
	}

	return strings.TrimSpace(resp), nil
}

// createChatCompletion is a helper function to make OpenAI API calls
func (e *OpenAIEvaluator) createChatCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a prompt marketplace quality assessor. Always return results in the requested JSON format.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}

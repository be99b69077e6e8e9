package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/jamoran1356/promptmind/internal/ai"
)

const (
	defaultAPIEndpoint = "https://api.anthropic.com/v1"
	defaultModel       = "claude-3-5-sonnet-20241022"
	apiVersion         = "2023-06-01"
)

// Evaluator implements the ai.Evaluator interface using the Anthropic
// messages API.
type Evaluator struct {
	apiKey   string
	endpoint string
	model    string
	client   *resty.Client
}

type EvaluatorOption func(*Evaluator)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(endpoint string) EvaluatorOption {
	return func(e *Evaluator) { e.endpoint = strings.TrimRight(endpoint, "/") }
}

// NewEvaluator creates a new Anthropic evaluator instance
func NewEvaluator(apiKey string, model string, opts ...EvaluatorOption) *Evaluator {
	if model == "" {
		model = defaultModel
	}

	e := &Evaluator{
		apiKey:   apiKey,
		endpoint: defaultAPIEndpoint,
		model:    model,
		client:   resty.New().SetRetryCount(3),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EvaluatePrompt implements the Evaluator interface
func (e *Evaluator) EvaluatePrompt(ctx context.Context, title, description string) (*ai.PromptEvaluation, error) {
	prompt := fmt.Sprintf(`Evaluate this AI prompt on a scale of 1-100. Respond in JSON format.

Title: %q
Description: %q

Respond with ONLY valid JSON (no markdown):
{
  "score": <number 1-100>,
  "reason": "<one sentence>",
  "strengths": ["<strength1>", "<strength2>"],
  "improvements": ["<improvement1>", "<improvement2>"]
}`, title, description)

	resp, err := e.createMessage(ctx, prompt, 500)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate prompt: %w", err)
	}

	return parseEvaluation(resp), nil
}

// GenerateHybridDescription implements the Evaluator interface
func (e *Evaluator) GenerateHybridDescription(ctx context.Context, parent1Title, parent1Description, parent2Title, parent2Description string) (string, error) {
	prompt := fmt.Sprintf(`Create a hybrid prompt that combines these two:

Parent 1:
Title: %q
Description: %q

Parent 2:
Title: %q
Description: %q

Provide a new prompt description that blends the best aspects of both. Keep it under 500 characters.`,
		parent1Title, parent1Description, parent2Title, parent2Description)

	resp, err := e.createMessage(ctx, prompt, 300)
	if err != nil {
		return "", fmt.Errorf("failed to generate hybrid description: %w", err)
	}

	return strings.TrimSpace(resp), nil
}

// parseEvaluation decodes the model's verdict, degrading to the default
// evaluation when the payload is malformed and to the default score when the
// score is out of range.
func parseEvaluation(raw string) *ai.PromptEvaluation {
	text := strings.TrimSpace(raw)
	// models occasionally wrap the JSON in a markdown fence despite instructions
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var evaluation ai.PromptEvaluation
	if err := json.Unmarshal([]byte(text), &evaluation); err != nil {
		return ai.DefaultEvaluation()
	}

	if evaluation.Score < 1 || evaluation.Score > 100 {
		evaluation.Score = ai.DefaultScore
	}

	return &evaluation
}

// createMessage sends a request to the Anthropic messages API
func (e *Evaluator) createMessage(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := messagesRequest{
		Model:     e.model,
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	var msgResp messagesResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", e.apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetBody(reqBody).
		SetResult(&msgResp).
		Post(e.endpoint + "/messages")
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("api error: status=%d, body=%s", resp.StatusCode(), resp.String())
	}

	if msgResp.Error != nil {
		return "", fmt.Errorf("api error: %s", msgResp.Error.Message)
	}

	for _, block := range msgResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}

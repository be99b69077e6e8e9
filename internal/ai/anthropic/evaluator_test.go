package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamoran1356/promptmind/internal/ai"
)

func messagesServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		resp := map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEvaluator_EvaluatePrompt(t *testing.T) {
	srv := messagesServer(t, `{"score": 85, "reason": "Clear and specific", "strengths": ["focused"], "improvements": ["add examples"]}`)
	defer srv.Close()

	evaluator := NewEvaluator("test-key", "", WithEndpoint(srv.URL))

	evaluation, err := evaluator.EvaluatePrompt(context.Background(), "Code Reviewer", "Review Go code for bugs")
	require.NoError(t, err)
	require.NotNil(t, evaluation)

	assert.Equal(t, 85, evaluation.Score)
	assert.Equal(t, "Clear and specific", evaluation.Reason)
	assert.Equal(t, []string{"focused"}, evaluation.Strengths)
}

func TestEvaluator_EvaluatePrompt_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	evaluator := NewEvaluator("test-key", "", WithEndpoint(srv.URL))

	_, err := evaluator.EvaluatePrompt(context.Background(), "t", "d")
	assert.Error(t, err)
}

func TestEvaluator_GenerateHybridDescription(t *testing.T) {
	srv := messagesServer(t, "  A prompt blending code review with test generation.\n")
	defer srv.Close()

	evaluator := NewEvaluator("test-key", "", WithEndpoint(srv.URL))

	desc, err := evaluator.GenerateHybridDescription(context.Background(), "Reviewer", "reviews code", "Tester", "writes tests")
	require.NoError(t, err)
	assert.Equal(t, "A prompt blending code review with test generation.", desc)
}

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantScore int
	}{
		{
			name:      "valid verdict",
			raw:       `{"score": 72, "reason": "ok"}`,
			wantScore: 72,
		},
		{
			name:      "markdown fenced verdict",
			raw:       "```json\n{\"score\": 64, \"reason\": \"ok\"}\n```",
			wantScore: 64,
		},
		{
			name:      "malformed payload falls back to default",
			raw:       "the prompt is pretty good I'd say 80",
			wantScore: ai.DefaultScore,
		},
		{
			name:      "score above range",
			raw:       `{"score": 140, "reason": "ok"}`,
			wantScore: ai.DefaultScore,
		},
		{
			name:      "score below range",
			raw:       `{"score": 0, "reason": "ok"}`,
			wantScore: ai.DefaultScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluation := parseEvaluation(tt.raw)
			require.NotNil(t, evaluation)
			assert.Equal(t, tt.wantScore, evaluation.Score)
		})
	}
}

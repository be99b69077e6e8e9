package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamoran1356/promptmind/internal/ai"
	"github.com/jamoran1356/promptmind/internal/audit"
	"github.com/jamoran1356/promptmind/internal/chain"
	"github.com/jamoran1356/promptmind/internal/data/memory"
	"github.com/jamoran1356/promptmind/internal/models"
	"github.com/jamoran1356/promptmind/internal/ratelimit"
	"github.com/jamoran1356/promptmind/internal/settlement"
)

const testSecret = "test-secret"

type stubEvaluator struct{}

func (stubEvaluator) EvaluatePrompt(ctx context.Context, title, description string) (*ai.PromptEvaluation, error) {
	return &ai.PromptEvaluation{Score: 80, Reason: "stub"}, nil
}

func (stubEvaluator) GenerateHybridDescription(ctx context.Context, p1t, p1d, p2t, p2d string) (string, error) {
	return "hybrid of " + p1t + " and " + p2t, nil
}

type stubExecutor struct{}

func (stubExecutor) ExecuteTrade(ctx context.Context, params *chain.TradeParams) (string, error) {
	return "0xtrade", nil
}

func (stubExecutor) ExecuteBreeding(ctx context.Context, params *chain.BreedingParams) (string, error) {
	return "0x5000000000000000000000000000000000000005", nil
}

func newTestServer(t *testing.T, limits map[string]int) (*Server, *memory.MemoryStorage) {
	t.Helper()
	store := memory.NewMemoryStorage()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := settlement.NewService(store, stubEvaluator{}, stubExecutor{}, audit.NewAuditor(store, log), log)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), time.Minute, limits, log)
	return NewServer(":0", store, svc, limiter, testSecret, log), store
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(t *testing.T, handler http.Handler, method, target, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func seedServerPrompt(t *testing.T, store *memory.MemoryStorage, id string, score int, price float64) {
	t.Helper()
	require.NoError(t, store.SavePrompt(context.Background(), &models.Prompt{
		ID:              id,
		Title:           "Prompt " + id,
		Description:     "desc",
		Category:        "general",
		CreatorID:       "creator-1",
		QualityScore:    score,
		TokenPrice:      price,
		ContractAddress: "0x3000000000000000000000000000000000000003",
		CreatedAt:       time.Now(),
	}))
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope["success"])
	payload := envelope["data"].(map[string]any)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "promptmind", payload["service"])
	assert.NotEmpty(t, payload["uptime"])
}

func TestServer_ListPrompts_Pagination(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedServerPrompt(t, store, "a", 90, 9.00)
	seedServerPrompt(t, store, "b", 80, 8.00)
	seedServerPrompt(t, store, "c", 70, 7.00)

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/prompts?take=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Len(t, envelope["data"], 2)
	pagination := envelope["pagination"].(map[string]any)
	assert.EqualValues(t, 3, pagination["total"])
	assert.EqualValues(t, 2, pagination["take"])
}

func TestServer_GetPrompt_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/prompts/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "record not found", envelope["error"])
}

func TestServer_CreatePrompt(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	body := map[string]any{"title": "T", "description": "D", "category": "general"}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/prompts", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "POST requires a token")

	rec = doJSON(t, router, http.MethodPost, "/api/v1/prompts", "Bearer not-a-token", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/prompts", bearerToken(t, "user-7"), body)
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := decodeEnvelope(t, rec)
	payload := envelope["data"].(map[string]any)
	prompt := payload["prompt"].(map[string]any)
	assert.Equal(t, "user-7", prompt["creatorId"], "creator comes from the token claim")
	assert.EqualValues(t, 80, prompt["qualityScore"])
	assert.InDelta(t, 8.0, prompt["tokenPrice"].(float64), 1e-9)
}

func TestServer_CreatePrompt_Validation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/prompts", bearerToken(t, "user-7"),
		map[string]any{"title": "", "description": "D"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateTrade(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedServerPrompt(t, store, "p1", 70, 10.00)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/trades", bearerToken(t, "trader-1"),
		map[string]any{"promptId": "p1", "action": "buy", "amount": 2, "price": 10.00})
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := decodeEnvelope(t, rec)
	trade := envelope["data"].(map[string]any)
	assert.Equal(t, "trader-1", trade["traderId"])
	assert.InDelta(t, 20.0, trade["total"].(float64), 1e-9)
	assert.InDelta(t, 10.0, trade["creatorFee"].(float64), 1e-9)
	assert.Equal(t, "confirmed", trade["status"])
}

func TestServer_CreateTrade_GateViolation(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedServerPrompt(t, store, "p1", 70, 10.00)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/trades", bearerToken(t, "trader-1"),
		map[string]any{"promptId": "p1", "action": "buy", "amount": 500, "price": 10.00})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeEnvelope(t, rec)
	details := envelope["details"].(map[string]any)
	assert.Equal(t, "AMOUNT_OUT_OF_RANGE", details["reason"])
}

func TestServer_CreateBreeding_CooldownMapsTo429(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedServerPrompt(t, store, "a", 70, 7.00)
	seedServerPrompt(t, store, "b", 90, 9.00)

	require.NoError(t, store.SaveBreedingEvent(context.Background(), &models.BreedingEvent{
		ID:        "prior",
		Parent1ID: "a",
		Parent2ID: "b",
		BreederID: "breeder-1",
		Status:    models.StatusConfirmed,
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/breeding", bearerToken(t, "breeder-1"),
		map[string]any{"parent1Id": "a", "parent2Id": "b", "childName": "Hybrid"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	envelope := decodeEnvelope(t, rec)
	details := envelope["details"].(map[string]any)
	assert.Equal(t, "COOLDOWN_ACTIVE", details["reason"])
	assert.NotEmpty(t, details["cooldownUntil"])
}

func TestServer_CreateBreeding(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedServerPrompt(t, store, "a", 70, 7.00)
	seedServerPrompt(t, store, "b", 90, 9.00)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/breeding", bearerToken(t, "breeder-1"),
		map[string]any{"parent1Id": "a", "parent2Id": "b", "childName": "Hybrid", "childSymbol": "HYB"})
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := decodeEnvelope(t, rec)
	payload := envelope["data"].(map[string]any)
	child := payload["child"].(map[string]any)
	assert.EqualValues(t, 80, child["qualityScore"])
	assert.Equal(t, true, child["isHybrid"])
	event := payload["event"].(map[string]any)
	assert.Equal(t, child["id"], event["childPromptId"])
}

func TestServer_Leaderboard(t *testing.T) {
	srv, store := newTestServer(t, nil)
	seedServerPrompt(t, store, "a", 80, 8.00)
	seedServerPrompt(t, store, "b", 90, 9.90) // price drifted up from 9.00

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	entries := envelope["data"].([]any)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]any)
	assert.EqualValues(t, 1, first["rank"])
	assert.Equal(t, "b", first["prompt"].(map[string]any)["id"])
	assert.InDelta(t, 10.0, first["roi"].(float64), 1e-9)
}

func TestServer_RateLimit(t *testing.T) {
	srv, store := newTestServer(t, map[string]int{"trades": 2})
	seedServerPrompt(t, store, "p1", 70, 10.00)
	router := srv.Router()

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/trades", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/trades", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "rate limit exceeded", envelope["error"])

	// a different client has its own window
	req := httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

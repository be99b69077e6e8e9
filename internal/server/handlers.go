package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jamoran1356/promptmind/internal/data"
	"github.com/jamoran1356/promptmind/internal/market"
	"github.com/jamoran1356/promptmind/internal/models"
	"github.com/jamoran1356/promptmind/internal/settlement"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	skip, take := pageParams(r)
	prompts, total, err := s.store.ListPrompts(r.Context(), data.PromptFilter{
		Category: r.URL.Query().Get("category"),
		Skip:     skip,
		Take:     take,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writePage(w, prompts, Pagination{Skip: skip, Take: take, Total: total})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.store.GetPrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, prompt)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Title == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "title and description are required", nil)
		return
	}

	prompt, evaluation, err := s.settlement.CreatePrompt(r.Context(), settlement.CreatePromptRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		CreatorID:   userIDFrom(r.Context()),
		Origin:      clientIdentifier(r),
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, map[string]any{
		"prompt":     prompt,
		"evaluation": evaluation,
	})
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	skip, take := pageParams(r)
	trades, total, err := s.store.ListTrades(r.Context(), data.TradeFilter{
		PromptID: r.URL.Query().Get("promptId"),
		TraderID: r.URL.Query().Get("userId"),
		Skip:     skip,
		Take:     take,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writePage(w, trades, Pagination{Skip: skip, Take: take, Total: total})
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PromptID string  `json:"promptId"`
		Action   string  `json:"action"`
		Amount   int     `json:"amount"`
		Price    float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	action := models.TradeAction(req.Action)
	if action != models.TradeActionBuy && action != models.TradeActionSell {
		writeError(w, http.StatusBadRequest, "action must be buy or sell", nil)
		return
	}
	if req.PromptID == "" {
		writeError(w, http.StatusBadRequest, "promptId is required", nil)
		return
	}

	trade, err := s.settlement.ExecuteTrade(r.Context(), settlement.TradeRequest{
		PromptID: req.PromptID,
		TraderID: userIDFrom(r.Context()),
		Action:   action,
		Amount:   req.Amount,
		Price:    req.Price,
		Origin:   clientIdentifier(r),
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, trade)
}

func (s *Server) handleListBreedingEvents(w http.ResponseWriter, r *http.Request) {
	skip, take := pageParams(r)
	events, total, err := s.store.ListBreedingEvents(r.Context(), data.BreedingFilter{
		BreederID: r.URL.Query().Get("breederId"),
		Skip:      skip,
		Take:      take,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writePage(w, events, Pagination{Skip: skip, Take: take, Total: total})
}

func (s *Server) handleCreateBreeding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent1ID   string `json:"parent1Id"`
		Parent2ID   string `json:"parent2Id"`
		ChildName   string `json:"childName"`
		ChildSymbol string `json:"childSymbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Parent1ID == "" || req.Parent2ID == "" || req.ChildName == "" {
		writeError(w, http.StatusBadRequest, "parent1Id, parent2Id and childName are required", nil)
		return
	}

	result, err := s.settlement.ExecuteBreeding(r.Context(), settlement.BreedRequest{
		Parent1ID:   req.Parent1ID,
		Parent2ID:   req.Parent2ID,
		BreederID:   userIDFrom(r.Context()),
		ChildName:   req.ChildName,
		ChildSymbol: req.ChildSymbol,
		Origin:      clientIdentifier(r),
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, map[string]any{
		"event": result.Event,
		"child": result.Child,
	})
}

type leaderboardEntry struct {
	Rank   int           `json:"rank"`
	Score  float64       `json:"score"`
	ROI    float64       `json:"roi"` // percent relative to the initial price
	Prompt models.Prompt `json:"prompt"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.Leaderboard(r.Context(), 20)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	entries := make([]leaderboardEntry, 0, len(prompts))
	for i, prompt := range prompts {
		entry := leaderboardEntry{
			Rank:   i + 1,
			Score:  float64(prompt.QualityScore) * (1 + float64(prompt.TotalUsage)/1000),
			Prompt: prompt,
		}
		if initial := market.InitialPrice(prompt.QualityScore); initial > 0 {
			entry.ROI = (prompt.TokenPrice/initial - 1) * 100
		}
		entries = append(entries, entry)
	}
	writeData(w, http.StatusOK, entries)
}

// serviceError maps domain errors onto the error envelope.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var violation *market.RuleViolation
	switch {
	case errors.Is(err, data.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found", nil)
	case errors.As(err, &violation):
		details := map[string]any{"reason": string(violation.Reason)}
		status := http.StatusBadRequest
		if violation.Reason == market.ReasonCooldownActive {
			status = http.StatusTooManyRequests
			details["cooldownUntil"] = violation.CooldownUntil.UTC().Format(time.RFC3339)
		}
		writeError(w, status, violation.Error(), details)
	case errors.Is(err, settlement.ErrExecutionFailed):
		s.log.Error("transaction execution failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "transaction execution failed", nil)
	default:
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func pageParams(r *http.Request) (skip, take int) {
	take = defaultTake
	if raw := r.URL.Query().Get("take"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			take = v
		}
	}
	if take > maxTake {
		take = maxTake
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			skip = v
		}
	}
	return skip, take
}

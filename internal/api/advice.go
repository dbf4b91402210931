package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/PipeSelect/internal/advisor"
	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

type AdviceHandler struct {
	catalog catalog.Provider
	advisor advisor.Client
	logger  *slog.Logger
}

func NewAdviceHandler(p catalog.Provider, a advisor.Client, logger *slog.Logger) *AdviceHandler {
	return &AdviceHandler{catalog: p, advisor: a, logger: logger}
}

type CostSuggestionRequest struct {
	NetworkType string `json:"network_type,omitempty"`
}

type CostSuggestionResponse struct {
	advisor.Suggestion
	SuggestedCost float64 `json:"suggested_cost"`
}

// Suggest handles POST /api/v1/materials/{name}/cost-suggestion
// The answer is advisory; failures here never affect rankings.
func (h *AdviceHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.advisor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cost advisor not configured"})
		return
	}

	var req CostSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	all, err := h.catalog.Materials(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	m, ok := catalog.Find(all, chi.URLParam(r, "name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "material not found"})
		return
	}

	s, err := h.advisor.SuggestCost(r.Context(), m, req.NetworkType)
	if err != nil {
		costSuggestionsTotal.WithLabelValues("failed").Inc()
		h.logger.Warn("cost suggestion failed", "material", m.Name, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "cost suggestion unavailable"})
		return
	}

	costSuggestionsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, CostSuggestionResponse{Suggestion: *s, SuggestedCost: s.Midpoint()})
}

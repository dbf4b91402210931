package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
	"github.com/MikeSquared-Agency/PipeSelect/internal/config"
	"github.com/MikeSquared-Agency/PipeSelect/internal/events"
	"github.com/MikeSquared-Agency/PipeSelect/internal/topsis"
)

type RankingsHandler struct {
	catalog catalog.Provider
	events  events.Client
	cfg     config.RankingConfig
	logger  *slog.Logger
}

func NewRankingsHandler(p catalog.Provider, ev events.Client, cfg config.RankingConfig, logger *slog.Logger) *RankingsHandler {
	return &RankingsHandler{catalog: p, events: ev, cfg: cfg, logger: logger}
}

// RankingRequest is the completed wizard: the network context, the selected
// materials and criteria in selection order, a cost per material and a weight
// per criterion.
type RankingRequest struct {
	NetworkType string             `json:"network_type,omitempty"`
	Pressure    string             `json:"pressure,omitempty"`
	Materials   []string           `json:"materials"`
	Criteria    []string           `json:"criteria"`
	Costs       map[string]float64 `json:"costs,omitempty"`
	Weights     map[string]float64 `json:"weights,omitempty"`
}

// RankedMaterial is one row of the ranking. Score is null when degenerate.
type RankedMaterial struct {
	Rank          int                `json:"rank"`
	Name          string             `json:"name"`
	Score         *float64           `json:"score"`
	Degenerate    bool               `json:"degenerate"`
	ParetoOptimal bool               `json:"pareto_optimal"`
	Values        map[string]float64 `json:"values"`
	Material      catalog.Material   `json:"material"`
}

// RankingResponse carries the ranking plus the computation trail. Trail rows
// follow Materials and its columns follow Criteria.
type RankingResponse struct {
	RunID     string           `json:"run_id"`
	Materials []string         `json:"materials"`
	Criteria  []string         `json:"criteria"`
	Results   []RankedMaterial `json:"results"`
	Frontier  []string         `json:"pareto_frontier"`
	Trail     *topsis.Trail    `json:"trail,omitempty"`
	Gaps      []topsis.Gap     `json:"gaps,omitempty"`
}

var errBadRequest = errors.New("bad request")

// Create handles POST /api/v1/rankings
func (h *RankingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RankingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	runID := uuid.New().String()

	in, err := h.buildInput(r, &req)
	if err != nil {
		if errors.Is(err, errBadRequest) {
			h.reject(runID, err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		rankingsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	gaps := in.Gaps()
	if len(gaps) > 0 {
		keys := make([]string, len(gaps))
		for i, g := range gaps {
			keys[i] = g.String()
		}
		h.logger.Warn("ranking input incomplete, missing entries read as 0", "run_id", runID, "gaps", keys)
	}

	start := time.Now()
	results, err := topsis.Rank(in)
	rankingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, topsis.ErrUnknownCriterion) || errors.Is(err, topsis.ErrDuplicateSelection) {
			h.reject(runID, err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		rankingsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	frontier, err := topsis.Frontier(in)
	if err != nil {
		rankingsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := buildResponse(runID, in, results, frontier, gaps)
	rankingsTotal.WithLabelValues("ok").Inc()
	h.publishCompleted(&req, resp)

	writeJSON(w, http.StatusOK, resp)
}

// buildInput enforces the caller-side contract: materials known and available
// for the network, costs non-negative, weights in range and summing to 1.
func (h *RankingsHandler) buildInput(r *http.Request, req *RankingRequest) (topsis.Input, error) {
	all, err := h.catalog.Materials(r.Context())
	if err != nil {
		return topsis.Input{}, fmt.Errorf("load materials: %w", err)
	}
	criteria, err := h.catalog.Criteria(r.Context())
	if err != nil {
		return topsis.Input{}, fmt.Errorf("load criteria: %w", err)
	}

	available := catalog.Filter(all, req.NetworkType, req.Pressure)
	selected, err := catalog.Select(available, req.Materials)
	if err != nil {
		return topsis.Input{}, fmt.Errorf("%w: %v (not in catalog or not rated for this network)", errBadRequest, err)
	}

	for name, cost := range req.Costs {
		if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
			return topsis.Input{}, fmt.Errorf("%w: invalid cost %v for %s", errBadRequest, cost, name)
		}
	}

	weights := topsis.Weights(req.Weights)
	if err := weights.ValidateRange(req.Criteria); err != nil {
		return topsis.Input{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if h.cfg.EnforceWeightSum && len(req.Criteria) > 0 {
		tolerance := h.cfg.WeightTolerance
		if tolerance <= 0 {
			tolerance = topsis.DefaultWeightTolerance
		}
		if err := weights.Validate(req.Criteria, tolerance); err != nil {
			return topsis.Input{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	return topsis.Input{
		Materials:         selected,
		CriteriaKeys:      req.Criteria,
		Criteria:          criteria,
		CostByMaterial:    req.Costs,
		WeightByCriterion: req.Weights,
	}, nil
}

func buildResponse(runID string, in topsis.Input, results []topsis.Result, frontier []string, gaps []topsis.Gap) *RankingResponse {
	onFrontier := make(map[string]bool, len(frontier))
	for _, name := range frontier {
		onFrontier[name] = true
	}

	resp := &RankingResponse{
		RunID:     runID,
		Materials: make([]string, len(in.Materials)),
		Criteria:  in.CriteriaKeys,
		Results:   make([]RankedMaterial, len(results)),
		Frontier:  frontier,
		Gaps:      gaps,
	}
	if resp.Criteria == nil {
		resp.Criteria = []string{}
	}
	for i, m := range in.Materials {
		resp.Materials[i] = m.Name
	}

	for i, res := range results {
		row := RankedMaterial{
			Rank:          i + 1,
			Name:          res.Name,
			ParetoOptimal: onFrontier[res.Name],
			Values:        res.Values,
			Material:      res.Material,
		}
		if topsis.IsDegenerate(res.Score) {
			row.Degenerate = true
			degenerateScores.Inc()
		} else {
			score := res.Score
			row.Score = &score
		}
		resp.Results[i] = row
	}
	if len(results) > 0 {
		resp.Trail = results[0].Trail
	}
	return resp
}

func (h *RankingsHandler) publishCompleted(req *RankingRequest, resp *RankingResponse) {
	if h.events == nil {
		return
	}
	evt := events.RankingCompletedEvent{
		RunID:       resp.RunID,
		NetworkType: req.NetworkType,
		Pressure:    req.Pressure,
		Materials:   resp.Materials,
		Criteria:    resp.Criteria,
		Timestamp:   time.Now().UTC(),
	}
	for _, row := range resp.Results {
		if row.Degenerate {
			evt.Degenerate++
		}
	}
	if len(resp.Results) > 0 && !resp.Results[0].Degenerate {
		evt.Winner = resp.Results[0].Name
	}
	if err := h.events.Publish(events.SubjectRankingCompleted(resp.RunID), evt); err != nil {
		h.logger.Warn("failed to publish ranking event", "run_id", resp.RunID, "error", err)
	}
}

func (h *RankingsHandler) reject(runID string, reason error) {
	rankingsTotal.WithLabelValues("rejected").Inc()
	h.logger.Info("ranking rejected", "run_id", runID, "reason", reason.Error())
	if h.events == nil {
		return
	}
	evt := events.RankingRejectedEvent{RunID: runID, Reason: reason.Error(), Timestamp: time.Now().UTC()}
	if err := h.events.Publish(events.SubjectRankingRejected(runID), evt); err != nil {
		h.logger.Warn("failed to publish ranking event", "run_id", runID, "error", err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/PipeSelect/internal/advisor"
	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
	"github.com/MikeSquared-Agency/PipeSelect/internal/config"
	"github.com/MikeSquared-Agency/PipeSelect/internal/events"
)

// Mocks
type published struct {
	subject string
	data    interface{}
}

type mockEvents struct {
	mu   sync.Mutex
	sent []published
}

func (m *mockEvents) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, published{subject, data})
	return nil
}
func (m *mockEvents) Close() {}

type MockAdvisor struct {
	mock.Mock
}

func (m *MockAdvisor) SuggestCost(ctx context.Context, mat catalog.Material, networkType string) (*advisor.Suggestion, error) {
	args := m.Called(ctx, mat, networkType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*advisor.Suggestion), args.Error(1)
}

type failingCatalog struct{}

func (failingCatalog) Materials(context.Context) ([]catalog.Material, error) {
	return nil, errors.New("db down")
}
func (failingCatalog) Criteria(context.Context) ([]catalog.Criterion, error) {
	return nil, errors.New("db down")
}

func testConfig() *config.Config {
	return &config.Config{
		Advisor: config.AdvisorConfig{RateLimitPerMinute: 100},
		Ranking: config.RankingConfig{EnforceWeightSum: true, WeightTolerance: 0.001},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func setupTestRouter(t *testing.T, adv advisor.Client) (http.Handler, *mockEvents) {
	t.Helper()
	p, err := catalog.Default()
	require.NoError(t, err)
	ev := &mockEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(p, ev, adv, testConfig(), logger), ev
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListMaterials(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/materials?network_type=gaz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []catalog.Material
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.NotEmpty(t, got)
	for _, m := range got {
		assert.Contains(t, m.NetworkTypes, "gaz")
	}
}

func TestListCriteria(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/criteria", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []catalog.Criterion
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Contains(t, got, catalog.Criterion{Key: catalog.CostKey, Label: "Coût", IsBenefit: false})
}

func TestCatalogFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(failingCatalog{}, nil, nil, testConfig(), logger)

	req := httptest.NewRequest("GET", "/api/v1/materials", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = postJSON(router, "/api/v1/rankings", `{"materials":["PVC"],"criteria":["durabilite"],"weights":{"durabilite":1}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateRanking(t *testing.T) {
	router, ev := setupTestRouter(t, nil)

	body := `{
		"network_type": "eau_potable",
		"materials": ["PVC", "Cuivre", "PEHD"],
		"criteria": ["durabilite", "cout"],
		"costs": {"PVC": 10, "Cuivre": 45, "PEHD": 14},
		"weights": {"durabilite": 0.4, "cout": 0.6}
	}`
	w := postJSON(router, "/api/v1/rankings", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RankingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, []string{"PVC", "Cuivre", "PEHD"}, resp.Materials)
	assert.Equal(t, []string{"durabilite", "cout"}, resp.Criteria)
	require.Len(t, resp.Results, 3)
	for i, row := range resp.Results {
		assert.Equal(t, i+1, row.Rank)
		require.NotNil(t, row.Score)
		assert.False(t, row.Degenerate)
	}
	assert.Equal(t, 45.0, resultNamed(resp, "Cuivre").Values["cout"])
	assert.Equal(t, "PVC", resp.Results[0].Name)
	assert.Equal(t, "Cuivre", resp.Results[2].Name)
	assert.InDelta(t, 0.8836, *resp.Results[0].Score, 1e-4)
	assert.Equal(t, []string{"PVC", "Cuivre", "PEHD"}, resp.Frontier)

	require.NotNil(t, resp.Trail)
	assert.Len(t, resp.Trail.Initial, 3)
	assert.Equal(t, 10.0, resp.Trail.Initial[0][1])
	assert.Empty(t, resp.Gaps)

	require.Len(t, ev.sent, 1)
	assert.Equal(t, events.SubjectRankingCompleted(resp.RunID), ev.sent[0].subject)
	evt := ev.sent[0].data.(events.RankingCompletedEvent)
	assert.Equal(t, resp.Results[0].Name, evt.Winner)
	assert.Equal(t, "eau_potable", evt.NetworkType)
}

func resultNamed(resp RankingResponse, name string) RankedMaterial {
	for _, r := range resp.Results {
		if r.Name == name {
			return r
		}
	}
	return RankedMaterial{}
}

func TestCreateRankingDegenerateScoreIsNull(t *testing.T) {
	router, ev := setupTestRouter(t, nil)

	w := postJSON(router, "/api/v1/rankings", `{"materials":["PVC"],"criteria":["durabilite"],"weights":{"durabilite":1}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw struct {
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	row := raw.Results[0]
	assert.Nil(t, row["score"])
	assert.Equal(t, true, row["degenerate"])

	evt := ev.sent[0].data.(events.RankingCompletedEvent)
	assert.Equal(t, 1, evt.Degenerate)
	assert.Empty(t, evt.Winner)
}

func TestCreateRankingEmptySelection(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	w := postJSON(router, "/api/v1/rankings", `{"materials":[],"criteria":[]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RankingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.Results)
	assert.Nil(t, resp.Trail)
}

func TestCreateRankingReportsGaps(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	body := `{"materials":["PVC","PEHD"],"criteria":["durabilite","cout"],"costs":{"PVC":10},"weights":{"durabilite":0.5,"cout":0.5}}`
	w := postJSON(router, "/api/v1/rankings", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RankingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Gaps, 1)
	assert.Equal(t, "PEHD", resp.Gaps[0].Key)
	assert.Equal(t, 0.0, resultNamed(resp, "PEHD").Values["cout"])
}

func TestCreateRankingValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"materials":`},
		{"unknown material", `{"materials":["Plomb"],"criteria":["durabilite"],"weights":{"durabilite":1}}`},
		{"material not rated for network", `{"network_type":"gaz","materials":["PVC"],"criteria":["durabilite"],"weights":{"durabilite":1}}`},
		{"negative cost", `{"materials":["PVC"],"criteria":["cout"],"costs":{"PVC":-1},"weights":{"cout":1}}`},
		{"weights do not sum to one", `{"materials":["PVC","PEHD"],"criteria":["durabilite","cout"],"weights":{"durabilite":0.5,"cout":0.2}}`},
		{"weight out of range", `{"materials":["PVC","PEHD"],"criteria":["durabilite","cout"],"weights":{"durabilite":1.5,"cout":-0.5}}`},
		{"unknown criterion", `{"materials":["PVC","PEHD"],"criteria":["flexibilite"],"weights":{"flexibilite":1}}`},
		{"duplicate material", `{"materials":["PVC","PVC"],"criteria":["durabilite"],"weights":{"durabilite":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupTestRouter(t, nil)
			w := postJSON(router, "/api/v1/rankings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateRankingRejectionPublishesEvent(t *testing.T) {
	router, ev := setupTestRouter(t, nil)

	w := postJSON(router, "/api/v1/rankings", `{"materials":["PVC"],"criteria":["flexibilite"],"weights":{"flexibilite":1}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, ev.sent, 1)
	_, ok := ev.sent[0].data.(events.RankingRejectedEvent)
	assert.True(t, ok)
}

func TestCreateRankingWeightSumNotEnforced(t *testing.T) {
	p, err := catalog.Default()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Ranking.EnforceWeightSum = false
	router := NewRouter(p, nil, nil, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := postJSON(router, "/api/v1/rankings", `{"materials":["PVC","PEHD"],"criteria":["durabilite"],"weights":{"durabilite":0.3}}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCostSuggestion(t *testing.T) {
	adv := &MockAdvisor{}
	adv.On("SuggestCost", mock.Anything, mock.MatchedBy(func(m catalog.Material) bool {
		return m.Name == "Acier galvanisé"
	}), "gaz").Return(&advisor.Suggestion{Material: "Acier galvanisé", Range: "20-30 €/m", Low: 20, High: 30}, nil)

	router, _ := setupTestRouter(t, adv)
	w := postJSON(router, "/api/v1/materials/"+url.PathEscape("Acier galvanisé")+"/cost-suggestion", `{"network_type":"gaz"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CostSuggestionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "20-30 €/m", resp.Range)
	assert.Equal(t, 25.0, resp.SuggestedCost)
	adv.AssertExpectations(t)
}

func TestCostSuggestionFailures(t *testing.T) {
	t.Run("advisor not configured", func(t *testing.T) {
		router, _ := setupTestRouter(t, nil)
		w := postJSON(router, "/api/v1/materials/PVC/cost-suggestion", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unknown material", func(t *testing.T) {
		router, _ := setupTestRouter(t, &MockAdvisor{})
		w := postJSON(router, "/api/v1/materials/Plomb/cost-suggestion", `{}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty body accepted", func(t *testing.T) {
		adv := &MockAdvisor{}
		adv.On("SuggestCost", mock.Anything, mock.Anything, "").Return(&advisor.Suggestion{Low: 1, High: 3}, nil)
		router, _ := setupTestRouter(t, adv)
		w := postJSON(router, "/api/v1/materials/PVC/cost-suggestion", "")
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("upstream failure", func(t *testing.T) {
		adv := &MockAdvisor{}
		adv.On("SuggestCost", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
		router, _ := setupTestRouter(t, adv)
		w := postJSON(router, "/api/v1/materials/PVC/cost-suggestion", `{}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestMetricsRouter(t *testing.T) {
	router := NewMetricsRouter()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pipeselect_ranking_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	req := httptest.NewRequest("OPTIONS", "/api/v1/rankings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateRankingWeightRangeCheckedWithoutSumEnforcement(t *testing.T) {
	p, err := catalog.Default()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Ranking.EnforceWeightSum = false
	router := NewRouter(p, nil, nil, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body := `{"materials":["PVC","PEHD"],"criteria":["durabilite","resistance_pression"],"weights":{"durabilite":1e300,"resistance_pression":1e300}}`
	w := postJSON(router, "/api/v1/rankings", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "weight out of [0,1]")
}

func TestCreateRankingHugeCostStillRanks(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	body := `{"materials":["PVC","PEHD"],"criteria":["cout"],"costs":{"PVC":1e200,"PEHD":1},"weights":{"cout":1}}`
	w := postJSON(router, "/api/v1/rankings", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RankingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "PEHD", resp.Results[0].Name)
	for _, row := range resp.Results {
		assert.False(t, row.Degenerate)
	}
	assert.InDelta(t, 1.0, resp.Trail.Normalized[0][0], 1e-9)
}

func TestCostSuggestionRateLimitIgnoresForwardedFor(t *testing.T) {
	adv := &MockAdvisor{}
	adv.On("SuggestCost", mock.Anything, mock.Anything, mock.Anything).Return(&advisor.Suggestion{Low: 1, High: 3}, nil)
	p, err := catalog.Default()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Advisor.RateLimitPerMinute = 1
	router := NewRouter(p, nil, adv, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var codes []int
	for _, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest("POST", "/api/v1/materials/PVC/cost-suggestion", bytes.NewBufferString(`{}`))
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestWriteJSONUnencodableBody(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]float64{"score": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to encode response")
}

package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

type CatalogHandler struct {
	catalog catalog.Provider
}

func NewCatalogHandler(p catalog.Provider) *CatalogHandler {
	return &CatalogHandler{catalog: p}
}

// Materials handles GET /api/v1/materials?network_type=&pressure=
func (h *CatalogHandler) Materials(w http.ResponseWriter, r *http.Request) {
	all, err := h.catalog.Materials(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, catalog.Filter(all, q.Get("network_type"), q.Get("pressure")))
}

// Criteria handles GET /api/v1/criteria
func (h *CatalogHandler) Criteria(w http.ResponseWriter, r *http.Request) {
	criteria, err := h.catalog.Criteria(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if criteria == nil {
		criteria = []catalog.Criterion{}
	}
	writeJSON(w, http.StatusOK, criteria)
}

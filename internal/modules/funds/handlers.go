package funds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TopTierChecker decides top-tier eligibility; implemented by the
// benchmark gate.
type TopTierChecker interface {
	QualifiesForTopTier(ctx context.Context, fundCode string, stars int) bool
}

// Handler handles fund HTTP requests
type Handler struct {
	service *Service
	reports *ReportService
	gate    TopTierChecker
	log     zerolog.Logger
}

// NewHandler creates a new funds handler
func NewHandler(service *Service, reports *ReportService, gate TopTierChecker, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		reports: reports,
		gate:    gate,
		log:     log.With().Str("handler", "funds").Logger(),
	}
}

// batchRequest is the body of POST /api/funds/returns/batch
type batchRequest struct {
	FundIDs      []string `json:"fund_ids"`
	Years        []int    `json:"years,omitempty"`
	UseCache     *bool    `json:"use_cache,omitempty"`
	IncludeScore bool     `json:"include_score,omitempty"`
}

// batchFundResult is one fund's slice of the batch response
type batchFundResult struct {
	Returns YearReturns  `json:"returns"`
	Score   *ScoreResult `json:"score,omitempty"`
}

// HandleBatchReturns handles POST /api/funds/returns/batch
func (h *Handler) HandleBatchReturns(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.FundIDs) == 0 {
		http.Error(w, "fund_ids is required", http.StatusBadRequest)
		return
	}

	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}

	result, err := h.service.BatchYearReturns(r.Context(), req.FundIDs, req.Years, useCache, req.IncludeScore)
	if err != nil {
		if errors.Is(err, ErrQueryTimeout) {
			http.Error(w, "Bulk query timed out", http.StatusGatewayTimeout)
			return
		}
		h.log.Error().Err(err).Msg("Batch returns failed")
		http.Error(w, "Failed to compute returns", http.StatusInternalServerError)
		return
	}

	data := make(map[string]batchFundResult, len(result.Returns))
	for code, yearVals := range result.Returns {
		entry := batchFundResult{Returns: yearVals}
		if result.Scores != nil {
			if score, ok := result.Scores[code]; ok {
				s := score
				entry.Score = &s
			}
		}
		data[code] = entry
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp":    time.Now().Format(time.RFC3339),
			"years":        result.Years,
			"cache_misses": result.Misses,
		},
	})
}

// HandleFundScore handles GET /api/funds/{id}/score
func (h *Handler) HandleFundScore(w http.ResponseWriter, r *http.Request) {
	fundCode := chi.URLParam(r, "id")

	score, err := h.service.FundScore(r.Context(), fundCode)
	if err != nil {
		h.log.Error().Err(err).Str("fund", fundCode).Msg("Scoring failed")
		http.Error(w, "Failed to compute score", http.StatusInternalServerError)
		return
	}

	h.writeData(w, score)
}

// HandlePeriodReturns handles GET /api/funds/{id}/returns
func (h *Handler) HandlePeriodReturns(w http.ResponseWriter, r *http.Request) {
	fundCode := chi.URLParam(r, "id")

	ladder, err := h.service.PeriodReturns(r.Context(), fundCode)
	if err != nil {
		h.log.Error().Err(err).Str("fund", fundCode).Msg("Period returns failed")
		http.Error(w, "Failed to compute returns", http.StatusInternalServerError)
		return
	}

	h.writeData(w, ladder)
}

// HandleRiskMetrics handles GET /api/funds/{id}/risk?days=365
func (h *Handler) HandleRiskMetrics(w http.ResponseWriter, r *http.Request) {
	fundCode := chi.URLParam(r, "id")

	days := 365
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	metrics, err := h.service.RiskMetrics(r.Context(), fundCode, days)
	if err != nil {
		h.log.Error().Err(err).Str("fund", fundCode).Msg("Risk metrics failed")
		http.Error(w, "Failed to compute risk metrics", http.StatusInternalServerError)
		return
	}

	h.writeData(w, metrics)
}

// HandleReport handles GET /api/funds/{id}/report
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	fundCode := chi.URLParam(r, "id")

	report, err := h.reports.Generate(r.Context(), fundCode)
	if err != nil {
		h.log.Error().Err(err).Str("fund", fundCode).Msg("Report failed")
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.Error(w, "Fund not found", http.StatusNotFound)
		return
	}

	h.writeData(w, report)
}

// HandleTopTier handles GET /api/funds/{id}/toptier?stars=4
func (h *Handler) HandleTopTier(w http.ResponseWriter, r *http.Request) {
	fundCode := chi.URLParam(r, "id")

	stars, err := strconv.Atoi(r.URL.Query().Get("stars"))
	if err != nil {
		http.Error(w, "Invalid stars parameter", http.StatusBadRequest)
		return
	}

	qualifies := h.gate.QualifiesForTopTier(r.Context(), fundCode, stars)
	h.writeData(w, map[string]bool{"qualifies": qualifies})
}

// HandleSearch handles GET /api/funds/search?q=&limit=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	results, err := h.service.SearchFunds(r.Context(), keyword, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Search failed")
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	h.writeData(w, results)
}

// HandleFilterOptions handles GET /api/funds/filters
func (h *Handler) HandleFilterOptions(w http.ResponseWriter, r *http.Request) {
	companies, fundTypes, err := h.service.FilterOptions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Filter options failed")
		http.Error(w, "Failed to load filter options", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"companies":  companies,
		"fund_types": fundTypes,
	})
}

// HandleTopPerformers handles GET /api/funds/top?year=&limit=
func (h *Handler) HandleTopPerformers(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid year parameter", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	performers, err := h.service.TopPerformers(r.Context(), year, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Top performers failed")
		http.Error(w, "Failed to rank funds", http.StatusInternalServerError)
		return
	}

	h.writeData(w, performers)
}

// HandleCacheStatus handles GET /api/cache/status
func (h *Handler) HandleCacheStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CacheStatus(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Cache status failed")
		http.Error(w, "Failed to read cache status", http.StatusInternalServerError)
		return
	}

	h.writeData(w, status)
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

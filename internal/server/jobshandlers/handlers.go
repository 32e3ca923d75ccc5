// Package jobshandlers exposes the C6 job orchestrator over HTTP: job
// start, history, detail, and the progress SSE stream.
package jobshandlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/catalystengine/screener/internal/jobs"
	"github.com/catalystengine/screener/internal/providers"
)

// Handler serves the /jobs/screening HTTP surface.
type Handler struct {
	jobs        *jobs.Store
	universe    providers.UniverseProvider
	series      func(ctx context.Context, ticker string) (jobs.CandidateSeries, error)
	financials  jobs.FinancialsLookup
	marketTrend jobs.MarketTrendLookup
	log         zerolog.Logger
}

// New builds the jobs handler. financials and marketTrend feed the C4
// leadership stage RunScreeningJob runs on the VCP survivor set.
func New(store *jobs.Store, universe providers.UniverseProvider, series func(ctx context.Context, ticker string) (jobs.CandidateSeries, error), financials jobs.FinancialsLookup, marketTrend jobs.MarketTrendLookup, log zerolog.Logger) *Handler {
	return &Handler{jobs: store, universe: universe, series: series, financials: financials, marketTrend: marketTrend, log: log.With().Str("handler", "jobs").Logger()}
}

// RegisterRoutes wires this handler's routes onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs/screening", func(r chi.Router) {
		r.Post("/start", h.startJob)
		r.Get("/stream/{jobID}", h.streamProgress)
		r.Get("/history", h.jobHistory)
		r.Get("/history/{jobID}", h.jobDetail)
	})
}

func (h *Handler) startJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Options json.RawMessage `json:"options"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	jobID, err := h.jobs.CreateJob(jobs.ScreeningJobType, body.Options, "http", "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job", err.Error(), 0)
		return
	}

	go h.jobs.RunScreeningJob(context.Background(), jobID, h.universe, h.series, h.financials, h.marketTrend)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (h *Handler) jobHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	skip := queryInt(r, "skip", 0)

	records, err := h.jobs.ListJobHistory(limit, skip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job history", err.Error(), 0)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (h *Handler) jobDetail(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !jobs.IsValidJobID(jobID) {
		writeError(w, http.StatusBadRequest, "malformed job id", "", 0)
		return
	}

	record, err := h.jobs.GetJobDetail(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown job id", err.Error(), 0)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

func extractJobID(r *http.Request) string {
	return chi.URLParam(r, "jobID")
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeError(w http.ResponseWriter, status int, errMsg, details string, dependencyStatusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"error": errMsg}
	if details != "" {
		body["details"] = details
	}
	if dependencyStatusCode != 0 {
		body["dependency_status_code"] = dependencyStatusCode
	}
	_ = json.NewEncoder(w).Encode(body)
}

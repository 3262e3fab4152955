// Package handler serves archived grading runs as read-only JSON.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/report"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store *store.Store
}

// New creates a new Handler.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// RunDetail is the body of GET /api/runs/{runID}.
type RunDetail struct {
	Run      model.RunInfo        `json:"run"`
	Summary  model.CohortSummary  `json:"summary"`
	Metadata map[string]string    `json:"metadata"`
	Issues   []model.GradingIssue `json:"issues"`
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/runs", func(r chi.Router) {
		r.Use(i18n.Middleware)
		r.Get("/", h.handleListRuns)
		r.Get("/{runID}", h.handleGetRun)
		r.Get("/{runID}/questions", h.handleQuestions)
		r.Get("/{runID}/students", h.handleStudents)
		r.Get("/{runID}/export", h.handleExport)
		r.Get("/{runID}/report", h.handleReport)
	})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.RunInfo{}
	}
	writeJSON(w, runs)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, summary, err := h.store.GetRun(runID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	md, err := h.store.RunMetadata(runID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	issues, err := h.store.GradingErrors(runID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if issues == nil {
		issues = []model.GradingIssue{}
	}
	writeJSON(w, RunDetail{Run: run, Summary: summary, Metadata: md, Issues: issues})
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, _, err := h.store.GetRun(runID); err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.store.QuestionStats(runID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stats == nil {
		stats = []model.QuestionStatistics{}
	}
	writeJSON(w, stats)
}

func (h *Handler) handleStudents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, _, err := h.store.GetRun(runID); err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.store.StudentStats(runID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stats == nil {
		stats = []model.StudentStatistics{}
	}
	writeJSON(w, stats)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.ExportRun(chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, exp)
}

// handleReport renders the question report of an archived run in the
// language negotiated for the request.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.ExportRun(chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res := report.Results{
		Analysis: model.Analysis{Summary: exp.Summary, Questions: exp.Questions, Students: exp.Students},
		Issues:   exp.Issues,
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteQuestions(r.Context(), w, res); err != nil {
		slog.Error("render error", "error", err)
	}
}

// fail maps store errors onto localized HTTP errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, i18n.T(r.Context(), "ErrRunNotFound"), http.StatusNotFound)
		return
	}
	slog.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, i18n.T(r.Context(), "ErrInternal"), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

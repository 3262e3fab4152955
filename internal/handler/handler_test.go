package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	r := chi.NewRouter()
	New(s).Routes(r)
	return r, s
}

func seedRun(t *testing.T, s *store.Store) {
	t.Helper()
	err := s.SaveRun(model.RunExport{
		Run:     model.RunInfo{ID: "r1", ManifestRunID: "m1", GradedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC), Students: 1, MeanPercentage: 50},
		Summary: model.CohortSummary{Students: 1, MeanScore: 4},
		Questions: []model.QuestionStatistics{{QuestionKey: "geo/a", Group: "geo", Text: "Capital of France?", Correct: 1,
			Difficulty: model.Defined(1), DifficultyRating: "easy", DiscriminationRating: "n/a"}},
		Students: []model.StudentStatistics{{StudentID: "s1", VariantID: 1, RawScore: 4, MaxScore: 8, Percentage: 50}},
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SetMetadata("r1", "seed", "42"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
}

func get(t *testing.T, h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListRunsEmpty(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := get(t, h, "/api/runs/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %q", rec.Body.String())
	}
}

func TestGetRun(t *testing.T) {
	h, s := newTestRouter(t)
	seedRun(t, s)

	rec := get(t, h, "/api/runs/r1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var detail RunDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Run.ManifestRunID != "m1" {
		t.Errorf("expected manifest run m1, got %q", detail.Run.ManifestRunID)
	}
	if detail.Metadata["seed"] != "42" {
		t.Errorf("expected seed metadata, got %v", detail.Metadata)
	}
}

func TestRunNotFoundIsLocalized(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		target string
		header map[string]string
		want   string
	}{
		{"/api/runs/missing", nil, "Run not found"},
		{"/api/runs/missing/questions?lang=it", nil, "Esecuzione non trovata"},
		{"/api/runs/missing/students", map[string]string{"Accept-Language": "it-IT,it;q=0.9"}, "Esecuzione non trovata"},
	}
	for _, tt := range tests {
		rec := get(t, h, tt.target, tt.header)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", tt.target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: expected body to contain %q, got %q", tt.target, tt.want, rec.Body.String())
		}
	}
}

func TestStatisticsEndpoints(t *testing.T) {
	h, s := newTestRouter(t)
	seedRun(t, s)

	rec := get(t, h, "/api/runs/r1/questions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("questions: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"discrimination":null`) {
		t.Errorf("expected undefined discrimination as null, got %s", rec.Body.String())
	}

	rec = get(t, h, "/api/runs/r1/students", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("students: expected 200, got %d", rec.Code)
	}
	var students []model.StudentStatistics
	if err := json.Unmarshal(rec.Body.Bytes(), &students); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(students) != 1 || students[0].StudentID != "s1" {
		t.Errorf("unexpected students %+v", students)
	}

	rec = get(t, h, "/api/runs/r1/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rec.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	h, s := newTestRouter(t)
	seedRun(t, s)

	rec := get(t, h, "/api/runs/r1/report?lang=en", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "=== Question Report ===") {
		t.Errorf("expected report title, got %q", body)
	}
	if !strings.Contains(body, "geo: Capital of France?") {
		t.Errorf("expected question heading, got %q", body)
	}
}

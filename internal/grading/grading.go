// Package grading scores student responses against the answer keys of their
// declared variants.
package grading

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/answerkey"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Grader is safe for concurrent use; it holds no mutable state.
type Grader struct {
	keys     map[string]model.AnswerKey
	catalog  map[string]model.Question
	defaults model.Points
	format   model.LabelFormat
}

// New builds a grader over the keys and question catalog of one manifest.
func New(keys []model.AnswerKey, catalog map[string]model.Question, defaults model.Points, format model.LabelFormat) *Grader {
	return &Grader{
		keys:     answerkey.Index(keys),
		catalog:  catalog,
		defaults: defaults,
		format:   format,
	}
}

// Grade scores one response. Blank answers are unanswered, answers naming the
// key's position are correct, and anything else is incorrect.
func (g *Grader) Grade(resp model.StudentResponse) (model.GradedRecord, error) {
	key, ok := g.keys[resp.VariantID]
	if !ok {
		return model.GradedRecord{}, &model.UnknownVariantError{StudentID: resp.StudentID, VariantID: resp.VariantID}
	}

	rec := model.GradedRecord{
		StudentID: resp.StudentID,
		VariantID: key.VariantID,
		Answers:   make([]model.GradedAnswer, 0, len(key.Entries)),
	}
	for _, e := range key.Entries {
		q, ok := g.catalog[e.QuestionKey]
		if !ok {
			return model.GradedRecord{}, fmt.Errorf("variant %d position %d: unknown question %q", key.VariantID, e.Position+1, e.QuestionKey)
		}
		pts := q.Scoring.Resolve(g.defaults)
		ans := model.GradedAnswer{
			Position:     e.Position,
			QuestionKey:  e.QuestionKey,
			Group:        q.Group,
			Submitted:    strings.TrimSpace(resp.Answer(e.Position)),
			CorrectLabel: e.Label,
		}

		switch pos, parsed := g.format.Position(ans.Submitted); {
		case ans.Submitted == model.NoAnswer:
			ans.Outcome, ans.Points = model.OutcomeUnanswered, pts.NoAnswer
			rec.UnansweredCount++
			rec.NoAnswerPoints += pts.NoAnswer
		case parsed && pos == e.Correct:
			ans.Outcome, ans.Points = model.OutcomeCorrect, pts.Correct
			rec.CorrectCount++
			rec.CorrectPoints += pts.Correct
		default:
			ans.Outcome, ans.Points = model.OutcomeIncorrect, pts.Wrong
			rec.IncorrectCount++
			rec.WrongPoints += pts.Wrong
		}
		rec.RawScore += ans.Points
		rec.MaxScore += pts.Correct
		rec.Answers = append(rec.Answers, ans)
	}
	rec.Percentage = Percentage(rec.RawScore, rec.MaxScore)
	return rec, nil
}

// GradeAll grades every response. Responses that cannot be graded are
// skipped and their errors returned; the rest of the cohort is still graded.
func (g *Grader) GradeAll(resps []model.StudentResponse) ([]model.GradedRecord, []error) {
	var (
		recs []model.GradedRecord
		errs []error
	)
	for _, r := range resps {
		rec, err := g.Grade(r)
		if err != nil {
			slog.Warn("grading skipped student", "student_id", r.StudentID, "variant_id", r.VariantID, "error", err)
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	slog.Info("graded responses", "graded", len(recs), "errors", len(errs))
	return recs, errs
}

// Percentage is raw/max scaled to 0-100, or 0 when max is not positive.
func Percentage(raw, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return raw / maxScore * 100
}

// Issues converts grading errors into report entries.
func Issues(errs []error) []model.GradingIssue {
	issues := make([]model.GradingIssue, 0, len(errs))
	for _, err := range errs {
		issue := model.GradingIssue{Message: err.Error()}
		var uv *model.UnknownVariantError
		if errors.As(err, &uv) {
			issue.StudentID, issue.VariantID = uv.StudentID, uv.VariantID
		}
		issues = append(issues, issue)
	}
	return issues
}

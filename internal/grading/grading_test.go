package grading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

func ptr(f float64) *float64 { return &f }

// fixture: variant 1 shows France as [Rome, Paris, Madrid] and Italy in
// canonical order; Italy awards 2 points and takes 1 away when wrong.
func fixture() ([]model.AnswerKey, map[string]model.Question) {
	france := model.Question{Key: "geo/france", Group: "geo", Text: "Capital of France?", Correct: "Paris", Distractors: []string{"Rome", "Madrid"}}
	italy := model.Question{Key: "geo/italy", Group: "geo", Text: "Capital of Italy?", Correct: "Rome", Distractors: []string{"Paris", "Madrid"}}
	italy.Scoring = model.Scoring{Correct: ptr(2), Wrong: ptr(-1)}
	catalog := map[string]model.Question{france.Key: france, italy.Key: italy}
	keys := []model.AnswerKey{{VariantID: 1, Entries: []model.KeyEntry{
		{Position: 0, QuestionKey: "geo/france", Correct: 1, Label: "B"},
		{Position: 1, QuestionKey: "geo/italy", Correct: 0, Label: "A"},
	}}}
	return keys, catalog
}

func newGrader() *Grader {
	keys, catalog := fixture()
	return New(keys, catalog, model.Points{Correct: 1, Wrong: 0, NoAnswer: 0}, model.LabelLettersUpper)
}

func TestGradeCapitalOfFrance(t *testing.T) {
	g := newGrader()

	tests := []struct {
		name    string
		answer  string
		outcome model.Outcome
		points  float64
	}{
		{"correct label", "B", model.OutcomeCorrect, 1},
		{"lower case", "b", model.OutcomeCorrect, 1},
		{"wrong label", "A", model.OutcomeIncorrect, 0},
		{"blank", "", model.OutcomeUnanswered, 0},
		{"out of range", "Z", model.OutcomeIncorrect, 0},
		{"unparseable", "??", model.OutcomeIncorrect, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := g.Grade(model.StudentResponse{StudentID: "s1", VariantID: "1", Answers: []string{tt.answer}})
			require.NoError(t, err)
			got := rec.Answers[0]
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.points, got.Points)
			assert.Equal(t, "B", got.CorrectLabel)
			assert.Equal(t, "geo", got.Group)
		})
	}
}

func TestGradeScoringConsistency(t *testing.T) {
	g := newGrader()

	tests := []struct {
		name    string
		answers []string
		raw     float64
		pct     float64
		counts  [3]int
	}{
		{"all correct", []string{"B", "A"}, 3, 100, [3]int{2, 0, 0}},
		{"negative wrong points", []string{"B", "C"}, 0, 0, [3]int{1, 1, 0}},
		{"wrong and blank", []string{"C"}, 0, 0, [3]int{0, 1, 1}},
		{"only italy", []string{"", "A"}, 2, 200.0 / 3, [3]int{1, 0, 1}},
		{"net negative", []string{"A", "B"}, -1, -100.0 / 3, [3]int{0, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := g.Grade(model.StudentResponse{StudentID: "s", VariantID: "1", Answers: tt.answers})
			require.NoError(t, err)
			assert.InDelta(t, tt.raw, rec.RawScore, 1e-9)
			assert.InDelta(t, 3, rec.MaxScore, 1e-9)
			assert.InDelta(t, tt.pct, rec.Percentage, 1e-9)
			assert.Equal(t, tt.counts, [3]int{rec.CorrectCount, rec.IncorrectCount, rec.UnansweredCount})
			assert.InDelta(t, rec.RawScore, rec.CorrectPoints+rec.WrongPoints+rec.NoAnswerPoints, 1e-9)

			sum := 0.0
			for _, a := range rec.Answers {
				sum += a.Points
			}
			assert.InDelta(t, rec.RawScore, sum, 1e-9)
		})
	}
}

func TestGradeIsIdempotent(t *testing.T) {
	g := newGrader()
	resp := model.StudentResponse{StudentID: "s", VariantID: "1", Answers: []string{"B", ""}}
	first, err := g.Grade(resp)
	require.NoError(t, err)
	second, err := g.Grade(resp)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGradeAllAccumulatesUnknownVariants(t *testing.T) {
	g := newGrader()
	recs, errs := g.GradeAll([]model.StudentResponse{
		{StudentID: "s1", VariantID: "1", Answers: []string{"B", "A"}},
		{StudentID: "s2", VariantID: "7", Answers: []string{"B", "A"}},
		{StudentID: "s3", VariantID: "1", Answers: []string{"A"}},
		{StudentID: "s4", VariantID: "X"},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, "s1", recs[0].StudentID)
	assert.Equal(t, "s3", recs[1].StudentID)

	require.Len(t, errs, 2)
	var uv *model.UnknownVariantError
	require.True(t, errors.As(errs[0], &uv))
	assert.Equal(t, "s2", uv.StudentID)
	assert.Equal(t, "7", uv.VariantID)

	issues := Issues(errs)
	require.Len(t, issues, 2)
	assert.Equal(t, model.GradingIssue{StudentID: "s4", VariantID: "X", Message: errs[1].Error()}, issues[1])
}

func TestGradeAllReportsBlankVariant(t *testing.T) {
	g := newGrader()
	recs, errs := g.GradeAll([]model.StudentResponse{
		{StudentID: "alice", VariantID: "1", Answers: []string{"B", "A"}},
		{StudentID: "bob", VariantID: "", Answers: []string{"B", "A"}},
		{StudentID: "carol", VariantID: "1", Answers: []string{"C", ""}},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, "alice", recs[0].StudentID)
	assert.Equal(t, "carol", recs[1].StudentID)

	issues := Issues(errs)
	require.Len(t, issues, 1)
	assert.Equal(t, "bob", issues[0].StudentID)
	assert.Empty(t, issues[0].VariantID)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 50.0, Percentage(2, 4))
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.Equal(t, 0.0, Percentage(3, -2))
}

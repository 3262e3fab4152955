package report

import (
	"math"
	"strconv"
	"strings"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/sheet"
)

// SummaryHeader is the column row of the student summary workbook.
var SummaryHeader = []string{
	"Student ID", "Var", "Corr", "Err", "ND", "P.Corr", "P.Err", "P.ND",
	"Tot", "Max", "%", "%*10 (0.25)", "%ile", "Z", "Stanine", "answers",
}

// SummarySheet builds one row per graded student, ordered by student id.
func SummarySheet(res Results) sheet.Sheet {
	stats := statsByStudent(res.Analysis.Students)
	s := sheet.Sheet{Name: summarySheetName, Header: SummaryHeader}
	for _, r := range byStudentID(res.Records) {
		st := stats[r.StudentID]
		s.Rows = append(s.Rows, []any{
			r.StudentID,
			r.VariantID,
			r.CorrectCount,
			r.IncorrectCount,
			r.UnansweredCount,
			round2(r.CorrectPoints),
			round2(r.WrongPoints),
			round2(r.NoAnswerPoints),
			round2(r.RawScore),
			round2(r.MaxScore),
			round2(r.Percentage),
			Grade(r.Percentage),
			statCell(st.Percentile),
			statCell(st.ZScore),
			stanineLabel(st.Stanine),
			AnswerString(r.Answers),
		})
	}
	return s
}

// Grade maps a percentage onto a ten-point scale rounded to the nearest
// quarter point.
func Grade(pct float64) float64 {
	return math.Round(pct/10*4) / 4
}

// AnswerString is the compact per-student answer listing, for example
// "1: A, 2: - (corr: C)". Correct answers omit the key.
func AnswerString(answers []model.GradedAnswer) string {
	parts := make([]string, len(answers))
	for i, a := range answers {
		s := strconv.Itoa(a.Position+1) + ": " + shown(a.Submitted)
		if a.Outcome != model.OutcomeCorrect {
			s += " (corr: " + a.CorrectLabel + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func statCell(s model.Stat) any {
	if !s.Valid {
		return s.String()
	}
	return round2(s.Value)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package report writes the localized text reports, the student summary
// workbook and the statistics JSON files of a run.
package report

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/manifest"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/sheet"
)

// Output file names, relative to the output directory.
const (
	AnswerKeysFile       = "answer_keys.txt"
	QuestionsFile        = "report_questions/report_quest.txt"
	StudentsFile         = "report_students.txt"
	DetailedFile         = "report_students_detailed.txt"
	TeacherFile          = "teacher_report.txt"
	GradingErrorsFile    = "grading_errors.txt"
	SummaryFile          = "report_students_summary.xlsx"
	QuestionStatsFile    = "question_statistics.json"
	StudentStatsFile     = "student_statistics.json"
	summarySheetName     = "Summary"
	blankAnswerIndicator = "-"
)

// Results is everything Phase 2 produced for one cohort.
type Results struct {
	Manifest *manifest.Manifest
	Records  []model.GradedRecord
	Analysis model.Analysis
	Issues   []model.GradingIssue
}

// printer writes lines and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s+"\n")
}

func (p *printer) blank() { p.line("") }

func f2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteAnswerKeys lists, for every variant, the correct label and group of
// each question position, followed by the seed and randomness metrics.
func WriteAnswerKeys(ctx context.Context, w io.Writer, m *manifest.Manifest) error {
	p := &printer{w: w}
	catalog := m.Catalog()

	p.line(i18n.T(ctx, "AnswerKeysTitle"))
	p.blank()
	for _, k := range m.AnswerKeys {
		p.line(i18n.Td(ctx, "VariantN", map[string]any{"ID": k.VariantID}))
		for _, e := range k.Entries {
			p.line("  " + i18n.Td(ctx, "AnswerKeyItem", map[string]any{
				"N": e.Position + 1, "Label": e.Label, "Group": catalog[e.QuestionKey].Group,
			}))
		}
		p.blank()
	}
	p.line(i18n.Td(ctx, "SeedLine", map[string]any{"Seed": m.Seed}))
	p.line(i18n.Td(ctx, "RandomnessLine", map[string]any{
		"Questions": f2(m.Randomness.QuestionOrder),
		"Answers":   f2(m.Randomness.AnswerOrder),
		"Combined":  f2(m.Randomness.Combined),
	}))
	return p.err
}

// WriteQuestions writes the per-question item analysis.
func WriteQuestions(ctx context.Context, w io.Writer, res Results) error {
	p := &printer{w: w}
	a := res.Analysis

	p.line(i18n.T(ctx, "QuestionsReportTitle"))
	p.blank()
	p.line(i18n.Td(ctx, "TotalQuestions", map[string]any{"Count": len(a.Questions)}))
	p.line(i18n.Td(ctx, "TotalStudents", map[string]any{"Count": a.Summary.Students}))
	p.line(i18n.Td(ctx, "MeanScore", map[string]any{"Value": f2(a.Summary.MeanScore)}))
	p.blank()
	p.line(i18n.T(ctx, "PerQuestionDetail"))
	for _, q := range a.Questions {
		p.blank()
		p.line(i18n.Td(ctx, "QuestionHeading", map[string]any{"Name": q.Group + ": " + q.Text}))
		p.line(i18n.Td(ctx, "CorrectAnswers", map[string]any{"Count": q.Correct, "Pct": f2(q.Share(q.Correct))}))
		p.line(i18n.Td(ctx, "WrongAnswers", map[string]any{"Count": q.Incorrect, "Pct": f2(q.Share(q.Incorrect))}))
		p.line(i18n.Td(ctx, "BlankAnswers", map[string]any{"Count": q.Unanswered, "Pct": f2(q.Share(q.Unanswered))}))
		p.line(i18n.Td(ctx, "DifficultyIndex", map[string]any{"Value": q.Difficulty.String()}))
		p.line(i18n.Td(ctx, "DiscriminationIndex", map[string]any{"Value": q.Discrimination.String()}))
		p.line(i18n.Td(ctx, "DifficultyRating", map[string]any{"Value": i18n.Rating(ctx, q.DifficultyRating)}))
		p.line(i18n.Td(ctx, "DiscriminationRating", map[string]any{"Value": i18n.Rating(ctx, q.DiscriminationRating)}))
	}
	return p.err
}

func writeCohort(ctx context.Context, p *printer, s model.CohortSummary) {
	p.line(i18n.Td(ctx, "NumStudents", map[string]any{"Count": s.Students}))
	p.line(i18n.Td(ctx, "MeanScore", map[string]any{"Value": f2(s.MeanScore)}))
	p.line(i18n.Td(ctx, "MedianScore", map[string]any{"Value": f2(s.MedianScore)}))
	p.line(i18n.Td(ctx, "StdDev", map[string]any{"Value": f2(s.StdDevScore)}))
	p.line(i18n.Td(ctx, "MinScore", map[string]any{"Value": f2(s.MinScore)}))
	p.line(i18n.Td(ctx, "MaxScore", map[string]any{"Value": f2(s.MaxScore)}))
	p.line(i18n.Td(ctx, "Quartiles", map[string]any{
		"Q1": f2(s.Quartiles[0]), "Q2": f2(s.Quartiles[1]), "Q3": f2(s.Quartiles[2]),
	}))
	p.line(i18n.Td(ctx, "PassingThreshold", map[string]any{"Value": f2(s.PassingThreshold)}))
	p.line(i18n.Td(ctx, "PassRate", map[string]any{"Value": f2(s.PassRate)}))
}

// WriteStudents writes the cohort summary and one table row per student,
// best score first.
func WriteStudents(ctx context.Context, w io.Writer, res Results) error {
	p := &printer{w: w}
	s := res.Analysis.Summary

	p.line(i18n.T(ctx, "StudentsReportTitle"))
	p.blank()
	p.line(i18n.T(ctx, "GeneralStats"))
	writeCohort(ctx, p, s)
	p.line(i18n.Td(ctx, "MeanCorrectCount", map[string]any{"Value": f2(s.MeanCorrectCount)}))
	p.line(i18n.Td(ctx, "MeanWrongCount", map[string]any{"Value": f2(s.MeanWrongCount)}))
	p.line(i18n.Td(ctx, "MeanBlankCount", map[string]any{"Value": f2(s.MeanBlankCount)}))
	p.line(i18n.Td(ctx, "MeanCorrectPoints", map[string]any{"Value": f2(s.MeanCorrectPoints)}))
	p.line(i18n.Td(ctx, "MeanWrongPoints", map[string]any{"Value": f2(s.MeanWrongPoints)}))
	p.line(i18n.Td(ctx, "MeanBlankPoints", map[string]any{"Value": f2(s.MeanBlankPoints)}))
	p.blank()
	p.line(i18n.T(ctx, "PerStudentDetail"))
	p.line(i18n.T(ctx, "StudentTableHeader"))

	stats := statsByStudent(res.Analysis.Students)
	for _, r := range byScore(res.Records) {
		st := stats[r.StudentID]
		p.line(fmt.Sprintf("%s | %d | %d | %d | %d | %s | %s | %s | %s | %s | %s | %s | %s | %s",
			r.StudentID, r.VariantID, r.CorrectCount, r.IncorrectCount, r.UnansweredCount,
			f2(r.CorrectPoints), f2(r.WrongPoints), f2(r.NoAnswerPoints),
			f2(r.RawScore), f2(r.MaxScore), f2(r.Percentage),
			st.Percentile, st.ZScore, stanineLabel(st.Stanine)))
	}
	return p.err
}

// WriteDetailed writes one section per student with the outcome of every
// answer, ordered by student id.
func WriteDetailed(ctx context.Context, w io.Writer, res Results) error {
	p := &printer{w: w}
	stats := statsByStudent(res.Analysis.Students)

	p.line(i18n.T(ctx, "DetailedTitle"))
	for _, r := range byStudentID(res.Records) {
		st := stats[r.StudentID]
		p.blank()
		p.line(i18n.Td(ctx, "StudentHeading", map[string]any{"ID": r.StudentID}))
		p.line(i18n.Td(ctx, "TestVariant", map[string]any{"ID": r.VariantID}))
		p.line(i18n.Td(ctx, "TotalScore", map[string]any{"Raw": f2(r.RawScore), "Max": f2(r.MaxScore), "Pct": f2(r.Percentage)}))
		p.line(i18n.Td(ctx, "PointsCorrect", map[string]any{"Points": f2(r.CorrectPoints), "Count": r.CorrectCount}))
		p.line(i18n.Td(ctx, "PointsWrong", map[string]any{"Points": f2(r.WrongPoints), "Count": r.IncorrectCount}))
		p.line(i18n.Td(ctx, "PointsBlank", map[string]any{"Points": f2(r.NoAnswerPoints), "Count": r.UnansweredCount}))
		p.line(i18n.T(ctx, "ComparedWithClass"))
		p.line("  " + i18n.Td(ctx, "PercentileLine", map[string]any{"Value": st.Percentile.String()}))
		p.line("  " + i18n.Td(ctx, "ZScoreLine", map[string]any{"Value": st.ZScore.String()}))
		p.line("  " + i18n.Td(ctx, "StanineLine", map[string]any{"Value": stanineLabel(st.Stanine)}))
		p.line(i18n.T(ctx, "AnswerDetail"))
		for _, a := range r.Answers {
			p.line("  " + i18n.Td(ctx, "AnswerLine", map[string]any{
				"N": a.Position + 1, "Group": a.Group, "Answer": shown(a.Submitted), "Status": status(ctx, a),
			}))
		}
	}
	return p.err
}

func status(ctx context.Context, a model.GradedAnswer) string {
	switch a.Outcome {
	case model.OutcomeCorrect:
		return i18n.Td(ctx, "StatusCorrect", map[string]any{"Points": f2(a.Points)})
	case model.OutcomeUnanswered:
		return i18n.Td(ctx, "StatusBlank", map[string]any{"Points": f2(a.Points)})
	default:
		return i18n.Td(ctx, "StatusWrong", map[string]any{"Correct": a.CorrectLabel, "Points": f2(a.Points)})
	}
}

// WriteTeacher writes the short summary handed to the teacher: cohort
// figures, the key of every variant and the grading error count.
func WriteTeacher(ctx context.Context, w io.Writer, res Results) error {
	p := &printer{w: w}

	p.line(i18n.T(ctx, "TeacherTitle"))
	p.blank()
	writeCohort(ctx, p, res.Analysis.Summary)
	p.blank()
	p.line(i18n.T(ctx, "PerVariantDetail"))
	if res.Manifest != nil {
		catalog := res.Manifest.Catalog()
		for _, k := range res.Manifest.AnswerKeys {
			p.line(i18n.Td(ctx, "VariantN", map[string]any{"ID": k.VariantID}))
			for _, e := range k.Entries {
				p.line("  " + i18n.Td(ctx, "TeacherKeyLine", map[string]any{
					"N": e.Position + 1, "Label": e.Label, "Group": catalog[e.QuestionKey].Group,
				}))
			}
		}
	}
	p.blank()
	p.line(errorCount(ctx, len(res.Issues)))
	return p.err
}

// WriteGradingErrors lists every response that could not be graded.
func WriteGradingErrors(ctx context.Context, w io.Writer, issues []model.GradingIssue) error {
	p := &printer{w: w}
	p.line(i18n.T(ctx, "GradingErrorsTitle"))
	p.line(errorCount(ctx, len(issues)))
	for _, is := range issues {
		p.line("- " + is.Message)
	}
	return p.err
}

func errorCount(ctx context.Context, n int) string {
	if n == 0 {
		return i18n.T(ctx, "NoGradingErrors")
	}
	return i18n.Tp(ctx, "GradingErrorsCount", n)
}

func stanineLabel(s model.Stanine) string {
	if !s.Valid() {
		return s.String()
	}
	return s.Letter() + " (" + s.String() + ")"
}

func shown(label string) string {
	if label == model.NoAnswer {
		return blankAnswerIndicator
	}
	return label
}

func statsByStudent(stats []model.StudentStatistics) map[string]model.StudentStatistics {
	m := make(map[string]model.StudentStatistics, len(stats))
	for _, s := range stats {
		m[s.StudentID] = s
	}
	return m
}

func byStudentID(recs []model.GradedRecord) []model.GradedRecord {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b model.GradedRecord) int {
		return cmp.Compare(a.StudentID, b.StudentID)
	})
	return out
}

func byScore(recs []model.GradedRecord) []model.GradedRecord {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b model.GradedRecord) int {
		if c := cmp.Compare(b.Percentage, a.Percentage); c != 0 {
			return c
		}
		return cmp.Compare(a.StudentID, b.StudentID)
	})
	return out
}

// WriteAnswerKeysFile writes the answer keys report into outDir.
func WriteAnswerKeysFile(ctx context.Context, outDir string, m *manifest.Manifest) (string, error) {
	path := filepath.Join(outDir, AnswerKeysFile)
	err := writeFile(path, func(w io.Writer) error { return WriteAnswerKeys(ctx, w, m) })
	return path, err
}

// WriteAll writes every Phase 2 output into outDir and returns the paths.
func WriteAll(ctx context.Context, outDir string, res Results) ([]string, error) {
	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{QuestionsFile, func(w io.Writer) error { return WriteQuestions(ctx, w, res) }},
		{StudentsFile, func(w io.Writer) error { return WriteStudents(ctx, w, res) }},
		{DetailedFile, func(w io.Writer) error { return WriteDetailed(ctx, w, res) }},
		{TeacherFile, func(w io.Writer) error { return WriteTeacher(ctx, w, res) }},
		{GradingErrorsFile, func(w io.Writer) error { return WriteGradingErrors(ctx, w, res.Issues) }},
		{QuestionStatsFile, func(w io.Writer) error { return writeJSON(w, res.Analysis.Questions) }},
		{StudentStatsFile, func(w io.Writer) error { return writeJSON(w, studentStatsDoc(res.Analysis)) }},
	}

	var paths []string
	for _, t := range outputs {
		path := filepath.Join(outDir, t.name)
		if err := writeFile(path, t.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	summary := filepath.Join(outDir, SummaryFile)
	if err := sheet.Write(summary, SummarySheet(res)); err != nil {
		return paths, err
	}
	paths = append(paths, summary)
	slog.Info("wrote reports", "dir", outDir, "files", len(paths))
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StudentStatsDocument is the content of the student statistics file.
type StudentStatsDocument struct {
	Summary  model.CohortSummary       `json:"summary"`
	Students []model.StudentStatistics `json:"students"`
}

func studentStatsDoc(a model.Analysis) StudentStatsDocument {
	students := a.Students
	if students == nil {
		students = []model.StudentStatistics{}
	}
	return StudentStatsDocument{Summary: a.Summary, Students: students}
}

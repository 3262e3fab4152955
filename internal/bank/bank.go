// Package bank loads and validates the question bank and the collected
// student answer sheets.
package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/sheet"
)

// Header aliases, English first.
var (
	colQuestion     = []string{"Question", "Testo della domanda"}
	colCorrect      = []string{"Correct answer", "Risposta corretta"}
	colDistractor   = []string{"Distractor", "Alternativa"}
	colColumns      = []string{"Option columns", "Numero Colonne Alternative"}
	colCorrectScore = []string{"Correct points", "Punteggio corretta"}
	colWrongScore   = []string{"Wrong points", "Punteggio errata"}
	colBlankScore   = []string{"No answer points", "Punteggio non data"}
)

// Load reads the workbook at path and returns the validated bank. Every
// violation is reported; the result is empty unless all sheets are valid.
func Load(path string) (model.Bank, error) {
	tables, err := sheet.Read(path)
	if err != nil {
		return model.Bank{}, fmt.Errorf("load question bank: %w", err)
	}
	b, err := Parse(tables)
	if err != nil {
		return model.Bank{}, err
	}
	slog.Info("loaded question bank", "path", path, "groups", len(b.Groups), "questions", b.NumQuestions())
	return b, nil
}

// Parse validates tables as question groups, one group per table.
func Parse(tables []sheet.Table) (model.Bank, error) {
	if len(tables) == 0 {
		return model.Bank{}, &model.ValidationError{Reason: "workbook has no sheets"}
	}
	var (
		b    model.Bank
		errs []error
	)
	for _, t := range tables {
		g, gerrs := parseGroup(t)
		errs = append(errs, gerrs...)
		b.Groups = append(b.Groups, g)
	}
	if len(errs) > 0 {
		return model.Bank{}, errors.Join(errs...)
	}
	return b, nil
}

func parseGroup(t sheet.Table) (model.QuestionGroup, []error) {
	g := model.QuestionGroup{Name: strings.TrimSpace(t.Name)}
	var errs []error
	fail := func(row int, field, format string, args ...any) {
		errs = append(errs, &model.ValidationError{Sheet: g.Name, Row: row, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if g.Name == "" {
		fail(0, "", "sheet name is empty")
	}
	qCol := t.Column(colQuestion...)
	cCol := t.Column(colCorrect...)
	dCols := t.ColumnsWithPrefix(colDistractor...)
	if qCol < 0 {
		fail(0, colQuestion[0], "required column missing")
	}
	if cCol < 0 {
		fail(0, colCorrect[0], "required column missing")
	}
	if len(dCols) == 0 {
		fail(0, colDistractor[0], "no distractor columns")
	}
	if len(errs) > 0 {
		return g, errs
	}

	colsCol := t.Column(colColumns...)
	scoreCols := [3]int{t.Column(colCorrectScore...), t.Column(colWrongScore...), t.Column(colBlankScore...)}
	seen := make(map[string]int)

	for r := range t.Rows {
		if t.BlankRow(r) {
			continue
		}
		row := sheet.SheetRow(r)
		q := model.Question{
			Group:   g.Name,
			Row:     row,
			Text:    t.Cell(r, qCol),
			Correct: t.Cell(r, cCol),
			Columns: 1,
		}
		if q.Text == "" {
			fail(row, t.Header[qCol], "question text is blank")
		}
		if q.Correct == "" {
			fail(row, t.Header[cCol], "correct answer is blank")
		}
		if prev, dup := seen[q.Text]; dup && q.Text != "" {
			fail(row, t.Header[qCol], "duplicate question text (first at row %d)", prev)
		} else {
			seen[q.Text] = row
		}

		opts := map[string]bool{q.Correct: true}
		for _, c := range dCols {
			d := t.Cell(r, c)
			if d == "" {
				continue
			}
			if d == q.Correct {
				fail(row, t.Header[c], "distractor repeats the correct answer %q", d)
				continue
			}
			if opts[d] {
				fail(row, t.Header[c], "duplicate distractor %q", d)
				continue
			}
			opts[d] = true
			q.Distractors = append(q.Distractors, d)
		}
		if len(q.Distractors) == 0 {
			fail(row, colDistractor[0], "at least one distractor is required")
		}

		if colsCol >= 0 {
			if v := t.Cell(r, colsCol); v != "" {
				n, err := parseNumber(v)
				if err != nil || n < 1 || n != float64(int(n)) {
					fail(row, t.Header[colsCol], "option column count must be a positive integer, got %q", v)
				} else {
					q.Columns = int(n)
				}
			}
		}

		targets := [3]**float64{&q.Scoring.Correct, &q.Scoring.Wrong, &q.Scoring.NoAnswer}
		for i, c := range scoreCols {
			if c < 0 {
				continue
			}
			v := t.Cell(r, c)
			if v == "" {
				continue
			}
			n, err := parseNumber(v)
			if err != nil {
				fail(row, t.Header[c], "points must be numeric, got %q", v)
				continue
			}
			*targets[i] = &n
		}

		q.Key = model.QuestionKey(g.Name, q.Text)
		g.Questions = append(g.Questions, q)
	}
	if len(g.Questions) == 0 && len(errs) == 0 {
		fail(0, "", "group has no questions")
	}
	return g, errs
}

// parseNumber accepts both "1.5" and "1,5".
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

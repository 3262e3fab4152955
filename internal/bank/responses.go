package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/sheet"
)

const (
	colStudentID = "student_id"
	colVariantID = "variant_id"

	// MaxAnswerColumns bounds the question position an answer column may name.
	MaxAnswerColumns = 1000
)

// LoadResponses reads the first sheet of the answer workbook at path.
func LoadResponses(path string) ([]model.StudentResponse, error) {
	tables, err := sheet.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	if len(tables) == 0 {
		return nil, &model.ValidationError{Reason: "response workbook has no sheets"}
	}
	resps, err := ParseResponses(tables[0])
	if err != nil {
		return nil, err
	}
	slog.Info("loaded student responses", "path", path, "students", len(resps))
	return resps, nil
}

// ParseResponses reads one response per non-blank row. Answer columns are
// headed by their 1-based question position; other columns are ignored.
// A row with a blank variant id is kept so grading reports it for that
// student alone.
func ParseResponses(t sheet.Table) ([]model.StudentResponse, error) {
	var errs []error
	fail := func(row int, field, format string, args ...any) {
		errs = append(errs, &model.ValidationError{Sheet: t.Name, Row: row, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	sCol := t.Column(colStudentID)
	vCol := t.Column(colVariantID)
	if sCol < 0 {
		fail(0, colStudentID, "required column missing")
	}
	if vCol < 0 {
		fail(0, colVariantID, "required column missing")
	}
	positions := answerColumns(t.Header)
	for col, pos := range positions {
		if pos >= MaxAnswerColumns {
			fail(0, t.Header[col], "question position exceeds %d", MaxAnswerColumns)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	width := 0
	for _, p := range positions {
		width = max(width, p+1)
	}

	var (
		resps []model.StudentResponse
		seen  = make(map[string]int)
	)
	for r := range t.Rows {
		if t.BlankRow(r) {
			continue
		}
		row := sheet.SheetRow(r)
		resp := model.StudentResponse{
			StudentID: t.Cell(r, sCol),
			VariantID: NormalizeVariantID(t.Cell(r, vCol)),
			Answers:   make([]string, width),
		}
		if resp.StudentID == "" {
			fail(row, colStudentID, "student id is blank")
		} else if prev, dup := seen[resp.StudentID]; dup {
			fail(row, colStudentID, "duplicate student id %q (first at row %d)", resp.StudentID, prev)
		} else {
			seen[resp.StudentID] = row
		}
		if resp.VariantID == "" {
			slog.Warn("response has no variant id", "sheet", t.Name, "row", row, "student", resp.StudentID)
		}
		for col, pos := range positions {
			resp.Answers[pos] = t.Cell(r, col)
		}
		resps = append(resps, resp)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return resps, nil
}

// NormalizeVariantID trims the raw cell and drops the ".0" suffix spreadsheet
// tools add to whole numbers.
func NormalizeVariantID(raw string) string {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// answerColumns maps column index to 0-based question position. Only plain
// digit headers count; spreadsheet tools may append ".0".
func answerColumns(header []string) map[int]int {
	cols := make(map[int]int)
	for i, h := range header {
		h = strings.TrimSuffix(strings.TrimSpace(h), ".0")
		if h == "" || strings.TrimLeft(h, "0123456789") != "" {
			continue
		}
		n, err := strconv.Atoi(h)
		if err != nil {
			n = math.MaxInt // all digits, so only out of range
		}
		if n < 1 {
			continue
		}
		cols[i] = n - 1
	}
	return cols
}

// TemplateSheet builds the blank answer workbook handed out with the
// variants: one row per student to be filled in, numQuestions answer columns.
func TemplateSheet(name string, numQuestions int) sheet.Sheet {
	header := []string{colStudentID, colVariantID}
	for i := 1; i <= numQuestions; i++ {
		header = append(header, strconv.Itoa(i))
	}
	return sheet.Sheet{Name: name, Header: header}
}

// Package render turns variants into exam-class LaTeX documents and,
// optionally, compiles them to PDF.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/config"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Templates holds the built-in document templates.
//
//go:embed templates/*.tmpl
var Templates embed.FS

const (
	templateFile = "templates/variant.tex.tmpl"
	gridColumns  = 10
	texDir       = "tests_tex"
)

var (
	loadOnce    sync.Once
	loadErr     error
	variantTmpl *template.Template
)

var funcs = template.FuncMap{
	"numbers": func(ns []int) string {
		parts := make([]string, len(ns))
		for i, n := range ns {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, " & ")
	},
	"blanks": func(n int) string {
		cells := make([]string, n)
		for i := range cells {
			cells[i] = `\rule{1cm}{0pt}\rule[-0.5em]{0pt}{1.5em}`
		}
		return strings.Join(cells, " & ")
	},
}

// Labels are the localized strings printed on every variant.
type Labels struct {
	Name       string
	Class      string
	Date       string
	AnswerGrid string
	Variant    string
}

// QuestionData is one question as printed, options in display order.
type QuestionData struct {
	Text    string
	Columns int
	Choices []string
}

// DocumentData is the template input for one variant.
type DocumentData struct {
	Geometry      string
	HeaderLeft    string
	HeaderCenter  string
	HeaderRight   string
	ChoiceCounter string
	VariantID     int
	Labels        Labels
	GridRows      [][]int
	Questions     []QuestionData
}

// Load parses the document template from fsys. It uses sync.Once so the
// template is parsed only once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		content, err := fs.ReadFile(fsys, templateFile)
		if err != nil {
			loadErr = fmt.Errorf("read template %s: %w", templateFile, err)
			return
		}
		variantTmpl, err = template.New("variant").Delims("<<", ">>").Funcs(funcs).Parse(string(content))
		if err != nil {
			loadErr = fmt.Errorf("parse template %s: %w", templateFile, err)
		}
	})
	return loadErr
}

// NewDocument prepares the template data of v. Question and option text is
// passed through verbatim so the bank may contain LaTeX markup.
func NewDocument(ctx context.Context, v model.Variant, catalog map[string]model.Question, doc config.Document, format model.LabelFormat) (DocumentData, error) {
	d := DocumentData{
		Geometry:      doc.GeometryOptions,
		HeaderLeft:    doc.HeaderLeft,
		HeaderCenter:  doc.HeaderCenter,
		HeaderRight:   doc.HeaderRight,
		ChoiceCounter: format.LaTeXCounter(),
		VariantID:     v.ID,
		Labels: Labels{
			Name:       i18n.T(ctx, "TexName"),
			Class:      i18n.T(ctx, "TexClass"),
			Date:       i18n.T(ctx, "TexDate"),
			AnswerGrid: i18n.Td(ctx, "TexAnswerGrid", map[string]any{"ID": v.ID}),
			Variant:    i18n.T(ctx, "TexVariant"),
		},
		GridRows: gridRows(len(v.Items)),
	}
	for i, it := range v.Items {
		q, ok := catalog[it.QuestionKey]
		if !ok {
			return DocumentData{}, fmt.Errorf("variant %d position %d: unknown question %q", v.ID, i+1, it.QuestionKey)
		}
		opts := q.Options()
		qd := QuestionData{Text: q.Text, Columns: max(1, q.Columns), Choices: make([]string, len(it.Order))}
		for pos, idx := range it.Order {
			if idx < 0 || idx >= len(opts) {
				return DocumentData{}, fmt.Errorf("variant %d position %d: option index %d out of range", v.ID, i+1, idx)
			}
			qd.Choices[pos] = opts[idx]
		}
		d.Questions = append(d.Questions, qd)
	}
	return d, nil
}

// gridRows splits question numbers 1..n into rows of at most gridColumns.
func gridRows(n int) [][]int {
	var rows [][]int
	for start := 1; start <= n; start += gridColumns {
		var row []int
		for q := start; q < start+gridColumns && q <= n; q++ {
			row = append(row, q)
		}
		rows = append(rows, row)
	}
	return rows
}

// Render executes the document template.
func Render(d DocumentData) (string, error) {
	if variantTmpl == nil {
		if loadErr != nil {
			return "", fmt.Errorf("template load failed: %w", loadErr)
		}
		return "", errors.New("template not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := variantTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render variant %d: %w", d.VariantID, err)
	}
	return buf.String(), nil
}

// TexPath is where the document of a variant is written under outDir.
func TexPath(outDir string, variantID int) string {
	return filepath.Join(outDir, texDir, fmt.Sprintf("test_variant_%d.tex", variantID))
}

// WriteAll renders every document into outDir/tests_tex and returns the
// written paths in input order.
func WriteAll(outDir string, docs []DocumentData) ([]string, error) {
	if err := os.MkdirAll(filepath.Join(outDir, texDir), 0o755); err != nil {
		return nil, fmt.Errorf("create tex dir: %w", err)
	}
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		src, err := Render(d)
		if err != nil {
			return nil, err
		}
		p := TexPath(outDir, d.VariantID)
		if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

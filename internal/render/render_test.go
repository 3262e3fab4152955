package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/config"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

func setup(t *testing.T, lang string) context.Context {
	t.Helper()
	require.NoError(t, i18n.Init(lang))
	require.NoError(t, Load(Templates))
	return i18n.Context(context.Background(), lang)
}

func fixture() (model.Variant, map[string]model.Question) {
	france := model.Question{Key: "geo/france", Group: "geo", Text: "Capital of France?", Correct: "Paris",
		Distractors: []string{"Rome", "Madrid"}, Columns: 3}
	unit := model.Question{Key: "phys/force", Group: "phys", Text: `Unit of \um{1}{N}?`, Correct: "Newton",
		Distractors: []string{"Joule"}, Columns: 1}
	v := model.Variant{ID: 2, Items: []model.VariantItem{
		{QuestionKey: unit.Key, Order: []int{1, 0}},
		{QuestionKey: france.Key, Order: []int{1, 0, 2}},
	}}
	return v, map[string]model.Question{france.Key: france, unit.Key: unit}
}

func TestNewDocument(t *testing.T) {
	ctx := setup(t, "en")
	v, cat := fixture()

	d, err := NewDocument(ctx, v, cat, config.Defaults().Document, model.LabelLettersUpper)
	require.NoError(t, err)
	assert.Equal(t, 2, d.VariantID)
	assert.Equal(t, `\Alph{choice}`, d.ChoiceCounter)
	assert.Equal(t, "Answer grid (variant 2)", d.Labels.AnswerGrid)
	require.Len(t, d.Questions, 2)
	assert.Equal(t, []string{"Joule", "Newton"}, d.Questions[0].Choices)
	assert.Equal(t, []string{"Rome", "Paris", "Madrid"}, d.Questions[1].Choices)
	assert.Equal(t, [][]int{{1, 2}}, d.GridRows)

	v.Items[0].QuestionKey = "missing"
	_, err = NewDocument(ctx, v, cat, config.Document{}, model.LabelLettersUpper)
	assert.Error(t, err)
}

func TestRenderDocument(t *testing.T) {
	ctx := setup(t, "it")
	v, cat := fixture()
	doc := config.Document{GeometryOptions: "top=1cm", HeaderLeft: "Liceo", HeaderCenter: "Verifica", HeaderRight: "4B"}

	d, err := NewDocument(ctx, v, cat, doc, model.LabelLettersLower)
	require.NoError(t, err)
	src, err := Render(d)
	require.NoError(t, err)

	for _, want := range []string{
		`\documentclass{exam}`,
		`\usepackage[top=1cm]{geometry}`,
		`\renewcommand{\choicelabel}{(\alph{choice})\hspace{0.3em}}`,
		`\firstpageheader{Liceo}{Verifica}{4B}`,
		`\runningfooter{}{}{Variante~\thevariant~/~\thepage}`,
		`\setcounter{variant}{2}`,
		`\makebox[0.60\textwidth]{Nome e cognome:\enspace\hrulefill}`,
		`\noindent\textbf{Griglia Risposte (variante 2)}`,
		`\begin{tabular}{|c|c|}`,
		`1 & 2 \\ \hline`,
		`\question Unit of \um{1}{N}?`,
		`\begin{multicols}{3}`,
		`\choice Rome`,
	} {
		assert.Contains(t, src, want)
	}
	assert.Equal(t, 1, strings.Count(src, `\begin{multicols}`), "single-column questions are not wrapped")
	assert.Less(t, strings.Index(src, `\choice Joule`), strings.Index(src, `\choice Newton`))
	assert.Less(t, strings.Index(src, `\choice Rome`), strings.Index(src, `\choice Paris`))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(src), `\end{document}`))
}

func TestGridRows(t *testing.T) {
	rows := gridRows(23)
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 10)
	assert.Equal(t, []int{21, 22, 23}, rows[2])
	assert.Empty(t, gridRows(0))
}

func TestWriteAll(t *testing.T) {
	ctx := setup(t, "en")
	v, cat := fixture()
	d, err := NewDocument(ctx, v, cat, config.Defaults().Document, model.LabelNumbers)
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := WriteAll(dir, []DocumentData{d})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "tests_tex", "test_variant_2.tex")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `\arabic{choice}`)
}

func TestCompileWithoutCompiler(t *testing.T) {
	c := Compiler{Command: "no-such-latex-binary", OutputDir: t.TempDir(), Limit: 2}
	err := c.Compile(context.Background(), []string{"x.tex"})
	assert.ErrorIs(t, err, ErrCompilerNotFound)
}

func TestCompileRequiresPDF(t *testing.T) {
	// "true" succeeds without producing anything.
	c := Compiler{Command: "true", OutputDir: t.TempDir(), Limit: 1}
	err := c.Compile(context.Background(), []string{filepath.Join(t.TempDir(), "test_variant_1.tex")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pdf produced")
}

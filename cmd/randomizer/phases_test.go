package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/config"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/report"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/store"
)

const questionsCSV = `Question,Correct answer,Distractor 1,Distractor 2
Capital of France?,Paris,Rome,Madrid
Capital of Italy?,Rome,Paris,Berlin
Capital of Spain?,Madrid,Lisbon,Paris
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	questions := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(questions, []byte(questionsCSV), 0o644))

	cfg := config.Defaults()
	cfg.SelectionPolicy = config.SelectAll
	cfg.NumVariants = 2
	cfg.NumPotentialVariants = 50
	cfg.SimilarityCeiling = 1
	cfg.Seed = 7
	cfg.Paths = config.Paths{
		Questions: questions,
		Responses: filepath.Join(dir, "answers.csv"),
		Manifest:  filepath.Join(dir, "manifest.json"),
		OutputDir: filepath.Join(dir, "out"),
		DB:        filepath.Join(dir, "runs.db"),
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, i18n.Init(cfg.Language))
	return cfg
}

func TestGenerateThenGrade(t *testing.T) {
	cfg := testConfig(t)
	ctx := i18n.Context(context.Background(), cfg.Language)

	m, err := generate(ctx, cfg, 1)
	require.NoError(t, err)
	require.Len(t, m.AnswerKeys, 2)
	assert.Equal(t, uint64(7), m.Seed)

	for _, name := range []string{
		"tests_tex/test_variant_1.tex",
		"tests_tex/test_variant_2.tex",
		report.AnswerKeysFile,
		templateFile,
	} {
		assert.FileExists(t, filepath.Join(cfg.Paths.OutputDir, name))
	}
	assert.FileExists(t, cfg.Paths.Manifest)

	// s1 answers variant 1 perfectly, s2 leaves variant 2 blank, s3 names a
	// variant that was never generated.
	var perfect []string
	for _, e := range m.AnswerKeys[0].Entries {
		perfect = append(perfect, e.Label)
	}
	answers := "student_id,variant_id,1,2,3\n" +
		"s1," + strconv.Itoa(m.AnswerKeys[0].VariantID) + "," + strings.Join(perfect, ",") + "\n" +
		"s2," + strconv.Itoa(m.AnswerKeys[1].VariantID) + ",,,\n" +
		"s3,99,A,A,A\n"
	require.NoError(t, os.WriteFile(cfg.Paths.Responses, []byte(answers), 0o644))

	res, err := grade(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "s3", res.Issues[0].StudentID)

	byID := map[string]model.GradedRecord{}
	for _, r := range res.Records {
		byID[r.StudentID] = r
	}
	assert.InDelta(t, 100, byID["s1"].Percentage, 1e-9)
	assert.Equal(t, 3, byID["s2"].UnansweredCount)
	assert.InDelta(t, 25, byID["s2"].Percentage, 1e-9)
	assert.Len(t, res.Analysis.Questions, 3)

	for _, name := range []string{report.QuestionsFile, report.StudentsFile, report.SummaryFile, report.QuestionStatsFile} {
		assert.FileExists(t, filepath.Join(cfg.Paths.OutputDir, name))
	}

	db, err := store.New(cfg.Paths.DB)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, m.RunID, runs[0].ManifestRunID)
	md, err := db.RunMetadata(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "7", md["seed"])
}

func TestGradeWithoutManifest(t *testing.T) {
	cfg := testConfig(t)
	ctx := i18n.Context(context.Background(), cfg.Language)

	_, err := grade(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrManifestNotFound)
}

func TestRunPhaseRejectsUnknownPhase(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"--phase", "3"})
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown phase 3")
}

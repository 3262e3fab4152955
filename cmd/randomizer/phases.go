package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/analysis"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/answerkey"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/bank"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/config"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/grading"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/manifest"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/render"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/report"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/sheet"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/store"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/variant"
)

const (
	templateFile      = "student_answers_template.xlsx"
	templateSheetName = "Risposte"
)

// generate runs phase 1. Nothing is written until every variant, key and
// document has been built.
func generate(ctx context.Context, cfg config.Config, compileJobs int) (*manifest.Manifest, error) {
	b, err := bank.Load(cfg.Paths.Questions)
	if err != nil {
		return nil, err
	}

	rng, seed := variant.NewRand(cfg.Seed)
	slog.Info("random seed", "seed", seed)
	gen, err := variant.NewGenerator(cfg, rng)
	if err != nil {
		return nil, err
	}
	vs, err := gen.Generate(b)
	if err != nil {
		return nil, err
	}
	keys, err := answerkey.BuildAll(vs, cfg.LabelFormat)
	if err != nil {
		return nil, err
	}
	r := variant.Evaluate(b, vs)
	slog.Info("randomness of accepted variants",
		"question_order", r.QuestionOrder, "answer_order", r.AnswerOrder, "combined", r.Combined)
	m := manifest.New(b, vs, keys, seed, cfg.LabelFormat, cfg.SimilarityMetric, r)

	if err := render.Load(render.Templates); err != nil {
		return nil, err
	}
	catalog := b.Catalog()
	docs := make([]render.DocumentData, 0, len(vs.Variants))
	maxQuestions := 0
	for _, v := range vs.Variants {
		d, err := render.NewDocument(ctx, v, catalog, cfg.Document, cfg.LabelFormat)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
		maxQuestions = max(maxQuestions, len(v.Items))
	}

	outDir := cfg.Paths.OutputDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	texPaths, err := render.WriteAll(outDir, docs)
	if err != nil {
		return nil, err
	}
	slog.Info("wrote variants", "count", len(texPaths), "dir", outDir)

	if _, err := report.WriteAnswerKeysFile(ctx, outDir, m); err != nil {
		return nil, err
	}
	if err := manifest.Save(cfg.Paths.Manifest, m); err != nil {
		return nil, err
	}
	tmpl := filepath.Join(outDir, templateFile)
	if err := sheet.Write(tmpl, bank.TemplateSheet(templateSheetName, maxQuestions)); err != nil {
		return nil, err
	}
	slog.Info("wrote answer template", "path", tmpl, "questions", maxQuestions)

	if cfg.Compile {
		err := render.NewCompiler(outDir, compileJobs).Compile(ctx, texPaths)
		if errors.Is(err, render.ErrCompilerNotFound) {
			slog.Warn("skipping pdf compilation", "error", err)
		} else if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// grade runs phase 2 against the manifest written by phase 1.
func grade(ctx context.Context, cfg config.Config) (report.Results, error) {
	m, err := manifest.Load(cfg.Paths.Manifest)
	if err != nil {
		return report.Results{}, err
	}
	resps, err := bank.LoadResponses(cfg.Paths.Responses)
	if err != nil {
		return report.Results{}, err
	}

	g := grading.New(m.AnswerKeys, m.Catalog(), cfg.Scoring, m.LabelFormat)
	recs, errs := g.GradeAll(resps)
	a := analysis.Analyze(recs, m.Bank, analysis.Options{
		PassingThreshold:       cfg.PassingThreshold,
		DiscriminationFraction: cfg.DiscriminationFraction,
	})
	res := report.Results{Manifest: m, Records: recs, Analysis: a, Issues: grading.Issues(errs)}

	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	if _, err := report.WriteAll(ctx, cfg.Paths.OutputDir, res); err != nil {
		return res, err
	}

	if cfg.Paths.DB != "" {
		if err := archive(cfg, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// archive records a graded run in the SQLite archive.
func archive(cfg config.Config, res report.Results) error {
	db, err := store.New(cfg.Paths.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	s := res.Analysis.Summary
	exp := model.RunExport{
		Run: model.RunInfo{
			ID:             uuid.NewString(),
			ManifestRunID:  res.Manifest.RunID,
			GradedAt:       time.Now().UTC().Truncate(time.Second),
			Students:       s.Students,
			MeanPercentage: s.MeanPercentage,
			PassRate:       s.PassRate,
		},
		Summary:   s,
		Questions: res.Analysis.Questions,
		Students:  res.Analysis.Students,
		Issues:    res.Issues,
	}
	if err := db.SaveRun(exp); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	err = db.SetRunMetadata(exp.Run.ID, map[string]string{
		"seed":                strconv.FormatUint(res.Manifest.Seed, 10),
		"label_format":        string(res.Manifest.LabelFormat),
		"similarity_metric":   res.Manifest.SimilarityMetric,
		"manifest_created_at": res.Manifest.CreatedAt.Format(time.RFC3339),
		"language":            cfg.Language,
		"responses":           cfg.Paths.Responses,
	})
	if err != nil {
		return fmt.Errorf("save run metadata: %w", err)
	}
	slog.Info("archived run", "run_id", exp.Run.ID, "db", cfg.Paths.DB)
	return nil
}

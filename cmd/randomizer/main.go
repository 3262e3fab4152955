package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/config"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/handler"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/i18n"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "randomizer",
		Short: "Multiple-choice test randomizer and grader",
		Long: `Phase 1 builds randomized LaTeX test variants and their answer keys from a
question workbook. Phase 2 grades the collected answer sheet against the
saved manifest and writes item and student statistics.`,
		SilenceUsage: true,
		RunE:         runPhase,
	}

	gen, grade := generateCmd(), gradeCmd()
	root.AddCommand(gen, grade, exportCmd(), serveCmd())

	root.Flags().Int("phase", 0, "Phase to run: 1 (generate) or 2 (grade)")
	// Register both phases' flags on root so `randomizer --phase 2 --responses ...` works.
	root.Flags().AddFlagSet(gen.Flags())
	root.Flags().AddFlagSet(grade.Flags())

	return root
}

func runPhase(cmd *cobra.Command, args []string) error {
	phase, _ := cmd.Flags().GetInt("phase")
	switch phase {
	case 1:
		return runGenerate(cmd, args)
	case 2:
		return runGrade(cmd, args)
	case 0:
		return cmd.Help()
	default:
		return fmt.Errorf("unknown phase %d: use 1 or 2", phase)
	}
}

func addCommonFlags(f *pflag.FlagSet) {
	d := config.Defaults()
	f.StringP("manifest", "m", d.Paths.Manifest, "Manifest JSON written by phase 1 and read by phase 2")
	f.StringP("output-dir", "o", d.Paths.OutputDir, "Directory for generated files")
	f.StringP("language", "l", d.Language, "Report language (en, it)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Phase 1: build test variants, answer keys and the manifest",
		RunE:  runGenerate,
	}
	d := config.Defaults()
	f := cmd.Flags()
	addCommonFlags(f)
	f.StringP("questions", "q", d.Paths.Questions, "Question bank workbook (.xlsx or .csv)")
	f.IntP("num-variants", "n", d.NumVariants, "Number of variants to produce")
	f.Int("candidates", d.NumPotentialVariants, "Candidate budget for the randomness check")
	f.Uint64("seed", d.Seed, "Random seed (0 = random, logged for reproduction)")
	f.String("similarity-metric", d.SimilarityMetric, "Variant similarity metric")
	f.Float64("similarity-ceiling", d.SimilarityCeiling, "Maximum similarity between accepted variants")
	f.String("selection-policy", string(d.SelectionPolicy), "Question selection (all, one_per_group, fixed_per_group)")
	f.Int("per-group-count", d.PerGroupCount, "Questions per group for fixed_per_group")
	f.String("choice-label-format", string(d.LabelFormat), "Choice labels (letters_upper, letters_lower, numbers)")
	f.Bool("compile", false, "Compile the LaTeX documents with pdflatex")
	f.Int("compile-jobs", runtime.NumCPU(), "Concurrent pdflatex processes")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Phase 2: grade responses and write statistics and reports",
		RunE:  runGrade,
	}
	d := config.Defaults()
	f := cmd.Flags()
	addCommonFlags(f)
	f.StringP("responses", "r", d.Paths.Responses, "Student answer workbook (.xlsx or .csv)")
	f.Float64("passing-threshold", d.PassingThreshold, "Passing threshold as a fraction of the maximum score")
	f.Float64("discrimination-fraction", d.DiscriminationFraction, "Share of students in each extreme group")
	f.String("db", "", "SQLite archive to record the run in (empty = no archive)")
	f.Bool("strict", false, "Exit with an error when any response could not be graded")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived grading runs as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "randomizer.db", "SQLite database path")
	f.String("run", "", "Run ID to export (empty = all runs)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve archived grading runs as read-only JSON",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "randomizer.db", "SQLite database path")
	f.StringP("language", "l", "en", "Default response language (en, it)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log_level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log_format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// flagKeys maps flags whose configuration key is not simply the flag name
// with underscores.
var flagKeys = map[string]string{
	"candidates": "num_potential_variants_for_randomness_check",
}

// viperForCmd binds a command's flags and environment to a fresh viper
// instance. Keys use underscores so config files match the flag names.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		_ = v.BindPFlag(key, f)
	})

	v.SetEnvPrefix("RANDOMIZER")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/randomizer")
	v.AddConfigPath("/etc/randomizer")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadConfig builds the run configuration and the localized context.
func loadConfig(cmd *cobra.Command) (config.Config, *viper.Viper, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg, err := config.FromViper(v)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := i18n.Init(cfg.Language); err != nil {
		return config.Config{}, nil, fmt.Errorf("init i18n: %w", err)
	}
	return cfg, v, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := i18n.Context(cmd.Context(), cfg.Language)
	_, err = generate(ctx, cfg, v.GetInt("compile_jobs"))
	return err
}

func runGrade(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := i18n.Context(cmd.Context(), cfg.Language)
	out, err := grade(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Strict && len(out.Issues) > 0 {
		return fmt.Errorf("%d responses could not be graded", len(out.Issues))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var payload any
	if id := v.GetString("run"); id != "" {
		exp, err := db.ExportRun(id)
		if err != nil {
			return fmt.Errorf("export run: %w", err)
		}
		payload = exp
	} else {
		exports, err := db.ExportAllRuns()
		if err != nil {
			return fmt.Errorf("export runs: %w", err)
		}
		if exports == nil {
			exports = []model.RunExport{}
		}
		payload = exports
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("language")
	if err := i18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.New(db).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "db", v.GetString("db"), "lang", lang)
	return http.ListenAndServe(addr, r)
}

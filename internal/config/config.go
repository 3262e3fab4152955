package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// SelectionPolicy decides which bank questions enter a variant.
type SelectionPolicy string

const (
	SelectAll           SelectionPolicy = "all"
	SelectOnePerGroup   SelectionPolicy = "one_per_group"
	SelectFixedPerGroup SelectionPolicy = "fixed_per_group"
)

// Document holds the opaque strings passed through to document rendering.
type Document struct {
	GeometryOptions string
	HeaderLeft      string
	HeaderCenter    string
	HeaderRight     string
}

// Paths locates the files of both phases.
type Paths struct {
	Questions string
	Responses string
	Manifest  string
	OutputDir string
	DB        string
}

// Config is the immutable run configuration. It is built once per command
// and passed by value to every component.
type Config struct {
	Scoring          model.Points
	PassingThreshold float64

	NumVariants          int
	NumPotentialVariants int
	SimilarityMetric     string
	SimilarityCeiling    float64
	SelectionPolicy      SelectionPolicy
	PerGroupCount        int
	SharedSelection      bool
	ShuffleQuestions     bool
	ShuffleAnswers       bool
	Seed                 uint64

	LabelFormat            model.LabelFormat
	DiscriminationFraction float64
	Language               string

	Document Document
	Paths    Paths
	Compile  bool
	Strict   bool
}

// Defaults mirrors the values used when no configuration is supplied.
func Defaults() Config {
	return Config{
		Scoring:                model.Points{Correct: 4, Wrong: 0, NoAnswer: 1},
		PassingThreshold:       0.58,
		NumVariants:            1,
		NumPotentialVariants:   10,
		SimilarityMetric:       "hamming",
		SimilarityCeiling:      0.6,
		SelectionPolicy:        SelectOnePerGroup,
		PerGroupCount:          1,
		ShuffleQuestions:       true,
		ShuffleAnswers:         true,
		LabelFormat:            model.LabelLettersUpper,
		DiscriminationFraction: 0.27,
		Language:               "en",
		Document: Document{
			GeometryOptions: "top=1cm,bottom=0.5cm,left=1cm,right=1cm",
		},
		Paths: Paths{
			Questions: "questions.xlsx",
			Responses: "student_answers.xlsx",
			Manifest:  "question_mappings.json",
			OutputDir: ".",
		},
	}
}

// SetDefaults registers Defaults on a viper instance so that config files
// and environment variables only need to name what they change.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("default_correct_score", d.Scoring.Correct)
	v.SetDefault("default_wrong_score", d.Scoring.Wrong)
	v.SetDefault("default_no_answer_score", d.Scoring.NoAnswer)
	v.SetDefault("passing_threshold", d.PassingThreshold)
	v.SetDefault("num_variants", d.NumVariants)
	v.SetDefault("num_potential_variants_for_randomness_check", d.NumPotentialVariants)
	v.SetDefault("similarity_metric", d.SimilarityMetric)
	v.SetDefault("similarity_ceiling", d.SimilarityCeiling)
	v.SetDefault("selection_policy", string(d.SelectionPolicy))
	v.SetDefault("per_group_count", d.PerGroupCount)
	v.SetDefault("shared_selection", d.SharedSelection)
	v.SetDefault("shuffle_questions", d.ShuffleQuestions)
	v.SetDefault("shuffle_answers", d.ShuffleAnswers)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("choice_label_format", string(d.LabelFormat))
	v.SetDefault("discrimination_fraction", d.DiscriminationFraction)
	v.SetDefault("language", d.Language)
	v.SetDefault("geometry_options", d.Document.GeometryOptions)
	v.SetDefault("questions", d.Paths.Questions)
	v.SetDefault("responses", d.Paths.Responses)
	v.SetDefault("manifest", d.Paths.Manifest)
	v.SetDefault("output_dir", d.Paths.OutputDir)
}

// FromViper reads every recognized key and validates the result.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Scoring: model.Points{
			Correct:  v.GetFloat64("default_correct_score"),
			Wrong:    v.GetFloat64("default_wrong_score"),
			NoAnswer: v.GetFloat64("default_no_answer_score"),
		},
		PassingThreshold:       v.GetFloat64("passing_threshold"),
		NumVariants:            v.GetInt("num_variants"),
		NumPotentialVariants:   v.GetInt("num_potential_variants_for_randomness_check"),
		SimilarityMetric:       strings.ToLower(strings.TrimSpace(v.GetString("similarity_metric"))),
		SimilarityCeiling:      v.GetFloat64("similarity_ceiling"),
		SelectionPolicy:        SelectionPolicy(strings.ToLower(strings.TrimSpace(v.GetString("selection_policy")))),
		PerGroupCount:          v.GetInt("per_group_count"),
		SharedSelection:        v.GetBool("shared_selection"),
		ShuffleQuestions:       v.GetBool("shuffle_questions"),
		ShuffleAnswers:         v.GetBool("shuffle_answers"),
		Seed:                   v.GetUint64("seed"),
		LabelFormat:            model.LabelFormat(strings.ToLower(strings.TrimSpace(v.GetString("choice_label_format")))),
		DiscriminationFraction: v.GetFloat64("discrimination_fraction"),
		Language:               v.GetString("language"),
		Document: Document{
			GeometryOptions: v.GetString("geometry_options"),
			HeaderLeft:      v.GetString("firstpageheader_left"),
			HeaderCenter:    v.GetString("firstpageheader_center"),
			HeaderRight:     v.GetString("firstpageheader_right"),
		},
		Paths: Paths{
			Questions: v.GetString("questions"),
			Responses: v.GetString("responses"),
			Manifest:  v.GetString("manifest"),
			OutputDir: v.GetString("output_dir"),
			DB:        v.GetString("db"),
		},
		Compile: v.GetBool("compile"),
		Strict:  v.GetBool("strict"),
	}
	// The original tool used "test_header" for the centered page header.
	if cfg.Document.HeaderCenter == "" {
		cfg.Document.HeaderCenter = v.GetString("test_header")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engines cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.PassingThreshold < 0 || c.PassingThreshold > 1 {
		errs = append(errs, fmt.Errorf("passing_threshold must be within [0,1], got %v", c.PassingThreshold))
	}
	if c.NumVariants < 1 {
		errs = append(errs, fmt.Errorf("num_variants must be positive, got %d", c.NumVariants))
	}
	if c.NumPotentialVariants < c.NumVariants {
		errs = append(errs, fmt.Errorf("num_potential_variants_for_randomness_check (%d) must be >= num_variants (%d)",
			c.NumPotentialVariants, c.NumVariants))
	}
	if c.SimilarityCeiling <= 0 || c.SimilarityCeiling > 1 {
		errs = append(errs, fmt.Errorf("similarity_ceiling must be within (0,1], got %v", c.SimilarityCeiling))
	}
	switch c.SelectionPolicy {
	case SelectAll, SelectOnePerGroup:
	case SelectFixedPerGroup:
		if c.PerGroupCount < 1 {
			errs = append(errs, fmt.Errorf("per_group_count must be positive, got %d", c.PerGroupCount))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown selection_policy %q", c.SelectionPolicy))
	}
	if !model.IsValidLabelFormat(string(c.LabelFormat)) {
		errs = append(errs, fmt.Errorf("unknown choice_label_format %q", c.LabelFormat))
	}
	if c.DiscriminationFraction <= 0 || c.DiscriminationFraction > 0.5 {
		errs = append(errs, fmt.Errorf("discrimination_fraction must be within (0,0.5], got %v", c.DiscriminationFraction))
	}
	return errors.Join(errs...)
}

// QuestionsPerGroup is how many questions the selection policy draws from a
// group of size n. Zero means every question.
func (c Config) QuestionsPerGroup() int {
	switch c.SelectionPolicy {
	case SelectOnePerGroup:
		return 1
	case SelectFixedPerGroup:
		return c.PerGroupCount
	default:
		return 0
	}
}

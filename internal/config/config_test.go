package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestFromViperConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"default_correct_score": 3,
		"default_wrong_score": -1,
		"default_no_answer_score": 0,
		"passing_threshold": 0.6,
		"num_variants": 4,
		"num_potential_variants_for_randomness_check": 40,
		"choice_label_format": "numbers",
		"test_header": "Physics midterm"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, model.Points{Correct: 3, Wrong: -1, NoAnswer: 0}, cfg.Scoring)
	assert.Equal(t, 4, cfg.NumVariants)
	assert.Equal(t, 40, cfg.NumPotentialVariants)
	assert.Equal(t, model.LabelNumbers, cfg.LabelFormat)
	assert.Equal(t, "Physics midterm", cfg.Document.HeaderCenter)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.PassingThreshold = 58 }},
		{"zero variants", func(c *Config) { c.NumVariants = 0 }},
		{"budget below variants", func(c *Config) { c.NumVariants = 5; c.NumPotentialVariants = 4 }},
		{"zero ceiling", func(c *Config) { c.SimilarityCeiling = 0 }},
		{"unknown policy", func(c *Config) { c.SelectionPolicy = "random" }},
		{"fixed without count", func(c *Config) { c.SelectionPolicy = SelectFixedPerGroup; c.PerGroupCount = 0 }},
		{"unknown label format", func(c *Config) { c.LabelFormat = "roman" }},
		{"fraction above half", func(c *Config) { c.DiscriminationFraction = 0.6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestQuestionsPerGroup(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 1, cfg.QuestionsPerGroup())
	cfg.SelectionPolicy = SelectFixedPerGroup
	cfg.PerGroupCount = 3
	assert.Equal(t, 3, cfg.QuestionsPerGroup())
	cfg.SelectionPolicy = SelectAll
	assert.Equal(t, 0, cfg.QuestionsPerGroup())
}

package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/answerkey"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

func sampleManifest(t *testing.T) *Manifest {
	t.Helper()
	wrong := -0.5
	france := model.Question{
		Key: model.QuestionKey("geo", "Capital of France?"), Group: "geo", Row: 2,
		Text: "Capital of France?", Correct: "Paris", Distractors: []string{"Rome", "Madrid"}, Columns: 3,
		Scoring: model.Scoring{Wrong: &wrong},
	}
	sum := model.Question{
		Key: model.QuestionKey("math", "2+2?"), Group: "math", Row: 2,
		Text: "2+2?", Correct: "4", Distractors: []string{"3", "5", "22"}, Columns: 1,
	}
	b := model.Bank{Groups: []model.QuestionGroup{
		{Name: "geo", Questions: []model.Question{france}},
		{Name: "math", Questions: []model.Question{sum}},
	}}
	vs := model.VariantSet{Variants: []model.Variant{
		{ID: 1, Items: []model.VariantItem{{QuestionKey: france.Key, Order: []int{1, 0, 2}}, {QuestionKey: sum.Key, Order: []int{3, 2, 1, 0}}}},
		{ID: 2, Items: []model.VariantItem{{QuestionKey: sum.Key, Order: []int{0, 1, 2, 3}}, {QuestionKey: france.Key, Order: []int{2, 1, 0}}}},
	}}
	keys, err := answerkey.BuildAll(vs, model.LabelLettersUpper)
	require.NoError(t, err)
	return New(b, vs, keys, 1234, model.LabelLettersUpper, "hamming", model.Randomness{QuestionOrder: 0.5})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := sampleManifest(t)
	path := filepath.Join(t.TempDir(), "question_mappings.json")
	require.NoError(t, Save(path, m))

	back, err := Load(path)
	require.NoError(t, err)
	assert.True(t, m.CreatedAt.Equal(back.CreatedAt))
	back.CreatedAt = m.CreatedAt
	assert.Equal(t, m, back)

	keys, err := answerkey.BuildAll(back.VariantSet(), back.LabelFormat)
	require.NoError(t, err)
	assert.Equal(t, m.AnswerKeys, keys)
	assert.Equal(t, "B", back.AnswerKeys[0].Entries[0].Label)
	require.NotNil(t, back.Catalog()[m.Variants[0].Items[0].QuestionKey].Scoring.Wrong)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, model.ErrManifestNotFound)
	var me *model.ManifestError
	assert.True(t, errors.As(err, &me))
}

func TestLoadRejectsBadManifests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"unknown label format", func(doc map[string]any) { doc["label_format"] = "roman" }},
		{"missing variants", func(doc map[string]any) { delete(doc, "variants") }},
		{"wrong schema version", func(doc map[string]any) { doc["schema_version"] = 2 }},
		{"tampered answer key", func(doc map[string]any) {
			key := doc["answer_keys"].([]any)[0].(map[string]any)
			entry := key["entries"].([]any)[0].(map[string]any)
			entry["correct"] = 2
			entry["label"] = "C"
		}},
		{"unknown question", func(doc map[string]any) {
			v := doc["variants"].([]any)[1].(map[string]any)
			item := v["items"].([]any)[0].(map[string]any)
			item["question_key"] = "math/ffffffffff"
		}},
		{"duplicate variant id", func(doc map[string]any) {
			v := doc["variants"].([]any)[1].(map[string]any)
			v["id"] = 1
		}},
		{"question repeated in variant", func(doc map[string]any) {
			items := doc["variants"].([]any)[0].(map[string]any)["items"].([]any)
			items[1] = items[0]
		}},
		{"order not a permutation", func(doc map[string]any) {
			v := doc["variants"].([]any)[0].(map[string]any)
			item := v["items"].([]any)[0].(map[string]any)
			item["order"] = []any{0, 0, 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(sampleManifest(t))
			require.NoError(t, err)
			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			tt.mutate(doc)
			data, err = json.Marshal(doc)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "m.json")
			require.NoError(t, os.WriteFile(path, data, 0o644))
			_, err = Load(path)
			var me *model.ManifestError
			require.True(t, errors.As(err, &me), "got %v", err)
			assert.NotErrorIs(t, err, model.ErrManifestNotFound)
		})
	}
}

func TestCheckRejectsRepeatedQuestion(t *testing.T) {
	m := sampleManifest(t)
	m.Variants[0].Items[1] = m.Variants[0].Items[0]
	err := m.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant 1 position 2")
	assert.Contains(t, err.Error(), "already at position 1")
}

func TestLoadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	var me *model.ManifestError
	assert.True(t, errors.As(err, &me))
}

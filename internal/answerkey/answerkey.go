// Package answerkey derives the correct option of every question position of
// a variant.
package answerkey

import (
	"encoding/json"
	"fmt"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Build returns the answer key of v. It is a pure function of its inputs.
func Build(v model.Variant, format model.LabelFormat) (model.AnswerKey, error) {
	key := model.AnswerKey{VariantID: v.ID, Entries: make([]model.KeyEntry, len(v.Items))}
	for i, it := range v.Items {
		pos := it.CorrectPosition()
		if pos < 0 {
			return model.AnswerKey{}, fmt.Errorf("variant %d position %d: option order %v has no correct answer", v.ID, i+1, it.Order)
		}
		key.Entries[i] = model.KeyEntry{
			Position:    i,
			QuestionKey: it.QuestionKey,
			Correct:     pos,
			Label:       format.Label(pos),
		}
	}
	return key, nil
}

// BuildAll builds one key per variant, in variant order.
func BuildAll(vs model.VariantSet, format model.LabelFormat) ([]model.AnswerKey, error) {
	keys := make([]model.AnswerKey, 0, len(vs.Variants))
	for _, v := range vs.Variants {
		k, err := Build(v, format)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Index maps the label of each variant to its key.
func Index(keys []model.AnswerKey) map[string]model.AnswerKey {
	idx := make(map[string]model.AnswerKey, len(keys))
	for _, k := range keys {
		idx[model.Variant{ID: k.VariantID}.Label()] = k
	}
	return idx
}

// Encode returns the canonical JSON form of a key. Rebuilding a key from the
// same variant yields identical bytes.
func Encode(k model.AnswerKey) ([]byte, error) {
	return json.Marshal(k)
}

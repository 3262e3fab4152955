// Package manifest persists the output of variant generation so that a later
// grading run can rebuild every answer key.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/answerkey"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// SchemaVersion is written into every manifest and required on load.
const SchemaVersion = 1

//go:embed schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Manifest is the Phase 1 output boundary.
type Manifest struct {
	SchemaVersion    int               `json:"schema_version"`
	RunID            string            `json:"run_id"`
	CreatedAt        time.Time         `json:"created_at"`
	Seed             uint64            `json:"seed"`
	LabelFormat      model.LabelFormat `json:"label_format"`
	SimilarityMetric string            `json:"similarity_metric,omitempty"`
	Bank             model.Bank        `json:"bank"`
	Variants         []model.Variant   `json:"variants"`
	AnswerKeys       []model.AnswerKey `json:"answer_keys"`
	Randomness       model.Randomness  `json:"randomness"`
}

// New assembles a manifest for a freshly generated variant set.
func New(b model.Bank, vs model.VariantSet, keys []model.AnswerKey, seed uint64, format model.LabelFormat, metric string, r model.Randomness) *Manifest {
	return &Manifest{
		SchemaVersion:    SchemaVersion,
		RunID:            uuid.NewString(),
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		Seed:             seed,
		LabelFormat:      format,
		SimilarityMetric: metric,
		Bank:             b,
		Variants:         vs.Variants,
		AnswerKeys:       keys,
		Randomness:       r,
	}
}

// VariantSet returns the variants as a set.
func (m *Manifest) VariantSet() model.VariantSet {
	return model.VariantSet{Variants: m.Variants}
}

// Catalog indexes the manifest's questions by key.
func (m *Manifest) Catalog() map[string]model.Question {
	return m.Bank.Catalog()
}

// Save writes the manifest as indented JSON.
func Save(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	slog.Info("wrote manifest", "path", path, "run_id", m.RunID, "variants", len(m.Variants))
	return nil
}

// Load reads, schema-validates and integrity-checks a manifest. Every
// failure is a *model.ManifestError; a missing file wraps
// model.ErrManifestNotFound.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.ManifestError{Path: path, Err: model.ErrManifestNotFound}
		}
		return nil, &model.ManifestError{Path: path, Err: err}
	}
	m, err := Decode(data)
	if err != nil {
		return nil, &model.ManifestError{Path: path, Err: err}
	}
	slog.Info("loaded manifest", "path", path, "run_id", m.RunID, "variants", len(m.Variants))
	return m, nil
}

// Decode validates data against the manifest schema, decodes it, and checks
// it for internal consistency.
func Decode(data []byte) (*Manifest, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.json", doc); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile("manifest.json")
	})
	return compiled, compileErr
}

func validate(data []byte) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Check verifies that variant ids are unique, every item names a known
// question at most once per variant with a full option permutation, and the
// stored answer keys equal
// the keys rebuilt from the variants.
func (m *Manifest) Check() error {
	cat := m.Catalog()
	seen := make(map[int]bool, len(m.Variants))
	for _, v := range m.Variants {
		if seen[v.ID] {
			return fmt.Errorf("duplicate variant id %d", v.ID)
		}
		seen[v.ID] = true
		used := make(map[string]int, len(v.Items))
		for i, it := range v.Items {
			q, ok := cat[it.QuestionKey]
			if !ok {
				return fmt.Errorf("variant %d position %d: unknown question %q", v.ID, i+1, it.QuestionKey)
			}
			if prev, dup := used[it.QuestionKey]; dup {
				return fmt.Errorf("variant %d position %d: question %q already at position %d", v.ID, i+1, it.QuestionKey, prev)
			}
			used[it.QuestionKey] = i + 1
			if !isPermutation(it.Order, q.NumOptions()) {
				return fmt.Errorf("variant %d position %d: order %v is not a permutation of %d options", v.ID, i+1, it.Order, q.NumOptions())
			}
		}
	}

	rebuilt, err := answerkey.BuildAll(m.VariantSet(), m.LabelFormat)
	if err != nil {
		return err
	}
	if len(rebuilt) != len(m.AnswerKeys) {
		return fmt.Errorf("manifest holds %d answer keys for %d variants", len(m.AnswerKeys), len(rebuilt))
	}
	for i := range rebuilt {
		want, err := answerkey.Encode(rebuilt[i])
		if err != nil {
			return err
		}
		got, err := answerkey.Encode(m.AnswerKeys[i])
		if err != nil {
			return err
		}
		if !bytes.Equal(want, got) {
			return fmt.Errorf("answer key of variant %d does not match its variant", rebuilt[i].VariantID)
		}
	}
	return nil
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	sorted := slices.Clone(order)
	slices.Sort(sorted)
	for i, v := range sorted {
		if v != i {
			return false
		}
	}
	return true
}

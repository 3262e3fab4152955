// Package variant assembles randomized test variants from the question bank
// and rejects candidates too similar to variants already accepted.
package variant

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/config"
	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Generator draws candidate variants from an injected random source.
type Generator struct {
	cfg    config.Config
	metric Metric
	rng    *rand.Rand
}

// NewGenerator validates the metric named by cfg and binds the random source.
func NewGenerator(cfg config.Config, rng *rand.Rand) (*Generator, error) {
	m, err := MetricByName(cfg.SimilarityMetric)
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, metric: m, rng: rng}, nil
}

// NewRand returns a PCG source for seed. Seed 0 picks a fresh seed; the
// seed actually used is returned so the run can be reproduced.
func NewRand(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = rand.Uint64()
		if seed == 0 {
			seed = 1
		}
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed
}

// Generate returns NumVariants variants whose pairwise similarity stays below
// the configured ceiling. Candidates are drawn in rounds; the best qualifying
// candidate of each round is accepted. When the candidate budget runs out an
// *model.InsufficientRandomnessError is returned and no variants at all.
func (g *Generator) Generate(b model.Bank) (model.VariantSet, error) {
	if err := g.checkBank(b); err != nil {
		return model.VariantSet{}, err
	}

	var shared [][]int
	if g.cfg.SharedSelection {
		shared = g.selectQuestions(b)
	}

	want := g.cfg.NumVariants
	budget := g.cfg.NumPotentialVariants
	round := max(1, budget/want)
	accepted := make([]model.Variant, 0, want)
	drawn := 0

	for len(accepted) < want && drawn < budget {
		size := min(round, budget-drawn)
		best, bestScore := -1, 0.0
		candidates := make([]model.Variant, size)
		for i := range size {
			sel := shared
			if sel == nil {
				sel = g.selectQuestions(b)
			}
			candidates[i] = g.assemble(b, sel)
			drawn++

			score := g.maxSimilarity(candidates[i], accepted)
			qualifies := score < g.cfg.SimilarityCeiling
			slog.Debug("variant candidate", "candidate", drawn, "max_similarity", score, "qualifies", qualifies)
			if qualifies && (best < 0 || score < bestScore) {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			continue
		}
		v := candidates[best]
		v.ID = len(accepted) + 1
		accepted = append(accepted, v)
		slog.Debug("variant accepted", "id", v.ID, "max_similarity", bestScore, "drawn", drawn)
	}

	if len(accepted) < want {
		return model.VariantSet{}, &model.InsufficientRandomnessError{
			Requested: want,
			Achieved:  len(accepted),
			Budget:    budget,
			Ceiling:   g.cfg.SimilarityCeiling,
		}
	}
	slog.Info("generated variants", "count", len(accepted), "candidates", drawn, "metric", g.metric.Name())
	return model.VariantSet{Variants: accepted}, nil
}

// Similarity exposes the configured metric.
func (g *Generator) Similarity(a, b model.Variant) float64 {
	return g.metric.Similarity(a, b)
}

func (g *Generator) maxSimilarity(v model.Variant, accepted []model.Variant) float64 {
	worst := 0.0
	for _, a := range accepted {
		worst = max(worst, g.metric.Similarity(v, a))
	}
	return worst
}

func (g *Generator) checkBank(b model.Bank) error {
	if len(b.Groups) == 0 {
		return &model.ValidationError{Reason: "question bank is empty"}
	}
	k := g.cfg.QuestionsPerGroup()
	for _, grp := range b.Groups {
		if len(grp.Questions) == 0 {
			return &model.ValidationError{Sheet: grp.Name, Reason: "group has no questions"}
		}
		if k > len(grp.Questions) {
			return &model.ValidationError{
				Sheet:  grp.Name,
				Reason: fmt.Sprintf("group has %d questions but %d are drawn per group", len(grp.Questions), k),
			}
		}
		if limit := g.cfg.LabelFormat.MaxOptions(); limit > 0 {
			for _, q := range grp.Questions {
				if q.NumOptions() > limit {
					return &model.ValidationError{
						Sheet:  grp.Name,
						Row:    q.Row,
						Reason: fmt.Sprintf("question has %d options but %s labels at most %d", q.NumOptions(), g.cfg.LabelFormat, limit),
					}
				}
			}
		}
	}
	return nil
}

// selectQuestions picks question indexes per group, ascending within a group.
func (g *Generator) selectQuestions(b model.Bank) [][]int {
	k := g.cfg.QuestionsPerGroup()
	sel := make([][]int, len(b.Groups))
	for i, grp := range b.Groups {
		n := len(grp.Questions)
		if k == 0 {
			sel[i] = identity(n)
			continue
		}
		idx := g.rng.Perm(n)[:k]
		slices.Sort(idx)
		sel[i] = idx
	}
	return sel
}

func (g *Generator) assemble(b model.Bank, sel [][]int) model.Variant {
	var v model.Variant
	for gi, idx := range sel {
		for _, qi := range idx {
			q := b.Groups[gi].Questions[qi]
			order := identity(q.NumOptions())
			if g.cfg.ShuffleAnswers {
				order = g.rng.Perm(q.NumOptions())
			}
			v.Items = append(v.Items, model.VariantItem{QuestionKey: q.Key, Order: order})
		}
	}
	if g.cfg.ShuffleQuestions {
		g.rng.Shuffle(len(v.Items), func(i, j int) { v.Items[i], v.Items[j] = v.Items[j], v.Items[i] })
	}
	return v
}

func identity(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

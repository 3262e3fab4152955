package variant

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Evaluate measures the accepted set against bank order.
//
// QuestionOrder is the mean share of positions whose question differs from
// the bank order of the same selection. AnswerOrder is, per question, the
// population deviation of the correct answer's position normalized by the
// last option index, averaged over questions. Combined is their mean.
func Evaluate(b model.Bank, vs model.VariantSet) model.Randomness {
	if len(vs.Variants) == 0 {
		return model.Randomness{}
	}
	rank := make(map[string]int)
	options := make(map[string]int)
	for _, g := range b.Groups {
		for _, q := range g.Questions {
			rank[q.Key] = len(rank)
			options[q.Key] = q.NumOptions()
		}
	}

	var orderScores []float64
	positions := make(map[string][]float64)
	var keys []string
	for _, v := range vs.Variants {
		canonical := v.Keys()
		slices.SortStableFunc(canonical, func(x, y string) int { return rank[x] - rank[y] })
		diff := 0
		for i, it := range v.Items {
			if it.QuestionKey != canonical[i] {
				diff++
			}
			if _, seen := positions[it.QuestionKey]; !seen {
				keys = append(keys, it.QuestionKey)
			}
			positions[it.QuestionKey] = append(positions[it.QuestionKey], float64(it.CorrectPosition()))
		}
		if len(v.Items) > 0 {
			orderScores = append(orderScores, float64(diff)/float64(len(v.Items)))
		}
	}

	var answerScores []float64
	for _, k := range keys {
		pos := positions[k]
		spread := 0.0
		if len(pos) > 1 && options[k] > 1 && slices.Max(pos) > slices.Min(pos) {
			_, sd := stat.PopMeanStdDev(pos, nil)
			spread = sd / float64(options[k]-1)
		}
		answerScores = append(answerScores, spread)
	}

	r := model.Randomness{
		QuestionOrder: mean(orderScores),
		AnswerOrder:   mean(answerScores),
	}
	r.Combined = (r.QuestionOrder + r.AnswerOrder) / 2
	return r
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

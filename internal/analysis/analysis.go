// Package analysis computes item and cohort statistics over graded records.
package analysis

import (
	"log/slog"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Options are the analysis parameters taken from the run configuration.
type Options struct {
	PassingThreshold       float64
	DiscriminationFraction float64
}

// minGroupSize is the smallest top or bottom group that yields a
// discrimination index.
const minGroupSize = 2

// eps absorbs floating-point noise in score comparisons.
const eps = 1e-9

// Analyze computes the full statistical snapshot of a cohort. Questions are
// reported in bank order, students in record order.
func Analyze(recs []model.GradedRecord, b model.Bank, opts Options) model.Analysis {
	a := model.Analysis{
		Summary:   Summarize(recs, opts.PassingThreshold),
		Questions: QuestionStats(recs, b, opts.DiscriminationFraction),
		Students:  StudentStats(recs, opts.PassingThreshold),
	}
	slog.Info("analyzed cohort",
		"students", a.Summary.Students,
		"questions", len(a.Questions),
		"mean_percentage", a.Summary.MeanPercentage,
		"pass_rate", a.Summary.PassRate)
	return a
}

// QuestionStats aggregates outcomes per question key across variants. Only
// questions presented to at least one student are reported.
func QuestionStats(recs []model.GradedRecord, b model.Bank, fraction float64) []model.QuestionStatistics {
	top, bottom := extremeGroups(recs, fraction)

	var out []model.QuestionStatistics
	for _, g := range b.Groups {
		for _, q := range g.Questions {
			qs := model.QuestionStatistics{QuestionKey: q.Key, Group: q.Group, Text: q.Text}
			for _, r := range recs {
				o, ok := r.Outcome(q.Key)
				if !ok {
					continue
				}
				switch o {
				case model.OutcomeCorrect:
					qs.Correct++
				case model.OutcomeIncorrect:
					qs.Incorrect++
				default:
					qs.Unanswered++
				}
			}
			if qs.Total() == 0 {
				continue
			}
			qs.Difficulty = model.Defined(float64(qs.Correct) / float64(qs.Total()))
			qs.Discrimination = Discrimination(q.Key, top, bottom)
			qs.DifficultyRating = DifficultyRating(qs.Difficulty)
			qs.DiscriminationRating = DiscriminationRating(qs.Discrimination)
			out = append(out, qs)
		}
	}
	return out
}

// extremeGroups ranks records by percentage, highest first with ties broken
// by student id, and returns the floor(n*fraction) best and worst.
func extremeGroups(recs []model.GradedRecord, fraction float64) (top, bottom []model.GradedRecord) {
	ranked := slices.Clone(recs)
	slices.SortStableFunc(ranked, func(a, b model.GradedRecord) int {
		switch {
		case a.Percentage > b.Percentage+eps:
			return -1
		case b.Percentage > a.Percentage+eps:
			return 1
		default:
			return strings.Compare(a.StudentID, b.StudentID)
		}
	})
	k := int(math.Floor(float64(len(ranked)) * fraction))
	return ranked[:k], ranked[len(ranked)-k:]
}

// Discrimination is p_top - p_bottom over the group members who were shown
// the question. It is undefined when either group has fewer than two such
// members.
func Discrimination(questionKey string, top, bottom []model.GradedRecord) model.Stat {
	pTop, nTop := proportionCorrect(questionKey, top)
	pBottom, nBottom := proportionCorrect(questionKey, bottom)
	if nTop < minGroupSize || nBottom < minGroupSize {
		return model.UndefinedStatistic
	}
	return model.Defined(pTop - pBottom)
}

func proportionCorrect(questionKey string, group []model.GradedRecord) (float64, int) {
	shown, correct := 0, 0
	for _, r := range group {
		o, ok := r.Outcome(questionKey)
		if !ok {
			continue
		}
		shown++
		if o == model.OutcomeCorrect {
			correct++
		}
	}
	if shown == 0 {
		return 0, 0
	}
	return float64(correct) / float64(shown), shown
}

// StudentStats places every student within the cohort's percentage
// distribution.
func StudentStats(recs []model.GradedRecord, threshold float64) []model.StudentStatistics {
	pcts := make([]float64, len(recs))
	for i, r := range recs {
		pcts[i] = r.Percentage
	}
	out := make([]model.StudentStatistics, len(recs))
	for i, r := range recs {
		z := ZScore(r.Percentage, pcts)
		out[i] = model.StudentStatistics{
			StudentID:  r.StudentID,
			VariantID:  r.VariantID,
			RawScore:   r.RawScore,
			MaxScore:   r.MaxScore,
			Percentage: r.Percentage,
			ZScore:     z,
			Percentile: PercentileRank(r.Percentage, pcts),
			Stanine:    model.StanineFromZ(z),
			Passed:     Passed(r.Percentage, threshold),
		}
	}
	return out
}

// ZScore standardizes x against the population deviation of all. It is
// undefined for fewer than two values or zero variance.
func ZScore(x float64, all []float64) model.Stat {
	if len(all) < 2 {
		return model.UndefinedStatistic
	}
	mean, sd := stat.PopMeanStdDev(all, nil)
	if sd < eps {
		return model.UndefinedStatistic
	}
	return model.Defined((x - mean) / sd)
}

// PercentileRank is the midpoint percentile rank of x among all, counting
// values equal to x (including x itself) as half below.
func PercentileRank(x float64, all []float64) model.Stat {
	if len(all) < 2 {
		return model.UndefinedStatistic
	}
	below, equal := 0, 0
	for _, v := range all {
		switch {
		case math.Abs(v-x) <= eps:
			equal++
		case v < x:
			below++
		}
	}
	return model.Defined((float64(below) + float64(equal)/2) / float64(len(all)) * 100)
}

// Passed reports whether a percentage reaches the passing threshold, given
// as a fraction.
func Passed(pct, threshold float64) bool {
	return pct >= threshold*100-eps
}

// Summarize computes the descriptive statistics of raw scores and the
// cohort averages per outcome.
func Summarize(recs []model.GradedRecord, threshold float64) model.CohortSummary {
	s := model.CohortSummary{Students: len(recs), PassingThreshold: threshold * 100}
	if len(recs) == 0 {
		return s
	}

	n := len(recs)
	scores := make([]float64, n)
	pcts := make([]float64, n)
	cols := make([][]float64, 6)
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	passed := 0
	for i, r := range recs {
		scores[i] = r.RawScore
		pcts[i] = r.Percentage
		cols[0][i] = float64(r.CorrectCount)
		cols[1][i] = float64(r.IncorrectCount)
		cols[2][i] = float64(r.UnansweredCount)
		cols[3][i] = r.CorrectPoints
		cols[4][i] = r.WrongPoints
		cols[5][i] = r.NoAnswerPoints
		if Passed(r.Percentage, threshold) {
			passed++
		}
	}

	s.MeanScore, s.StdDevScore = stat.PopMeanStdDev(scores, nil)
	if n == 1 {
		s.StdDevScore = 0
	}
	s.MinScore = floats.Min(scores)
	s.MaxScore = floats.Max(scores)

	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	s.MedianScore = Quantile(0.5, sorted)
	s.Quartiles = [3]float64{Quantile(0.25, sorted), s.MedianScore, Quantile(0.75, sorted)}

	s.MeanPercentage = stat.Mean(pcts, nil)
	s.PassRate = float64(passed) / float64(n) * 100
	s.MeanCorrectCount = stat.Mean(cols[0], nil)
	s.MeanWrongCount = stat.Mean(cols[1], nil)
	s.MeanBlankCount = stat.Mean(cols[2], nil)
	s.MeanCorrectPoints = stat.Mean(cols[3], nil)
	s.MeanWrongPoints = stat.Mean(cols[4], nil)
	s.MeanBlankPoints = stat.Mean(cols[5], nil)
	return s
}

// Quantile returns the p-quantile of sorted data, interpolating linearly
// between closest ranks (the inclusive spreadsheet PERCENTILE rule).
func Quantile(p float64, sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Rating labels.
const (
	RatingEasy   = "easy"
	RatingMedium = "medium"
	RatingHard   = "hard"

	RatingNegative  = "negative"
	RatingPoor      = "poor"
	RatingGood      = "good"
	RatingExcellent = "excellent"

	RatingUndefined = "n/a"
)

// DifficultyRating labels a difficulty index.
func DifficultyRating(p model.Stat) string {
	switch {
	case !p.Valid:
		return RatingUndefined
	case p.Value >= 0.7:
		return RatingEasy
	case p.Value >= 0.3:
		return RatingMedium
	default:
		return RatingHard
	}
}

// DiscriminationRating labels a discrimination index.
func DiscriminationRating(d model.Stat) string {
	switch {
	case !d.Valid:
		return RatingUndefined
	case d.Value < 0:
		return RatingNegative
	case d.Value < 0.2:
		return RatingPoor
	case d.Value < 0.4:
		return RatingGood
	default:
		return RatingExcellent
	}
}

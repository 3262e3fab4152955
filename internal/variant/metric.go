package variant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// Metric scores how alike two variants are. Scores lie in [0,1]; two
// identical variants score 1.
type Metric interface {
	Name() string
	Similarity(a, b model.Variant) float64
}

type metricFunc struct {
	name string
	fn   func(a, b model.Variant) float64
}

func (m metricFunc) Name() string                          { return m.name }
func (m metricFunc) Similarity(a, b model.Variant) float64 { return m.fn(a, b) }

var metrics = map[string]Metric{
	"hamming":        metricFunc{"hamming", hammingSimilarity},
	"question_order": metricFunc{"question_order", questionOrderSimilarity},
	"answer_order":   metricFunc{"answer_order", answerOrderSimilarity},
	"adjacency":      metricFunc{"adjacency", adjacencySimilarity},
}

// MetricByName returns a registered metric.
func MetricByName(name string) (Metric, error) {
	m, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown similarity metric %q (known: %s)", name, strings.Join(MetricNames(), ", "))
	}
	return m, nil
}

// MetricNames lists the registered metric names in sorted order.
func MetricNames() []string {
	names := make([]string, 0, len(metrics))
	for n := range metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// questionOrderSimilarity is the share of positions holding the same question.
func questionOrderSimilarity(a, b model.Variant) float64 {
	n := max(len(a.Items), len(b.Items))
	if n == 0 {
		return 1
	}
	same := 0
	for i := range min(len(a.Items), len(b.Items)) {
		if a.Items[i].QuestionKey == b.Items[i].QuestionKey {
			same++
		}
	}
	return float64(same) / float64(n)
}

// answerOrderSimilarity is the share of questions common to both variants
// whose options appear in the same order.
func answerOrderSimilarity(a, b model.Variant) float64 {
	shared, same := 0, 0
	for _, pair := range sharedItems(a, b) {
		shared++
		if equalOrder(pair[0].Order, pair[1].Order) {
			same++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(same) / float64(shared)
}

// hammingSimilarity averages the question-slot and option-slot Hamming
// similarities. Option slots are compared over the questions both variants
// contain.
func hammingSimilarity(a, b model.Variant) float64 {
	slots, same := 0, 0
	for _, pair := range sharedItems(a, b) {
		oa, ob := pair[0].Order, pair[1].Order
		slots += max(len(oa), len(ob))
		for i := range min(len(oa), len(ob)) {
			if oa[i] == ob[i] {
				same++
			}
		}
	}
	options := 0.0
	if slots > 0 {
		options = float64(same) / float64(slots)
	}
	return (questionOrderSimilarity(a, b) + options) / 2
}

// adjacencySimilarity is the share of ordered neighbouring question pairs the
// variants have in common. Single-question variants fall back to the
// question-order score.
func adjacencySimilarity(a, b model.Variant) float64 {
	pa, pb := adjacentPairs(a), adjacentPairs(b)
	n := max(len(pa), len(pb))
	if n == 0 {
		return questionOrderSimilarity(a, b)
	}
	same := 0
	for p := range pb {
		if pa[p] {
			same++
		}
	}
	return float64(same) / float64(n)
}

func adjacentPairs(v model.Variant) map[[2]string]bool {
	pairs := make(map[[2]string]bool)
	for i := 1; i < len(v.Items); i++ {
		pairs[[2]string{v.Items[i-1].QuestionKey, v.Items[i].QuestionKey}] = true
	}
	return pairs
}

func sharedItems(a, b model.Variant) [][2]model.VariantItem {
	byKey := make(map[string]model.VariantItem, len(b.Items))
	for _, it := range b.Items {
		byKey[it.QuestionKey] = it
	}
	var out [][2]model.VariantItem
	for _, it := range a.Items {
		if other, ok := byKey[it.QuestionKey]; ok {
			out = append(out, [2]model.VariantItem{it, other})
		}
	}
	return out
}

func equalOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

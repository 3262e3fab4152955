package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// NoAnswer is the submitted label recorded for a blank answer cell.
const NoAnswer = ""

// Scoring holds optional per-question point overrides. A nil field means the
// configured default applies.
type Scoring struct {
	Correct  *float64 `json:"correct,omitempty"`
	Wrong    *float64 `json:"wrong,omitempty"`
	NoAnswer *float64 `json:"no_answer,omitempty"`
}

// Points is a fully resolved point scheme for one question.
type Points struct {
	Correct  float64 `json:"correct"`
	Wrong    float64 `json:"wrong"`
	NoAnswer float64 `json:"no_answer"`
}

// Resolve fills missing overrides from the defaults.
func (s Scoring) Resolve(defaults Points) Points {
	p := defaults
	if s.Correct != nil {
		p.Correct = *s.Correct
	}
	if s.Wrong != nil {
		p.Wrong = *s.Wrong
	}
	if s.NoAnswer != nil {
		p.NoAnswer = *s.NoAnswer
	}
	return p
}

// Question is a single bank entry: one correct answer plus distractors.
type Question struct {
	Key         string   `json:"key"`
	Group       string   `json:"group"`
	Row         int      `json:"row"`
	Text        string   `json:"text"`
	Correct     string   `json:"correct"`
	Distractors []string `json:"distractors"`
	Columns     int      `json:"columns"`
	Scoring     Scoring  `json:"scoring"`
}

// Options returns the canonical option list: the correct answer first, then
// the distractors in bank order.
func (q Question) Options() []string {
	opts := make([]string, 0, len(q.Distractors)+1)
	opts = append(opts, q.Correct)
	return append(opts, q.Distractors...)
}

// NumOptions is the number of answer choices shown for the question.
func (q Question) NumOptions() int {
	return len(q.Distractors) + 1
}

// QuestionKey derives the stable content key of a question within its group.
func QuestionKey(group, text string) string {
	sum := sha256.Sum256([]byte(text))
	return group + "/" + hex.EncodeToString(sum[:])[:10]
}

// QuestionGroup is one sheet of the bank.
type QuestionGroup struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Bank is the validated question bank of one run.
type Bank struct {
	Groups []QuestionGroup `json:"groups"`
}

// Catalog indexes every question of the bank by content key.
func (b Bank) Catalog() map[string]Question {
	cat := make(map[string]Question)
	for _, g := range b.Groups {
		for _, q := range g.Questions {
			cat[q.Key] = q
		}
	}
	return cat
}

// NumQuestions counts the questions of all groups.
func (b Bank) NumQuestions() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g.Questions)
	}
	return n
}

// VariantItem places one question in a variant. Order is a permutation of
// canonical option indices; index 0 is the correct answer.
type VariantItem struct {
	QuestionKey string `json:"question_key"`
	Order       []int  `json:"order"`
}

// CorrectPosition returns the displayed position of the correct answer.
func (it VariantItem) CorrectPosition() int {
	for pos, idx := range it.Order {
		if idx == 0 {
			return pos
		}
	}
	return -1
}

// Variant is one assembled test.
type Variant struct {
	ID    int           `json:"id"`
	Items []VariantItem `json:"items"`
}

// Label is the identifier students write on their answer sheet.
func (v Variant) Label() string {
	return strconv.Itoa(v.ID)
}

// Keys returns the question keys in presentation order.
func (v Variant) Keys() []string {
	keys := make([]string, len(v.Items))
	for i, it := range v.Items {
		keys[i] = it.QuestionKey
	}
	return keys
}

// VariantSet is every variant produced by one generation run.
type VariantSet struct {
	Variants []Variant `json:"variants"`
}

// Randomness summarizes how far a variant set departs from the bank order.
// Each value lies in [0,1].
type Randomness struct {
	QuestionOrder float64 `json:"question_order"`
	AnswerOrder   float64 `json:"answer_order"`
	Combined      float64 `json:"combined"`
}

// KeyEntry is the correct option of one question position.
type KeyEntry struct {
	Position    int    `json:"position"`
	QuestionKey string `json:"question_key"`
	Correct     int    `json:"correct"`
	Label       string `json:"label"`
}

// AnswerKey maps each position of a variant to its correct option.
type AnswerKey struct {
	VariantID int        `json:"variant_id"`
	Entries   []KeyEntry `json:"entries"`
}

// StudentResponse is one row of the collected answer sheet.
type StudentResponse struct {
	StudentID string   `json:"student_id"`
	VariantID string   `json:"variant_id"`
	Answers   []string `json:"answers"`
}

// Answer returns the submitted label at position, or NoAnswer.
func (r StudentResponse) Answer(position int) string {
	if position < 0 || position >= len(r.Answers) {
		return NoAnswer
	}
	return r.Answers[position]
}

// Outcome classifies one graded answer.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
)

// GradedAnswer is the grading result of one question position.
type GradedAnswer struct {
	Position     int     `json:"position"`
	QuestionKey  string  `json:"question_key"`
	Group        string  `json:"group"`
	Submitted    string  `json:"submitted"`
	CorrectLabel string  `json:"correct_label"`
	Outcome      Outcome `json:"outcome"`
	Points       float64 `json:"points"`
}

// GradedRecord is the final grading snapshot of one student.
type GradedRecord struct {
	StudentID       string         `json:"student_id"`
	VariantID       int            `json:"variant_id"`
	Answers         []GradedAnswer `json:"answers"`
	CorrectCount    int            `json:"correct_count"`
	IncorrectCount  int            `json:"incorrect_count"`
	UnansweredCount int            `json:"unanswered_count"`
	CorrectPoints   float64        `json:"correct_points"`
	WrongPoints     float64        `json:"wrong_points"`
	NoAnswerPoints  float64        `json:"no_answer_points"`
	RawScore        float64        `json:"raw_score"`
	MaxScore        float64        `json:"max_score"`
	Percentage      float64        `json:"percentage"`
}

// Outcome returns the outcome recorded for a question key and whether the
// student was presented that question.
func (g GradedRecord) Outcome(questionKey string) (Outcome, bool) {
	for _, a := range g.Answers {
		if a.QuestionKey == questionKey {
			return a.Outcome, true
		}
	}
	return "", false
}

// QuestionStatistics aggregates one question over the cohort.
type QuestionStatistics struct {
	QuestionKey          string `json:"question_key"`
	Group                string `json:"group"`
	Text                 string `json:"text"`
	Correct              int    `json:"correct"`
	Incorrect            int    `json:"incorrect"`
	Unanswered           int    `json:"unanswered"`
	Difficulty           Stat   `json:"difficulty"`
	Discrimination       Stat   `json:"discrimination"`
	DifficultyRating     string `json:"difficulty_rating"`
	DiscriminationRating string `json:"discrimination_rating"`
}

// Total is the number of students presented the question.
func (q QuestionStatistics) Total() int {
	return q.Correct + q.Incorrect + q.Unanswered
}

// Share returns n as a percentage of Total, or 0 when nobody saw the question.
func (q QuestionStatistics) Share(n int) float64 {
	if q.Total() == 0 {
		return 0
	}
	return float64(n) / float64(q.Total()) * 100
}

// StudentStatistics is the cohort-relative standing of one student.
type StudentStatistics struct {
	StudentID  string  `json:"student_id"`
	VariantID  int     `json:"variant_id"`
	RawScore   float64 `json:"raw_score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
	ZScore     Stat    `json:"z_score"`
	Percentile Stat    `json:"percentile"`
	Stanine    Stanine `json:"stanine"`
	Passed     bool    `json:"passed"`
}

// CohortSummary holds descriptive statistics of the whole cohort.
type CohortSummary struct {
	Students          int        `json:"students"`
	MeanScore         float64    `json:"mean_score"`
	MedianScore       float64    `json:"median_score"`
	StdDevScore       float64    `json:"std_dev_score"`
	MinScore          float64    `json:"min_score"`
	MaxScore          float64    `json:"max_score"`
	Quartiles         [3]float64 `json:"quartiles"`
	MeanPercentage    float64    `json:"mean_percentage"`
	PassingThreshold  float64    `json:"passing_threshold"`
	PassRate          float64    `json:"pass_rate"`
	MeanCorrectCount  float64    `json:"mean_correct_count"`
	MeanWrongCount    float64    `json:"mean_wrong_count"`
	MeanBlankCount    float64    `json:"mean_blank_count"`
	MeanCorrectPoints float64    `json:"mean_correct_points"`
	MeanWrongPoints   float64    `json:"mean_wrong_points"`
	MeanBlankPoints   float64    `json:"mean_blank_points"`
}

// Analysis is the full Phase 2 statistical snapshot.
type Analysis struct {
	Summary   CohortSummary        `json:"summary"`
	Questions []QuestionStatistics `json:"questions"`
	Students  []StudentStatistics  `json:"students"`
}

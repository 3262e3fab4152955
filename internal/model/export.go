package model

import "time"

// RunInfo is the archive listing entry of one grading run.
type RunInfo struct {
	ID             string    `json:"id"`
	ManifestRunID  string    `json:"manifest_run_id"`
	GradedAt       time.Time `json:"graded_at"`
	Students       int       `json:"students"`
	MeanPercentage float64   `json:"mean_percentage"`
	PassRate       float64   `json:"pass_rate"`
}

// GradingIssue is a per-student problem collected while grading.
type GradingIssue struct {
	StudentID string `json:"student_id"`
	VariantID string `json:"variant_id"`
	Message   string `json:"message"`
}

// RunExport is the top-level JSON structure for an archived grading run.
type RunExport struct {
	Run       RunInfo              `json:"run"`
	Summary   CohortSummary        `json:"summary"`
	Questions []QuestionStatistics `json:"questions"`
	Students  []StudentStatistics  `json:"students"`
	Issues    []GradingIssue       `json:"issues"`
}

package store

import (
	"fmt"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"
)

// ExportRun assembles the complete archived record of a run.
func (s *Store) ExportRun(id string) (model.RunExport, error) {
	run, summary, err := s.GetRun(id)
	if err != nil {
		return model.RunExport{}, err
	}
	questions, err := s.QuestionStats(id)
	if err != nil {
		return model.RunExport{}, fmt.Errorf("question stats of %s: %w", id, err)
	}
	students, err := s.StudentStats(id)
	if err != nil {
		return model.RunExport{}, fmt.Errorf("student stats of %s: %w", id, err)
	}
	issues, err := s.GradingErrors(id)
	if err != nil {
		return model.RunExport{}, fmt.Errorf("grading errors of %s: %w", id, err)
	}
	return model.RunExport{
		Run:       run,
		Summary:   summary,
		Questions: questions,
		Students:  students,
		Issues:    issues,
	}, nil
}

// ExportAllRuns exports every archived run, most recent first.
func (s *Store) ExportAllRuns() ([]model.RunExport, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	exports := make([]model.RunExport, 0, len(runs))
	for _, r := range runs {
		exp, err := s.ExportRun(r.ID)
		if err != nil {
			return nil, err
		}
		exports = append(exports, exp)
	}
	return exports, nil
}

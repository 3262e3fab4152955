// Package store archives graded runs in SQLite so they can be listed,
// exported and browsed after the reports have been written.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/giulioleuci/multiple-choice-randomizer-latex/internal/model"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no archived run has the requested id.
var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// Every :memory: connection is a separate database.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		manifest_run_id TEXT NOT NULL,
		graded_at DATETIME NOT NULL,
		students INTEGER NOT NULL,
		mean_percentage REAL NOT NULL,
		pass_rate REAL NOT NULL,
		summary TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS student_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		student_id TEXT NOT NULL,
		variant_id INTEGER NOT NULL,
		raw_score REAL NOT NULL,
		max_score REAL NOT NULL,
		percentage REAL NOT NULL,
		z_score REAL,
		percentile REAL,
		stanine INTEGER,
		passed INTEGER NOT NULL,
		PRIMARY KEY (run_id, student_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS question_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question_key TEXT NOT NULL,
		grp TEXT NOT NULL,
		text TEXT NOT NULL,
		correct INTEGER NOT NULL,
		incorrect INTEGER NOT NULL,
		unanswered INTEGER NOT NULL,
		difficulty REAL,
		discrimination REAL,
		difficulty_rating TEXT NOT NULL,
		discrimination_rating TEXT NOT NULL,
		PRIMARY KEY (run_id, question_key),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS grading_issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		variant_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS run_metadata (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a graded run with all its statistics in one transaction.
func (s *Store) SaveRun(exp model.RunExport) error {
	summary, err := json.Marshal(exp.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	run := exp.Run
	_, err = tx.Exec(
		`INSERT INTO runs (id, manifest_run_id, graded_at, students, mean_percentage, pass_rate, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ManifestRunID, run.GradedAt.UTC(), run.Students, run.MeanPercentage, run.PassRate, string(summary),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, st := range exp.Students {
		_, err := tx.Exec(
			`INSERT INTO student_results (run_id, position, student_id, variant_id, raw_score, max_score,
			 percentage, z_score, percentile, stanine, passed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, st.StudentID, st.VariantID, st.RawScore, st.MaxScore,
			st.Percentage, nullStat(st.ZScore), nullStat(st.Percentile), nullStanine(st.Stanine), st.Passed,
		)
		if err != nil {
			return fmt.Errorf("insert student %s: %w", st.StudentID, err)
		}
	}

	for i, q := range exp.Questions {
		_, err := tx.Exec(
			`INSERT INTO question_results (run_id, position, question_key, grp, text, correct, incorrect,
			 unanswered, difficulty, discrimination, difficulty_rating, discrimination_rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, q.QuestionKey, q.Group, q.Text, q.Correct, q.Incorrect,
			q.Unanswered, nullStat(q.Difficulty), nullStat(q.Discrimination), q.DifficultyRating, q.DiscriminationRating,
		)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.QuestionKey, err)
		}
	}

	for _, is := range exp.Issues {
		_, err := tx.Exec(
			`INSERT INTO grading_issues (run_id, student_id, variant_id, message) VALUES (?, ?, ?, ?)`,
			run.ID, is.StudentID, is.VariantID, is.Message,
		)
		if err != nil {
			return fmt.Errorf("insert grading issue: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns returns all archived runs, most recent first.
func (s *Store) ListRuns() ([]model.RunInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, manifest_run_id, graded_at, students, mean_percentage, pass_rate
		 FROM runs ORDER BY graded_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.RunInfo
	for rows.Next() {
		var r model.RunInfo
		if err := rows.Scan(&r.ID, &r.ManifestRunID, &r.GradedAt, &r.Students, &r.MeanPercentage, &r.PassRate); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its cohort summary.
func (s *Store) GetRun(id string) (model.RunInfo, model.CohortSummary, error) {
	var (
		r       model.RunInfo
		summary model.CohortSummary
		raw     string
	)
	err := s.db.QueryRow(
		`SELECT id, manifest_run_id, graded_at, students, mean_percentage, pass_rate, summary
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.ManifestRunID, &r.GradedAt, &r.Students, &r.MeanPercentage, &r.PassRate, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return r, summary, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return r, summary, err
	}
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return r, summary, fmt.Errorf("decode summary of run %s: %w", id, err)
	}
	return r, summary, nil
}

// StudentStats returns the per-student statistics of a run in saved order.
func (s *Store) StudentStats(runID string) ([]model.StudentStatistics, error) {
	rows, err := s.db.Query(
		`SELECT student_id, variant_id, raw_score, max_score, percentage, z_score, percentile, stanine, passed
		 FROM student_results WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []model.StudentStatistics
	for rows.Next() {
		var (
			st      model.StudentStatistics
			z, pct  sql.NullFloat64
			stanine sql.NullInt64
		)
		if err := rows.Scan(&st.StudentID, &st.VariantID, &st.RawScore, &st.MaxScore, &st.Percentage,
			&z, &pct, &stanine, &st.Passed); err != nil {
			return nil, err
		}
		st.ZScore, st.Percentile = statFrom(z), statFrom(pct)
		if stanine.Valid {
			st.Stanine = model.Stanine(stanine.Int64)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// QuestionStats returns the per-question statistics of a run in bank order.
func (s *Store) QuestionStats(runID string) ([]model.QuestionStatistics, error) {
	rows, err := s.db.Query(
		`SELECT question_key, grp, text, correct, incorrect, unanswered, difficulty, discrimination,
		 difficulty_rating, discrimination_rating
		 FROM question_results WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []model.QuestionStatistics
	for rows.Next() {
		var (
			q          model.QuestionStatistics
			diff, disc sql.NullFloat64
		)
		if err := rows.Scan(&q.QuestionKey, &q.Group, &q.Text, &q.Correct, &q.Incorrect, &q.Unanswered,
			&diff, &disc, &q.DifficultyRating, &q.DiscriminationRating); err != nil {
			return nil, err
		}
		q.Difficulty, q.Discrimination = statFrom(diff), statFrom(disc)
		stats = append(stats, q)
	}
	return stats, rows.Err()
}

// GradingErrors returns the responses of a run that could not be graded.
func (s *Store) GradingErrors(runID string) ([]model.GradingIssue, error) {
	rows, err := s.db.Query(
		`SELECT student_id, variant_id, message FROM grading_issues WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var issues []model.GradingIssue
	for rows.Next() {
		var is model.GradingIssue
		if err := rows.Scan(&is.StudentID, &is.VariantID, &is.Message); err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

func nullStat(s model.Stat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: s.Value, Valid: s.Valid}
}

func statFrom(n sql.NullFloat64) model.Stat {
	if !n.Valid {
		return model.UndefinedStatistic
	}
	return model.Defined(n.Float64)
}

func nullStanine(s model.Stanine) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(s), Valid: s.Valid()}
}

package store

import (
	"database/sql"
	"errors"
)

// SetMetadata upserts a key-value pair attached to a run.
func (s *Store) SetMetadata(runID, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_metadata (run_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(run_id, key) DO UPDATE SET value = ?`,
		runID, key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key of a run.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(runID, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM run_metadata WHERE run_id = ? AND key = ?`, runID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetRunMetadata stores every pair of md for the run.
func (s *Store) SetRunMetadata(runID string, md map[string]string) error {
	for k, v := range md {
		if err := s.SetMetadata(runID, k, v); err != nil {
			return err
		}
	}
	return nil
}

// RunMetadata returns all metadata of a run.
func (s *Store) RunMetadata(runID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM run_metadata WHERE run_id = ? ORDER BY key`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	md := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		md[k] = v
	}
	return md, rows.Err()
}

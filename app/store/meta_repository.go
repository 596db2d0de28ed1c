package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const lastRunKey = "last_run"

func (s *Store) GetLastRun() (*time.Time, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM run_meta WHERE key = ?`, lastRunKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run time: %w", err)
	}

	t := parseTime(value)
	return &t, nil
}

func (s *Store) SetLastRun(t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO run_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		lastRunKey, formatTime(t))
	if err != nil {
		return fmt.Errorf("failed to store last run time: %w", err)
	}

	return nil
}

package store

import (
	"fmt"
	"time"
)

func (s *Store) GetCredentialStates() (map[string]*CredentialState, error) {
	rows, err := s.db.Query(`
		SELECT name, usage_count, usage_limit, monthly_reset_day,
		       usage_cooldown_until, content_cooldown_until, last_successful_check, status
		FROM credential_states`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credential states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]*CredentialState)
	for rows.Next() {
		state := &CredentialState{}
		var usageCooldown, contentCooldown, lastCheck *string
		if err := rows.Scan(&state.Name, &state.UsageCount, &state.UsageLimit,
			&state.MonthlyResetDay, &usageCooldown, &contentCooldown,
			&lastCheck, &state.Status); err != nil {
			return nil, fmt.Errorf("failed to scan credential state: %w", err)
		}

		state.UsageCooldownUntil = parseTimePtr(usageCooldown)
		state.ContentCooldownUntil = parseTimePtr(contentCooldown)
		state.LastSuccessfulCheck = parseTimePtr(lastCheck)

		states[state.Name] = state
	}

	return states, rows.Err()
}

func (s *Store) SaveCredentialState(state *CredentialState) error {
	_, err := s.db.Exec(`
		INSERT INTO credential_states (name, usage_count, usage_limit, monthly_reset_day,
			usage_cooldown_until, content_cooldown_until, last_successful_check, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			usage_count = excluded.usage_count,
			usage_limit = excluded.usage_limit,
			monthly_reset_day = excluded.monthly_reset_day,
			usage_cooldown_until = excluded.usage_cooldown_until,
			content_cooldown_until = excluded.content_cooldown_until,
			last_successful_check = excluded.last_successful_check,
			status = excluded.status`,
		state.Name, state.UsageCount, state.UsageLimit, state.MonthlyResetDay,
		formatTimePtr(state.UsageCooldownUntil), formatTimePtr(state.ContentCooldownUntil),
		formatTimePtr(state.LastSuccessfulCheck), state.Status)
	if err != nil {
		return fmt.Errorf("failed to save credential state: %w", err)
	}

	return nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(v *string) *time.Time {
	if v == nil {
		return nil
	}
	t := parseTime(*v)
	return &t
}

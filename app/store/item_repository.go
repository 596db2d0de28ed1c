package store

import (
	"fmt"
)

// Age pruning runs before every read and write of the history so callers
// always observe a bounded window.
func (s *Store) pruneItemsByAge() error {
	if s.retention.MaxAge <= 0 {
		return nil
	}

	cutoff := s.now().UTC().Add(-s.retention.MaxAge)
	_, err := s.db.Exec(`DELETE FROM delivered_items WHERE delivered_at < ?`, formatTime(cutoff))
	if err != nil {
		return fmt.Errorf("failed to prune delivered items: %w", err)
	}

	return nil
}

func (s *Store) GetRecentItems(limit int) ([]DeliveredItem, error) {
	if err := s.pruneItemsByAge(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, kind, summary, delivered_at, source_name, justification
		FROM delivered_items
		ORDER BY delivered_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivered items: %w", err)
	}
	defer rows.Close()

	var items []DeliveredItem
	for rows.Next() {
		var item DeliveredItem
		var deliveredAt string
		if err := rows.Scan(&item.ID, &item.Kind, &item.Summary, &deliveredAt,
			&item.SourceName, &item.Justification); err != nil {
			return nil, fmt.Errorf("failed to scan delivered item: %w", err)
		}
		item.Timestamp = parseTime(deliveredAt)
		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *Store) GetItemCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM delivered_items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count delivered items: %w", err)
	}
	return count, nil
}

func (s *Store) InsertItem(item DeliveredItem) error {
	if err := s.pruneItemsByAge(); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO delivered_items (id, kind, summary, delivered_at, source_name, justification)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, kind) DO UPDATE SET
			summary = excluded.summary,
			delivered_at = excluded.delivered_at,
			justification = excluded.justification`,
		item.ID, item.Kind, item.Summary, formatTime(item.Timestamp),
		item.SourceName, item.Justification)
	if err != nil {
		return fmt.Errorf("failed to insert delivered item: %w", err)
	}

	return nil
}

// EvictOldestItems removes oldest-first until at most keep items remain.
func (s *Store) EvictOldestItems(keep int) error {
	if keep < 0 {
		keep = 0
	}

	_, err := s.db.Exec(`
		DELETE FROM delivered_items
		WHERE (id, kind) NOT IN (
			SELECT id, kind FROM delivered_items
			ORDER BY delivered_at DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("failed to evict delivered items: %w", err)
	}

	return nil
}

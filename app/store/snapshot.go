package store

// Read returns the full logical state. Delivered-item history is age-pruned
// before being returned.
func (s *Store) Read() (*Snapshot, error) {
	items, err := s.GetRecentItems(0)
	if err != nil {
		return nil, err
	}

	topics, err := s.GetActiveTopics()
	if err != nil {
		return nil, err
	}

	credentials, err := s.GetCredentialStates()
	if err != nil {
		return nil, err
	}

	lastRun, err := s.GetLastRun()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		DeliveredItems:   items,
		ActiveTopics:     topics,
		CredentialStates: credentials,
		LastRun:          lastRun,
	}, nil
}

// Write replaces the full logical state with the snapshot, re-applying age
// pruning to the delivered-item history and dropping expired topics.
func (s *Store) Write(snapshot *Snapshot) error {
	if _, err := s.db.Exec(`DELETE FROM delivered_items`); err != nil {
		return err
	}
	for _, item := range snapshot.DeliveredItems {
		if err := s.InsertItem(item); err != nil {
			return err
		}
	}
	if err := s.pruneItemsByAge(); err != nil {
		return err
	}

	if err := s.ReplaceTopics(snapshot.ActiveTopics); err != nil {
		return err
	}

	for _, state := range snapshot.CredentialStates {
		if err := s.SaveCredentialState(state); err != nil {
			return err
		}
	}

	if snapshot.LastRun != nil {
		if err := s.SetLastRun(*snapshot.LastRun); err != nil {
			return err
		}
	}

	return nil
}

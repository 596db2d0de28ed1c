package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, retention Retention) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"), retention)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestItemRoundTrip(t *testing.T) {
	store := openTestStore(t, Retention{})

	item := DeliveredItem{
		ID:            "a1",
		Kind:          "article",
		Summary:       "Bridge closure downtown",
		Timestamp:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		SourceName:    "wire",
		Justification: "local impact",
	}
	if err := store.InsertItem(item); err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}

	items, err := store.GetRecentItems(0)
	if err != nil {
		t.Fatalf("Failed to read items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	got := items[0]
	if got.ID != item.ID || got.Kind != item.Kind || got.Summary != item.Summary ||
		got.SourceName != item.SourceName || got.Justification != item.Justification {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(item.Timestamp) {
		t.Errorf("Expected timestamp %v, got %v", item.Timestamp, got.Timestamp)
	}
}

func TestItemUpsert(t *testing.T) {
	store := openTestStore(t, Retention{})

	item := DeliveredItem{ID: "a1", Kind: "article", Summary: "first", Timestamp: time.Now()}
	if err := store.InsertItem(item); err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}

	item.Summary = "second"
	if err := store.InsertItem(item); err != nil {
		t.Fatalf("Failed to re-insert item: %v", err)
	}

	count, err := store.GetItemCount()
	if err != nil {
		t.Fatalf("Failed to count items: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 item after upsert, got %d", count)
	}

	items, _ := store.GetRecentItems(0)
	if items[0].Summary != "second" {
		t.Errorf("Expected updated summary, got %q", items[0].Summary)
	}
}

func TestItemAgePruning(t *testing.T) {
	store := openTestStore(t, Retention{MaxAge: 24 * time.Hour})

	now := time.Now().UTC()
	fresh := DeliveredItem{ID: "fresh", Kind: "article", Timestamp: now.Add(-time.Hour)}
	stale := DeliveredItem{ID: "stale", Kind: "article", Timestamp: now.Add(-48 * time.Hour)}

	if err := store.InsertItem(fresh); err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}
	if err := store.InsertItem(stale); err != nil {
		t.Fatalf("Failed to insert item: %v", err)
	}

	items, err := store.GetRecentItems(0)
	if err != nil {
		t.Fatalf("Failed to read items: %v", err)
	}
	if len(items) != 1 || items[0].ID != "fresh" {
		t.Errorf("Expected only the fresh item after pruning, got %d items", len(items))
	}

	// Pruning again changes nothing.
	items, _ = store.GetRecentItems(0)
	if len(items) != 1 {
		t.Errorf("Repeated pruning should be idempotent, got %d items", len(items))
	}
}

func TestEvictOldestItems(t *testing.T) {
	store := openTestStore(t, Retention{})

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"oldest", "middle", "newest"} {
		item := DeliveredItem{ID: id, Kind: "article", Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if err := store.InsertItem(item); err != nil {
			t.Fatalf("Failed to insert item: %v", err)
		}
	}

	if err := store.EvictOldestItems(2); err != nil {
		t.Fatalf("Failed to evict items: %v", err)
	}

	items, err := store.GetRecentItems(0)
	if err != nil {
		t.Fatalf("Failed to read items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items after eviction, got %d", len(items))
	}
	if items[0].ID != "newest" || items[1].ID != "middle" {
		t.Errorf("Oldest item should be gone, got %s, %s", items[0].ID, items[1].ID)
	}
}

func TestTopicRoundTrip(t *testing.T) {
	store := openTestStore(t, Retention{})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	topic := &ActiveTopic{
		TopicID:          "t1",
		Entities:         []string{"ukraine"},
		Keywords:         []string{"ceasefire", "talks"},
		StartTime:        now,
		LastUpdate:       now,
		CooldownUntil:    now.Add(48 * time.Hour),
		CoreEventsSent:   1,
		ConsequencesSent: 1,
		MaxConsequences:  3,
		Consequences: []Consequence{
			{Title: "Talks resume", Source: "wire", Timestamp: now, Score: 7.5, Category: "other"},
		},
		Original: OriginalEvent{
			Title:          "Ceasefire announced",
			Source:         "wire",
			Justification:  "major development",
			BaseImportance: 8,
		},
	}

	if err := store.UpsertTopic(topic); err != nil {
		t.Fatalf("Failed to upsert topic: %v", err)
	}

	topics, err := store.GetActiveTopics()
	if err != nil {
		t.Fatalf("Failed to read topics: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("Expected 1 topic, got %d", len(topics))
	}

	got := topics[0]
	if got.TopicID != "t1" || got.ConsequencesSent != 1 || got.MaxConsequences != 3 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if len(got.Entities) != 1 || got.Entities[0] != "ukraine" {
		t.Errorf("Unexpected entities: %v", got.Entities)
	}
	if len(got.Consequences) != 1 || got.Consequences[0].Score != 7.5 {
		t.Errorf("Unexpected consequences: %+v", got.Consequences)
	}
	if got.Original.BaseImportance != 8 {
		t.Errorf("Unexpected base importance: %v", got.Original.BaseImportance)
	}
	if !got.CooldownUntil.Equal(topic.CooldownUntil) {
		t.Errorf("Expected cooldown %v, got %v", topic.CooldownUntil, got.CooldownUntil)
	}
}

func TestReplaceTopicsDropsExpired(t *testing.T) {
	store := openTestStore(t, Retention{})

	now := time.Now().UTC()
	active := &ActiveTopic{TopicID: "active", StartTime: now, LastUpdate: now,
		CooldownUntil: now.Add(time.Hour)}
	expired := &ActiveTopic{TopicID: "expired", StartTime: now.Add(-72 * time.Hour),
		LastUpdate: now.Add(-72 * time.Hour), CooldownUntil: now.Add(-time.Hour)}

	if err := store.ReplaceTopics([]*ActiveTopic{active, expired}); err != nil {
		t.Fatalf("Failed to replace topics: %v", err)
	}

	topics, err := store.GetActiveTopics()
	if err != nil {
		t.Fatalf("Failed to read topics: %v", err)
	}
	if len(topics) != 1 || topics[0].TopicID != "active" {
		t.Errorf("Expired topic should be dropped on replace, got %d topics", len(topics))
	}
}

func TestCredentialStateRoundTrip(t *testing.T) {
	store := openTestStore(t, Retention{})

	cooldown := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	state := &CredentialState{
		Name:                 "primary",
		Secret:               "never-stored",
		UsageCount:           42,
		UsageLimit:           100,
		MonthlyResetDay:      5,
		ContentCooldownUntil: &cooldown,
		Status:               CredentialCooldown,
	}

	if err := store.SaveCredentialState(state); err != nil {
		t.Fatalf("Failed to save credential state: %v", err)
	}

	states, err := store.GetCredentialStates()
	if err != nil {
		t.Fatalf("Failed to read credential states: %v", err)
	}

	got, ok := states["primary"]
	if !ok {
		t.Fatal("Expected persisted state for primary")
	}
	if got.Secret != "" {
		t.Error("Secret must never round-trip through the store")
	}
	if got.UsageCount != 42 || got.UsageLimit != 100 || got.MonthlyResetDay != 5 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if got.Status != CredentialCooldown {
		t.Errorf("Expected cooldown status, got %s", got.Status)
	}
	if got.ContentCooldownUntil == nil || !got.ContentCooldownUntil.Equal(cooldown) {
		t.Errorf("Unexpected content cooldown: %v", got.ContentCooldownUntil)
	}
	if got.UsageCooldownUntil != nil {
		t.Errorf("Expected nil usage cooldown, got %v", got.UsageCooldownUntil)
	}
}

func TestLastRun(t *testing.T) {
	store := openTestStore(t, Retention{})

	last, err := store.GetLastRun()
	if err != nil {
		t.Fatalf("Failed to read last run: %v", err)
	}
	if last != nil {
		t.Errorf("Expected nil last run on a fresh store, got %v", last)
	}

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := store.SetLastRun(ts); err != nil {
		t.Fatalf("Failed to set last run: %v", err)
	}

	last, err = store.GetLastRun()
	if err != nil {
		t.Fatalf("Failed to read last run: %v", err)
	}
	if last == nil || !last.Equal(ts) {
		t.Errorf("Expected last run %v, got %v", ts, last)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t, Retention{})

	now := time.Now().UTC().Truncate(time.Second)
	snapshot := &Snapshot{
		DeliveredItems: []DeliveredItem{
			{ID: "a1", Kind: "article", Summary: "one", Timestamp: now},
		},
		ActiveTopics: []*ActiveTopic{
			{TopicID: "t1", StartTime: now, LastUpdate: now, CooldownUntil: now.Add(time.Hour)},
		},
		CredentialStates: map[string]*CredentialState{
			"primary": {Name: "primary", UsageCount: 1, UsageLimit: 100, Status: CredentialOK},
		},
		LastRun: &now,
	}

	if err := store.Write(snapshot); err != nil {
		t.Fatalf("Failed to write snapshot: %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Failed to read snapshot: %v", err)
	}

	if len(got.DeliveredItems) != 1 || got.DeliveredItems[0].ID != "a1" {
		t.Errorf("Unexpected delivered items: %+v", got.DeliveredItems)
	}
	if len(got.ActiveTopics) != 1 || got.ActiveTopics[0].TopicID != "t1" {
		t.Errorf("Unexpected topics: %+v", got.ActiveTopics)
	}
	if _, ok := got.CredentialStates["primary"]; !ok {
		t.Error("Expected credential state for primary")
	}
	if got.LastRun == nil || !got.LastRun.Equal(now) {
		t.Errorf("Expected last run %v, got %v", now, got.LastRun)
	}
}

package store

import "time"

// ItemRepository persists the delivered-item history used for duplicate and
// topic comparisons.
type ItemRepository interface {
	GetRecentItems(limit int) ([]DeliveredItem, error)
	GetItemCount() (int, error)
	InsertItem(item DeliveredItem) error
	EvictOldestItems(keep int) error
}

// TopicRepository persists the active topic registry.
type TopicRepository interface {
	GetActiveTopics() ([]*ActiveTopic, error)
	UpsertTopic(topic *ActiveTopic) error
	ReplaceTopics(topics []*ActiveTopic) error
}

// CredentialRepository persists credential rotation state. Secrets are never
// stored; they are re-attached from configuration at startup.
type CredentialRepository interface {
	GetCredentialStates() (map[string]*CredentialState, error)
	SaveCredentialState(state *CredentialState) error
}

// MetaRepository persists run bookkeeping.
type MetaRepository interface {
	GetLastRun() (*time.Time, error)
	SetLastRun(t time.Time) error
}

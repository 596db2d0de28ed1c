package store

import (
	"time"
)

// DeliveredItem is the minimal projection of a delivered item kept for
// duplicate and topic comparisons in later cycles.
type DeliveredItem struct {
	ID            string
	Kind          string
	Summary       string
	Timestamp     time.Time
	SourceName    string
	Justification string
}

// Consequence is one accepted follow-up recorded against an active topic.
type Consequence struct {
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	Score         float64   `json:"score"`
	Category      string    `json:"category"`
	Justification string    `json:"justification"`
}

// OriginalEvent is the snapshot of the item that opened a topic.
type OriginalEvent struct {
	Title          string  `json:"title"`
	Source         string  `json:"source"`
	Justification  string  `json:"justification"`
	BaseImportance float64 `json:"base_importance"`
}

// ActiveTopic is a tracked story cluster.
type ActiveTopic struct {
	TopicID          string
	Entities         []string
	Keywords         []string
	StartTime        time.Time
	LastUpdate       time.Time
	CooldownUntil    time.Time
	CoreEventsSent   int
	ConsequencesSent int
	MaxConsequences  int
	Consequences     []Consequence
	Original         OriginalEvent
}

// Expired reports whether the topic has left its cooling window and must be
// excluded from matching.
func (t *ActiveTopic) Expired(now time.Time) bool {
	return !now.Before(t.CooldownUntil)
}

// Credential status values.
const (
	CredentialUnchecked = "unchecked"
	CredentialOK        = "ok"
	CredentialCooldown  = "cooldown"
	CredentialError     = "error"
)

// CredentialState is the persisted state of one rotation slot. The secret is
// injected from configuration at startup and is never written to the store
// or to log output.
type CredentialState struct {
	Name                 string
	Secret               string `json:"-"`
	UsageCount           int
	UsageLimit           int
	MonthlyResetDay      int
	UsageCooldownUntil   *time.Time
	ContentCooldownUntil *time.Time
	LastSuccessfulCheck  *time.Time
	Status               string
}

// Snapshot is the full logical state of the service.
type Snapshot struct {
	DeliveredItems   []DeliveredItem
	ActiveTopics     []*ActiveTopic
	CredentialStates map[string]*CredentialState
	LastRun          *time.Time
}

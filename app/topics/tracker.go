package topics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/news-sieve/app/config"
	"github.com/lysyi3m/news-sieve/app/content"
	"github.com/lysyi3m/news-sieve/app/oracle"
	"github.com/lysyi3m/news-sieve/app/store"
)

// OutcomeKind classifies the tracker's decision for one item.
type OutcomeKind int

const (
	// OutcomeNoOpinion defers the decision to the caller: the item matched
	// no topic and is not a core candidate, so no filtering opinion exists.
	OutcomeNoOpinion OutcomeKind = iota
	// OutcomeNewTopic accepts the item as a fresh core story.
	OutcomeNewTopic
	// OutcomeConsequence accepts the item as an important follow-up to a
	// tracked story.
	OutcomeConsequence
	// OutcomeEscalation accepts the item as a new independent core event
	// that broke through an existing topic's suppression.
	OutcomeEscalation
	// OutcomeSuppress rejects the item as a redundant repeat.
	OutcomeSuppress
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNewTopic:
		return "new_topic"
	case OutcomeConsequence:
		return "consequence"
	case OutcomeEscalation:
		return "escalation"
	case OutcomeSuppress:
		return "suppress"
	default:
		return "no_opinion"
	}
}

// Accepted reports whether the item should continue through the pipeline.
func (k OutcomeKind) Accepted() bool {
	switch k {
	case OutcomeNewTopic, OutcomeConsequence, OutcomeEscalation, OutcomeNoOpinion:
		return true
	default:
		return false
	}
}

// Outcome is the tracker's decision for one item.
type Outcome struct {
	Kind          OutcomeKind
	TopicID       string
	Justification string
}

// Tracker is the cross-cycle redundancy and escalation engine operating
// over the active topic registry. It is not safe for concurrent use; the
// orchestrator serializes all calls.
type Tracker struct {
	cfg    config.TopicConfig
	oracle oracle.Client
	repo   store.TopicRepository
	topics []*store.ActiveTopic // insertion order; first match wins
	now    func() time.Time
}

const defaultBaseImportance = 7.0

func NewTracker(cfg config.TopicConfig, client oracle.Client, repo store.TopicRepository) *Tracker {
	return &Tracker{
		cfg:    cfg,
		oracle: client,
		repo:   repo,
		now:    time.Now,
	}
}

// Restore loads the persisted registry, keeping insertion (start time)
// order.
func (t *Tracker) Restore(topics []*store.ActiveTopic) {
	t.topics = append([]*store.ActiveTopic(nil), topics...)
	sort.SliceStable(t.topics, func(i, j int) bool {
		return t.topics[i].StartTime.Before(t.topics[j].StartTime)
	})
}

// Registry returns the current topic set for persistence.
func (t *Tracker) Registry() []*store.ActiveTopic {
	return t.topics
}

// Track decides whether the item is a fresh story, a suppressible repeat,
// or an escalation. coreCandidate marks items that earlier stages judged
// relevant on their own merits; items without that judgement get no
// filtering opinion when they match nothing.
func (t *Tracker) Track(ctx context.Context, item *content.Item, coreCandidate bool) Outcome {
	now := t.now()
	entities, keywords := ExtractSignature(item.Title, item.Text)

	topic := t.match(entities, keywords, now)
	if topic == nil {
		if !coreCandidate {
			return Outcome{Kind: OutcomeNoOpinion}
		}
		created := t.openTopic(ctx, item, entities, keywords, now, 0)
		return Outcome{
			Kind:          OutcomeNewTopic,
			TopicID:       created.TopicID,
			Justification: "new story, topic opened",
		}
	}

	return t.assessFollowUp(ctx, item, topic, entities, keywords, now)
}

// match scans the registry in insertion order and returns the first
// non-expired topic sharing at least one entity or at least two keywords.
func (t *Tracker) match(entities, keywords []string, now time.Time) *store.ActiveTopic {
	for _, topic := range t.topics {
		if topic.Expired(now) {
			continue
		}
		if sharedCount(topic.Entities, entities) >= 1 || sharedCount(topic.Keywords, keywords) >= 2 {
			return topic
		}
	}
	return nil
}

func (t *Tracker) assessFollowUp(ctx context.Context, item *content.Item, topic *store.ActiveTopic,
	entities, keywords []string, now time.Time) Outcome {

	// Without an oracle the matched item cannot be scored; it is presumed
	// a redundant repeat of the tracked story.
	if t.oracle == nil {
		return Outcome{
			Kind:          OutcomeSuppress,
			TopicID:       topic.TopicID,
			Justification: "matched tracked story; importance scoring unavailable",
		}
	}

	score, err := t.scoreConsequence(ctx, item, topic)
	if err != nil {
		// The item already matched a tracked story, so it is presumed
		// redundant; an unscorable follow-up is suppressed.
		slog.Warn("Consequence scoring failed, suppressing",
			"topic_id", topic.TopicID, "item_id", item.ID, "error", err)
		return Outcome{
			Kind:          OutcomeSuppress,
			TopicID:       topic.TopicID,
			Justification: "matched tracked story; importance could not be scored",
		}
	}

	weighted := score.Value * t.categoryWeight(score.Category)

	// Escalation breaks through suppression: the follow-up is treated as a
	// new independent core event.
	if weighted >= t.cfg.EscalationThreshold && weighted > topic.Original.BaseImportance {
		created := t.openTopic(ctx, item, entities, keywords, now, weighted)
		slog.Info("Topic escalation", "from_topic", topic.TopicID, "new_topic", created.TopicID,
			"score", score.Value, "weighted", weighted, "category", score.Category)
		return Outcome{
			Kind:          OutcomeEscalation,
			TopicID:       created.TopicID,
			Justification: fmt.Sprintf("escalation of tracked story (weighted score %.1f): %s", weighted, score.Justification),
		}
	}

	if topic.ConsequencesSent >= t.maxConsequences(topic) {
		return Outcome{
			Kind:          OutcomeSuppress,
			TopicID:       topic.TopicID,
			Justification: "consequence budget for tracked story exhausted",
		}
	}

	threshold := t.consequenceThreshold(topic.ConsequencesSent)
	if weighted < threshold {
		return Outcome{
			Kind:    OutcomeSuppress,
			TopicID: topic.TopicID,
			Justification: fmt.Sprintf("follow-up below threshold (%.1f < %.1f): %s",
				weighted, threshold, score.Justification),
		}
	}

	topic.ConsequencesSent++
	topic.LastUpdate = now
	topic.Entities = mergeSignature(topic.Entities, entities)
	topic.Keywords = mergeSignature(topic.Keywords, keywords)
	topic.Consequences = append(topic.Consequences, store.Consequence{
		Title:         item.Headline(),
		Source:        item.SourceName,
		Timestamp:     now,
		Score:         weighted,
		Category:      score.Category,
		Justification: score.Justification,
	})
	t.persist(topic)

	return Outcome{
		Kind:    OutcomeConsequence,
		TopicID: topic.TopicID,
		Justification: fmt.Sprintf("accepted consequence %d of tracked story (weighted score %.1f)",
			topic.ConsequencesSent, weighted),
	}
}

func (t *Tracker) scoreConsequence(ctx context.Context, item *content.Item, topic *store.ActiveTopic) (oracle.ImportanceScore, error) {
	raw, err := t.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.ConsequenceScorePrompt(topic.Original.Title, topic.Original.Justification, item.Headline()),
		Tag:    "consequence-score",
	})
	if err != nil {
		return oracle.ImportanceScore{}, err
	}
	return oracle.ParseScore(raw)
}

// openTopic creates and persists a new topic for a core event, evicting
// the least-recently-updated topic when the registry is full. A zero base
// importance triggers an oracle scoring call, falling back to a default.
func (t *Tracker) openTopic(ctx context.Context, item *content.Item,
	entities, keywords []string, now time.Time, baseImportance float64) *store.ActiveTopic {

	if baseImportance <= 0 {
		baseImportance = t.scoreBaseImportance(ctx, item)
	}

	topic := &store.ActiveTopic{
		TopicID:         uuid.NewString(),
		Entities:        entities,
		Keywords:        keywords,
		StartTime:       now,
		LastUpdate:      now,
		CooldownUntil:   now.Add(time.Duration(t.cfg.CoolingHours) * time.Hour),
		CoreEventsSent:  1,
		MaxConsequences: t.cfg.MaxConsequencesPerTopic,
		Original: store.OriginalEvent{
			Title:          item.Headline(),
			Source:         item.SourceName,
			Justification:  item.Justification,
			BaseImportance: baseImportance,
		},
	}

	t.evict(now)
	t.topics = append(t.topics, topic)
	t.persist(topic)

	slog.Info("Topic opened", "topic_id", topic.TopicID, "title", topic.Original.Title,
		"base_importance", baseImportance, "entities", len(entities), "keywords", len(keywords))

	return topic
}

func (t *Tracker) scoreBaseImportance(ctx context.Context, item *content.Item) float64 {
	if t.oracle == nil {
		return defaultBaseImportance
	}
	raw, err := t.oracle.Complete(ctx, oracle.Request{
		Prompt: oracle.BaseImportancePrompt(item.Headline()),
		Tag:    "base-importance",
	})
	if err == nil {
		if score, perr := oracle.ParseScore(raw); perr == nil {
			return score.Value
		}
	}
	return defaultBaseImportance
}

// evict drops expired topics and, if the registry is still at capacity,
// the least-recently-updated topic. Persisted registry is rewritten only
// when something was removed.
func (t *Tracker) evict(now time.Time) {
	kept := t.topics[:0]
	for _, topic := range t.topics {
		if !topic.Expired(now) {
			kept = append(kept, topic)
		}
	}
	removed := len(t.topics) != len(kept)
	t.topics = kept

	for t.cfg.MaxActiveTopics > 0 && len(t.topics) >= t.cfg.MaxActiveTopics {
		oldest := 0
		for i, topic := range t.topics {
			if topic.LastUpdate.Before(t.topics[oldest].LastUpdate) {
				oldest = i
			}
		}
		slog.Debug("Evicting topic", "topic_id", t.topics[oldest].TopicID)
		t.topics = append(t.topics[:oldest], t.topics[oldest+1:]...)
		removed = true
	}

	if removed && t.repo != nil {
		if err := t.repo.ReplaceTopics(t.topics); err != nil {
			slog.Error("Failed to persist topic registry", "error", err)
		}
	}
}

func (t *Tracker) persist(topic *store.ActiveTopic) {
	if t.repo == nil {
		return
	}
	if err := t.repo.UpsertTopic(topic); err != nil {
		slog.Error("Failed to persist topic", "topic_id", topic.TopicID, "error", err)
	}
}

func (t *Tracker) categoryWeight(category string) float64 {
	if weight, ok := t.cfg.CategoryWeights[category]; ok {
		return weight
	}
	return 1.0
}

// consequenceThreshold returns the required weighted score for the next
// consequence; the ladder escalates with each one already delivered.
func (t *Tracker) consequenceThreshold(consequencesSent int) float64 {
	thresholds := t.cfg.ImportanceThresholds
	if len(thresholds) == 0 {
		return t.cfg.EscalationThreshold
	}
	if consequencesSent >= len(thresholds) {
		return thresholds[len(thresholds)-1]
	}
	return thresholds[consequencesSent]
}

func (t *Tracker) maxConsequences(topic *store.ActiveTopic) int {
	if topic.MaxConsequences > 0 {
		return topic.MaxConsequences
	}
	return t.cfg.MaxConsequencesPerTopic
}

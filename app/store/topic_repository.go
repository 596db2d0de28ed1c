package store

import (
	"encoding/json"
	"fmt"
)

func (s *Store) GetActiveTopics() ([]*ActiveTopic, error) {
	rows, err := s.db.Query(`
		SELECT topic_id, entities, keywords, start_time, last_update, cooldown_until,
		       core_events_sent, consequences_sent, max_consequences, consequences,
		       original_title, original_source, original_justification, base_importance
		FROM active_topics
		ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active topics: %w", err)
	}
	defer rows.Close()

	var topics []*ActiveTopic
	for rows.Next() {
		topic := &ActiveTopic{}
		var entities, keywords, consequences string
		var startTime, lastUpdate, cooldownUntil string
		if err := rows.Scan(&topic.TopicID, &entities, &keywords, &startTime,
			&lastUpdate, &cooldownUntil, &topic.CoreEventsSent, &topic.ConsequencesSent,
			&topic.MaxConsequences, &consequences, &topic.Original.Title,
			&topic.Original.Source, &topic.Original.Justification,
			&topic.Original.BaseImportance); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}

		topic.StartTime = parseTime(startTime)
		topic.LastUpdate = parseTime(lastUpdate)
		topic.CooldownUntil = parseTime(cooldownUntil)

		if err := json.Unmarshal([]byte(entities), &topic.Entities); err != nil {
			return nil, fmt.Errorf("failed to decode topic entities: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &topic.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode topic keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(consequences), &topic.Consequences); err != nil {
			return nil, fmt.Errorf("failed to decode topic consequences: %w", err)
		}

		topics = append(topics, topic)
	}

	return topics, rows.Err()
}

func (s *Store) UpsertTopic(topic *ActiveTopic) error {
	entities, keywords, consequences, err := encodeTopicFields(topic)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO active_topics (topic_id, entities, keywords, start_time, last_update,
			cooldown_until, core_events_sent, consequences_sent, max_consequences,
			consequences, original_title, original_source, original_justification, base_importance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (topic_id) DO UPDATE SET
			entities = excluded.entities,
			keywords = excluded.keywords,
			last_update = excluded.last_update,
			cooldown_until = excluded.cooldown_until,
			core_events_sent = excluded.core_events_sent,
			consequences_sent = excluded.consequences_sent,
			consequences = excluded.consequences`,
		topic.TopicID, entities, keywords, formatTime(topic.StartTime),
		formatTime(topic.LastUpdate), formatTime(topic.CooldownUntil),
		topic.CoreEventsSent, topic.ConsequencesSent, topic.MaxConsequences,
		consequences, topic.Original.Title, topic.Original.Source,
		topic.Original.Justification, topic.Original.BaseImportance)
	if err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}

	return nil
}

// ReplaceTopics rewrites the whole registry, dropping topics past their
// cooldown. Used after eviction and on snapshot writes.
func (s *Store) ReplaceTopics(topics []*ActiveTopic) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM active_topics`); err != nil {
		return fmt.Errorf("failed to clear topics: %w", err)
	}

	now := s.now().UTC()
	for _, topic := range topics {
		if topic.Expired(now) {
			continue
		}

		entities, keywords, consequences, err := encodeTopicFields(topic)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO active_topics (topic_id, entities, keywords, start_time, last_update,
				cooldown_until, core_events_sent, consequences_sent, max_consequences,
				consequences, original_title, original_source, original_justification, base_importance)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			topic.TopicID, entities, keywords, formatTime(topic.StartTime),
			formatTime(topic.LastUpdate), formatTime(topic.CooldownUntil),
			topic.CoreEventsSent, topic.ConsequencesSent, topic.MaxConsequences,
			consequences, topic.Original.Title, topic.Original.Source,
			topic.Original.Justification, topic.Original.BaseImportance)
		if err != nil {
			return fmt.Errorf("failed to insert topic: %w", err)
		}
	}

	return tx.Commit()
}

func encodeTopicFields(topic *ActiveTopic) (string, string, string, error) {
	entities, err := json.Marshal(emptyIfNil(topic.Entities))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode topic entities: %w", err)
	}
	keywords, err := json.Marshal(emptyIfNil(topic.Keywords))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode topic keywords: %w", err)
	}
	consequences, err := json.Marshal(topic.Consequences)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode topic consequences: %w", err)
	}
	if topic.Consequences == nil {
		consequences = []byte("[]")
	}
	return string(entities), string(keywords), string(consequences), nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

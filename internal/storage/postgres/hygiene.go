package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcrt-io/rcrt/internal/types"
)

// TTLCandidate is a row the hygiene worker must evaluate against its
// TTL policy; raw columns only, per §4.6 ("hygiene itself never embeds
// or transforms").
type TTLCandidate struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	SchemaName string
	Tags       []string
	TTLType    types.TTLType
	TTL        *time.Time
	TTLConfig  json.RawMessage
	ReadCount  int64
	CreatedAt  time.Time
	Version    int64
}

// TTLCandidates returns every breadcrumb with a TTL policy other than
// "never", for the hygiene worker to evaluate.
func (s *Store) TTLCandidates(ctx context.Context, limit int) ([]TTLCandidate, error) {
	var out []TTLCandidate
	err := s.query(ctx, `
		SELECT id, owner_id, schema_name, tags, ttl_type, ttl, ttl_config, read_count, created_at, version
		FROM breadcrumbs WHERE ttl_type <> 'never' LIMIT $1
	`, []interface{}{limit}, func(rows pgx.Rows) error {
		for rows.Next() {
			var c TTLCandidate
			var schemaName *string
			var ttlConfig *string
			if err := rows.Scan(&c.ID, &c.OwnerID, &schemaName, &c.Tags, &c.TTLType, &c.TTL, &ttlConfig, &c.ReadCount, &c.CreatedAt, &c.Version); err != nil {
				return err
			}
			if schemaName != nil {
				c.SchemaName = *schemaName
			}
			if ttlConfig != nil {
				c.TTLConfig = json.RawMessage(*ttlConfig)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ttl candidates: %w", err)
	}
	return out, nil
}

// EnqueuePublish records a committed write's event in the outbox so a
// background repair task can retry publication if the initial
// fire-and-forget publish failed, per §4.1's "every committed row
// eventually emits at least one event" invariant.
func (s *Store) EnqueuePublish(ctx context.Context, breadcrumbID uuid.UUID, eventType types.EventType, payload json.RawMessage) error {
	_, err := s.exec(ctx, `
		INSERT INTO breadcrumb_publish_queue (breadcrumb_id, event_type, payload) VALUES ($1,$2,$3)
	`, breadcrumbID, string(eventType), string(payload))
	if err != nil {
		return fmt.Errorf("enqueue publish: %w", err)
	}
	return nil
}

// PendingPublish is one outbox row awaiting (re)delivery.
type PendingPublish struct {
	QueueID      int64
	BreadcrumbID uuid.UUID
	EventType    types.EventType
	Payload      json.RawMessage
	Attempts     int
}

// PendingPublishes returns outbox rows still needing delivery.
func (s *Store) PendingPublishes(ctx context.Context, limit int) ([]PendingPublish, error) {
	var out []PendingPublish
	err := s.query(ctx, `
		SELECT id, breadcrumb_id, event_type, payload, attempts
		FROM breadcrumb_publish_queue ORDER BY id ASC LIMIT $1
	`, []interface{}{limit}, func(rows pgx.Rows) error {
		for rows.Next() {
			var p PendingPublish
			var payload string
			if err := rows.Scan(&p.QueueID, &p.BreadcrumbID, &p.EventType, &payload, &p.Attempts); err != nil {
				return err
			}
			p.Payload = json.RawMessage(payload)
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("pending publishes: %w", err)
	}
	return out, nil
}

// AckPublish removes a delivered outbox row.
func (s *Store) AckPublish(ctx context.Context, queueID int64) error {
	_, err := s.exec(ctx, `DELETE FROM breadcrumb_publish_queue WHERE id=$1`, queueID)
	if err != nil {
		return fmt.Errorf("ack publish: %w", err)
	}
	return nil
}

// BumpPublishAttempt records a failed redelivery attempt.
func (s *Store) BumpPublishAttempt(ctx context.Context, queueID int64) error {
	_, err := s.exec(ctx, `UPDATE breadcrumb_publish_queue SET attempts = attempts + 1 WHERE id=$1`, queueID)
	if err != nil {
		return fmt.Errorf("bump publish attempt: %w", err)
	}
	return nil
}

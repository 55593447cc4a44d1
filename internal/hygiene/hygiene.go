// Package hygiene runs the background sweeps that keep the store
// honest: TTL expiry across all five policy types, idempotency-key
// expiry, and outbox redelivery for events whose initial publish
// failed. Adapted from the teacher's periodic-worker shape in
// cmd/bd's background jobs, generalized to three independent sweeps
// on one ticker.
package hygiene

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rcrt-io/rcrt/internal/eventbus"
	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

// usageConfig is the shape ttl_config takes for usage/hybrid policies.
type usageConfig struct {
	MaxReads int `json:"max_reads"`
}

// durationConfig is the shape ttl_config takes for duration/hybrid
// policies, expressed as a Go duration string ("72h").
type durationConfig struct {
	Duration string `json:"duration"`
}

type Worker struct {
	store    *postgres.Store
	bus      *eventbus.Bus
	log      *slog.Logger
	interval time.Duration
	idemTTL  time.Duration
}

func NewWorker(store *postgres.Store, bus *eventbus.Bus, log *slog.Logger, interval, idemTTL time.Duration) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if idemTTL <= 0 {
		idemTTL = 10 * time.Minute
	}
	return &Worker{store: store, bus: bus, log: log, interval: interval, idemTTL: idemTTL}
}

// Run loops until ctx is canceled, performing one full sweep per tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Worker) sweepOnce(ctx context.Context) {
	if err := w.sweepTTL(ctx); err != nil {
		w.log.Warn("ttl sweep failed", "error", err)
	}
	if n, err := w.store.SweepExpiredIdempotencyKeys(ctx, w.idemTTL); err != nil {
		w.log.Warn("idempotency sweep failed", "error", err)
	} else if n > 0 {
		w.log.Info("swept expired idempotency keys", "count", n)
	}
	if err := w.drainOutbox(ctx); err != nil {
		w.log.Warn("outbox drain failed", "error", err)
	}
}

// sweepTTL evaluates every non-"never" breadcrumb's policy and deletes
// the ones that have expired, each expiry publishing a
// breadcrumb.deleted event (queued in the outbox if that publish fails).
func (w *Worker) sweepTTL(ctx context.Context) error {
	candidates, err := w.store.TTLCandidates(ctx, 5000)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, c := range candidates {
		if !expired(c, now) {
			continue
		}
		if err := w.store.DeleteBreadcrumbFull(ctx, c.OwnerID, c.ID); err != nil {
			if err == types.ErrNotFound {
				continue
			}
			w.log.Warn("ttl delete failed", "id", c.ID, "error", err)
			continue
		}
		ev := types.Event{
			Type:       types.EventDeleted,
			ID:         c.ID.String(),
			OwnerID:    c.OwnerID.String(),
			SchemaName: c.SchemaName,
			Tags:       c.Tags,
			Version:    c.Version,
		}
		if err := w.bus.Publish(ctx, ev); err != nil {
			payload, _ := json.Marshal(ev)
			if qerr := w.store.EnqueuePublish(ctx, c.ID, types.EventDeleted, payload); qerr != nil {
				w.log.Warn("enqueue ttl delete event failed", "id", c.ID, "error", qerr)
			}
		}
	}
	return nil
}

func expired(c postgres.TTLCandidate, now time.Time) bool {
	switch c.TTLType {
	case types.TTLDatetime:
		return c.TTL != nil && !now.Before(*c.TTL)
	case types.TTLDuration:
		var cfg durationConfig
		if json.Unmarshal(c.TTLConfig, &cfg) != nil {
			return false
		}
		d, err := time.ParseDuration(cfg.Duration)
		if err != nil {
			return false
		}
		return now.Sub(c.CreatedAt) >= d
	case types.TTLUsage:
		var cfg usageConfig
		if json.Unmarshal(c.TTLConfig, &cfg) != nil {
			return false
		}
		return cfg.MaxReads > 0 && c.ReadCount >= int64(cfg.MaxReads)
	case types.TTLHybrid:
		var uc usageConfig
		var dc durationConfig
		_ = json.Unmarshal(c.TTLConfig, &uc)
		_ = json.Unmarshal(c.TTLConfig, &dc)
		usageHit := uc.MaxReads > 0 && c.ReadCount >= int64(uc.MaxReads)
		durationHit := false
		if d, err := time.ParseDuration(dc.Duration); err == nil {
			durationHit = now.Sub(c.CreatedAt) >= d
		}
		return usageHit || durationHit
	default:
		return false
	}
}

// drainOutbox retries delivery for every queued event, giving up (but
// leaving the row for the next tick) on failure.
func (w *Worker) drainOutbox(ctx context.Context) error {
	pending, err := w.store.PendingPublishes(ctx, 500)
	if err != nil {
		return err
	}
	for _, p := range pending {
		var ev types.Event
		if err := json.Unmarshal(p.Payload, &ev); err != nil {
			w.log.Warn("outbox row has invalid payload, acking to avoid poison loop", "queue_id", p.QueueID, "error", err)
			_ = w.store.AckPublish(ctx, p.QueueID)
			continue
		}
		if err := w.bus.Publish(ctx, ev); err != nil {
			_ = w.store.BumpPublishAttempt(ctx, p.QueueID)
			continue
		}
		_ = w.store.AckPublish(ctx, p.QueueID)
	}
	return nil
}

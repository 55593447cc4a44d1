// Package eventbus is the durable event bus from §4.4: every committed
// write publishes exactly one event (at least once under retry) to a
// JetStream stream, with an in-memory fallback for local/dev runs with
// no NATS_URL configured. Adapted from the teacher's
// internal/eventbus/bus.go, retargeted from Claude-Code hook events to
// breadcrumb lifecycle events.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/rcrt-io/rcrt/internal/types"
)

// Bus fans out breadcrumb events to a durable JetStream stream and, for
// local/no-NATS deployments, to an in-memory ring of recent events that
// the SSE handler's memory fallback replays from.
type Bus struct {
	mu  sync.RWMutex
	js  nats.JetStreamContext
	nc  *nats.Conn
	log *slog.Logger

	memMu   sync.RWMutex
	memSubs map[string]chan types.Event
	recent  []types.Event
}

// New connects to natsURL and ensures the durable stream exists. An
// empty natsURL is valid: the bus then runs purely in-memory, which is
// enough for local development against the memory SSE fallback.
func New(natsURL string, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Bus{log: log, memSubs: make(map[string]chan types.Event)}
	if natsURL == "" {
		return b, nil
	}
	nc, err := nats.Connect(natsURL, nats.MaxReconnects(-1), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		nc.Close()
		return nil, err
	}
	b.nc = nc
	b.js = js
	return b, nil
}

func (b *Bus) JetStreamEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.js != nil
}

func (b *Bus) JetStream() nats.JetStreamContext {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.js
}

func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

const maxRecentMemoryEvents = 2048

// Publish sends ev on the durable stream with a bounded retry budget
// (§5: "up to a bounded budget, default 5 attempts, capped at 30 s
// total"), falling back to the in-memory ring when JetStream isn't
// configured. It always also feeds the in-memory ring so the SSE
// memory-fallback path has something to replay from in a JetStream-less
// deployment.
func (b *Bus) Publish(ctx context.Context, ev types.Event) error {
	ev.PublishedAt = time.Now().UTC().UnixMilli()
	b.appendRecent(ev)
	b.broadcastMemory(ev)

	if !b.JetStreamEnabled() {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := SubjectForEvent(ev.Type)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	attempts := 0
	op := func() error {
		attempts++
		if attempts > 5 {
			return backoff.Permanent(fmt.Errorf("publish exceeded attempt budget"))
		}
		_, err := b.js.Publish(subject, data)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		b.log.Warn("event publish failed after retry budget, relying on outbox repair", "subject", subject, "id", ev.ID, "error", err)
		return err
	}
	return nil
}

func (b *Bus) appendRecent(ev types.Event) {
	b.memMu.Lock()
	defer b.memMu.Unlock()
	b.recent = append(b.recent, ev)
	if len(b.recent) > maxRecentMemoryEvents {
		b.recent = b.recent[len(b.recent)-maxRecentMemoryEvents:]
	}
}

// RecentSince returns buffered in-memory events published at or after
// sinceMs, used by the SSE memory fallback to answer Last-Event-ID
// replay requests when JetStream isn't configured.
func (b *Bus) RecentSince(sinceMs int64) []types.Event {
	b.memMu.RLock()
	defer b.memMu.RUnlock()
	out := make([]types.Event, 0, len(b.recent))
	for _, e := range b.recent {
		if e.PublishedAt >= sinceMs {
			out = append(out, e)
		}
	}
	return out
}

func (b *Bus) broadcastMemory(ev types.Event) {
	b.memMu.RLock()
	defer b.memMu.RUnlock()
	for _, ch := range b.memSubs {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop rather than block the publisher; the
			// SSE handler disconnects subscribers whose buffer fills,
			// per §4.4's back-pressure rule.
		}
	}
}

// SubscribeMemory registers a channel for live in-memory fan-out,
// returning an unsubscribe func. Used by the SSE handler's
// JetStream-less fallback path.
func (b *Bus) SubscribeMemory(id string, buffer int) (<-chan types.Event, func()) {
	ch := make(chan types.Event, buffer)
	b.memMu.Lock()
	b.memSubs[id] = ch
	b.memMu.Unlock()
	return ch, func() {
		b.memMu.Lock()
		delete(b.memSubs, id)
		b.memMu.Unlock()
		close(ch)
	}
}

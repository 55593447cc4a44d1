package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rcrt-io/rcrt/internal/types"
)

// Subscription is a live feed of breadcrumb events plus the function to
// tear it down. Events channel closes once Close is called or ctx
// (passed to SubscribeJetStream) is done.
type Subscription struct {
	Events <-chan types.Event
	Close  func()
}

// SubscribeJetStream opens an ephemeral push consumer on the durable
// stream, starting from startTime when set (the Last-Event-ID replay
// case) or from "deliver new" otherwise. Used by the SSE handler when
// JetStream is configured.
func (b *Bus) SubscribeJetStream(ctx context.Context, startTime *time.Time) (*Subscription, error) {
	js := b.JetStream()
	if js == nil {
		return nil, fmt.Errorf("jetstream not configured")
	}

	out := make(chan types.Event, 64)
	opts := []nats.SubOpt{nats.AckNone()}
	if startTime != nil {
		opts = append(opts, nats.StartTime(*startTime))
	} else {
		opts = append(opts, nats.DeliverNew())
	}

	sub, err := js.Subscribe(SubjectBreadcrumbPrefix+">", func(msg *nats.Msg) {
		var ev types.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		select {
		case out <- ev:
		default:
			// Slow consumer: drop, matching the memory-path back-pressure
			// rule; the SSE handler disconnects on its own buffer filling.
		}
	}, opts...)
	if err != nil {
		close(out)
		return nil, fmt.Errorf("subscribe jetstream: %w", err)
	}

	closeOnce := make(chan struct{})
	closeFn := func() {
		select {
		case <-closeOnce:
			return
		default:
			close(closeOnce)
		}
		_ = sub.Unsubscribe()
		close(out)
	}
	go func() {
		<-ctx.Done()
		closeFn()
	}()
	return &Subscription{Events: out, Close: closeFn}, nil
}

// SubscribeMemoryFeed wraps SubscribeMemory with the Subscription shape
// used by the SSE handler's JetStream-less fallback.
func (b *Bus) SubscribeMemoryFeed(id string, buffer int) *Subscription {
	ch, unsub := b.SubscribeMemory(id, buffer)
	return &Subscription{Events: ch, Close: unsub}
}

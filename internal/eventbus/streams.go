package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/rcrt-io/rcrt/internal/types"
)

// StreamBreadcrumbs is the durable JetStream stream carrying every
// breadcrumb.{created,updated,deleted} event, per §4.4. Adapted
// directly from the teacher's EnsureStreams (internal/eventbus/streams.go):
// one named, file-backed stream per subject family, idempotently
// created at startup.
const (
	StreamBreadcrumbs      = "BREADCRUMB_EVENTS"
	SubjectBreadcrumbPrefix = "breadcrumb."
)

// SubjectForEvent builds the JetStream subject for an event, shaped
// breadcrumb.{created,updated,deleted} as required by §4.4.
func SubjectForEvent(t types.EventType) string {
	return string(t)
}

// EnsureStreams idempotently creates the durable stream this module
// needs, the same AddStream-if-StreamInfo-errors pattern the teacher
// uses for its hook-event streams.
func EnsureStreams(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamBreadcrumbs)
	if err == nil {
		return nil
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamBreadcrumbs,
		Subjects: []string{SubjectBreadcrumbPrefix + ">"},
		Storage:  nats.FileStorage,
		MaxMsgs:  1_000_000,
		MaxBytes: 1 << 30,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", StreamBreadcrumbs, err)
	}
	return nil
}

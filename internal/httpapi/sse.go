package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/eventbus"
	"github.com/rcrt-io/rcrt/internal/types"
)

// handleSSE implements GET /events/stream from §4.4: query-string
// bearer auth (EventSource can't set headers), a selector set
// evaluated server-side before any frame is written, a 15s heartbeat,
// and Last-Event-ID replay from the durable stream. Adapted from the
// teacher's internal/rpc/http_sse.go: Bearer/query-token auth check,
// http.Flusher requirement, since/filter query parsing, and the
// JetStream-first-then-memory-fallback streaming shape.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			token = h[7:]
		}
	}
	if token == "" {
		writeError(w, types.ErrAuthRequired)
		return
	}
	claims, err := s.verifier.Parse(token)
	if err != nil {
		writeError(w, types.ErrAuthRequired)
		return
	}
	if !claims.HasRole(types.RoleSubscriber) {
		writeError(w, types.ErrForbidden)
		return
	}

	var sel types.Selector
	if raw := r.URL.Query().Get("selectors"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			writeError(w, types.NewKindError(types.KindValidation, "invalid selectors", err))
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, types.NewKindError(types.KindInternal, "streaming unsupported", nil))
		return
	}

	var since *time.Time
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			t := time.UnixMilli(ms)
			since = &t
		}
	}

	var sub *eventbus.Subscription
	var replay []types.Event
	if s.bus.JetStreamEnabled() {
		sub, err = s.bus.SubscribeJetStream(r.Context(), since)
		if err != nil {
			writeError(w, types.NewKindError(types.KindDependencyUnavailable, "event bus unavailable", err))
			return
		}
	} else {
		subID := claims.AgentID.String() + "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		sub = s.bus.SubscribeMemoryFeed(subID, s.sseBuffer)
		if since != nil {
			replay = s.bus.RecentSince(since.UnixMilli())
		}
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range replay {
		if !eventMatches(sel, claims, ev) {
			continue
		}
		if !writeSSEEvent(w, ev) {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(s.sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if !eventMatches(sel, claims, ev) {
				continue
			}
			if !writeSSEEvent(w, ev) {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, "event: ping\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// eventMatches enforces tenant isolation (ev.OwnerID must equal the
// connection's owner) on top of the selector evaluation from §4.4,
// implementing the testable property "S receives E iff E matches
// S.selectors and E.owner_id = S.owner_id".
func eventMatches(sel types.Selector, claims *auth.Claims, ev types.Event) bool {
	if ev.OwnerID != claims.OwnerID.String() {
		return false
	}
	return eventbus.Matches(sel, ev)
}

// writeSSEEvent writes ev as an id:/event:/data: frame and reports
// whether the write succeeded; a write failure means the client
// disconnected, and the caller tears the subscription down.
func writeSSEEvent(w http.ResponseWriter, ev types.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return true
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.PublishedAt, string(ev.Type), data)
	return err == nil
}

package eventbus

import (
	"encoding/json"

	"github.com/rcrt-io/rcrt/internal/types"
)

// Matches reports whether ev satisfies sel, per §4.4: the server
// evaluates selectors against every event before emitting, so a slow
// or narrow subscriber never sees frames it didn't ask for.
//
// ContextMatch clauses address the record's context, which the event
// payload itself does not carry (events are the lightweight
// lifecycle-notification shape from §4.4, not the record body); a
// selector with context_match clauses is evaluated against an empty
// object, so such clauses only match "ne" against a concrete value and
// never "eq"/"in". Subscribers that need context-aware filtering
// should follow up with a GET of the record once notified.
func Matches(sel types.Selector, ev types.Event) bool {
	if sel.SchemaName != "" && sel.SchemaName != ev.SchemaName {
		return false
	}
	tagSet := make(map[string]struct{}, len(ev.Tags))
	for _, t := range ev.Tags {
		tagSet[t] = struct{}{}
	}
	for _, t := range sel.AllTags {
		if _, ok := tagSet[t]; !ok {
			return false
		}
	}
	if len(sel.AnyTags) > 0 {
		found := false
		for _, t := range sel.AnyTags {
			if _, ok := tagSet[t]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range sel.NoneTags {
		if _, ok := tagSet[t]; ok {
			return false
		}
	}
	for _, cm := range sel.ContextMatch {
		if !matchContextClause(cm) {
			return false
		}
	}
	return true
}

// matchContextClause evaluates one context_match clause against the
// empty object standing in for the event's (absent) context, per the
// Matches doc comment above.
func matchContextClause(cm types.ContextMatch) bool {
	switch cm.Op {
	case types.OpNe:
		var want interface{}
		if len(cm.Value) == 0 || json.Unmarshal(cm.Value, &want) != nil {
			return true
		}
		return want != nil
	default:
		return false
	}
}

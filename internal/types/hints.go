package types

import "encoding/json"

// Mode selects how transform output combines with raw_context.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeMerge   Mode = "merge"
)

// RuleType is the kind of projection a TransformRule performs.
type RuleType string

const (
	RuleTemplate RuleType = "template"
	RuleExtract  RuleType = "extract"
	RuleLiteral  RuleType = "literal"
	RuleFormat   RuleType = "format"
)

// TransformRule is one entry of LlmHints.Transform. Only the field
// matching Type is meaningful; the others are zero.
type TransformRule struct {
	Type     RuleType        `json:"type"`
	Template string          `json:"template,omitempty"`
	Value    string          `json:"value,omitempty"`  // JSONPath, for "extract"
	Literal  json.RawMessage `json:"literal,omitempty"`
	Format   string          `json:"format,omitempty"`
}

// LlmHints is the projection specification attached to a breadcrumb, or
// resolved from its schema's cached default.
type LlmHints struct {
	Transform map[string]TransformRule `json:"transform,omitempty"`
	Include   []string                 `json:"include,omitempty"`
	Exclude   []string                 `json:"exclude,omitempty"`
	Mode      Mode                     `json:"mode,omitempty"`
}

// EffectiveMode returns Mode defaulted to "merge" per the spec.
func (h *LlmHints) EffectiveMode() Mode {
	if h == nil || h.Mode == "" {
		return ModeMerge
	}
	return h.Mode
}

// ParseLlmHints decodes raw JSON into an LlmHints value. Absent/empty
// input yields (nil, nil): "no hints", not an error.
func ParseLlmHints(raw json.RawMessage) (*LlmHints, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var h LlmHints
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Selector is an SSE subscriber's server-side filter.
type Selector struct {
	SchemaName   string         `json:"schema_name,omitempty"`
	AllTags      []string       `json:"all_tags,omitempty"`
	AnyTags      []string       `json:"any_tags,omitempty"`
	NoneTags     []string       `json:"none_tags,omitempty"`
	ContextMatch []ContextMatch `json:"context_match,omitempty"`
}

// ContextMatchOp is the comparison operator in a ContextMatch clause.
type ContextMatchOp string

const (
	OpEq ContextMatchOp = "eq"
	OpIn ContextMatchOp = "in"
	OpNe ContextMatchOp = "ne"
)

// ContextMatch is one clause of a selector's context_match list.
type ContextMatch struct {
	Path  string          `json:"path"`
	Op    ContextMatchOp  `json:"op"`
	Value json.RawMessage `json:"value"`
}

// EventType names a breadcrumb lifecycle event delivered on the event bus.
type EventType string

const (
	EventCreated EventType = "breadcrumb.created"
	EventUpdated EventType = "breadcrumb.updated"
	EventDeleted EventType = "breadcrumb.deleted"
)

// Event is the payload published for every committed write, and the
// frame shape forwarded to SSE subscribers.
type Event struct {
	Type           EventType `json:"type"`
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	SchemaName     string    `json:"schema_name,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Version        int64     `json:"version"`
	TriggerEventID string    `json:"trigger_event_id,omitempty"`
	PublishedAt    int64     `json:"published_at_ms,omitempty"`
}

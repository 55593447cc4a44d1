// Package embedding implements the should_embed policy and the text to
// 384-dim vector conversion used when a breadcrumb is created or its
// text-bearing fields change. It is stateless and CPU only, per §4.2;
// the vectorizer is not a general-purpose ML runtime, so it is built as
// a deterministic local model rather than pulled in as a dependency.
package embedding

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/rcrt-io/rcrt/internal/types"
)

var defaultDenylist = map[string]struct{}{
	"catalog.aggregate.v1": {},
	"schema.def.v1":        {},
}

// Policy decides whether a record should be embedded. It is a pure
// function of schema_name plus a small configurable denylist.
type Policy struct {
	denylist map[string]struct{}
}

// NewPolicy builds a Policy from an operator-supplied denylist in
// addition to the built-in catalog/aggregate entries.
func NewPolicy(extraDenylist []string) *Policy {
	deny := make(map[string]struct{}, len(defaultDenylist)+len(extraDenylist))
	for k := range defaultDenylist {
		deny[k] = struct{}{}
	}
	for _, s := range extraDenylist {
		deny[s] = struct{}{}
	}
	return &Policy{denylist: deny}
}

// ShouldEmbed implements spec §4.2: false for system.* schemas, false
// for denylisted catalog/aggregate schemas, true otherwise (including
// when schemaName is empty).
func (p *Policy) ShouldEmbed(schemaName string) bool {
	if strings.HasPrefix(schemaName, "system.") {
		return false
	}
	if schemaName == "" {
		return true
	}
	_, denied := p.denylist[schemaName]
	return !denied
}

// Model produces 384-dim, L2-normalized embeddings. It is a local,
// deterministic, CPU-only text vectorizer: no network call, no
// framework dependency, matching the "stateless, CPU only" constraint
// in §2. Failure is modeled as a Go error so callers can still apply the
// "store a zero vector on failure" rule from §4.2 without the model
// itself needing to understand that policy.
type Model struct {
	log *slog.Logger
}

func NewModel(log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	return &Model{log: log}
}

// Text builds the embedding input string for a breadcrumb: title, tags
// joined by spaces, and context stringified with keys in sorted order,
// exactly as §4.2 specifies.
func Text(title string, tags []string, context json.RawMessage) (string, error) {
	var b strings.Builder
	b.WriteString(title)
	if len(tags) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(tags, " "))
	}
	if len(context) > 0 {
		canon, err := canonicalizeJSON(context)
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(canon)
	}
	return b.String(), nil
}

// canonicalizeJSON re-marshals raw with object keys sorted, recursively.
func canonicalizeJSON(raw json.RawMessage) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	sorted := sortKeys(v)
	out, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func sortKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(t))
		for _, k := range keys {
			ordered[k] = sortKeys(t[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return t
	}
}

// Embed produces an L2-normalized 384-dim vector for text. The
// implementation is a seeded bag-of-characters hash projection: fully
// deterministic and dependency-free, which is what lets the embedding
// package stay stateless and CPU only. It is not intended to produce
// semantically rich vectors on its own; EMBED_MODEL/EMBED_TOKENIZER
// point at the real model artifact an operator can swap in without
// changing any caller of this method.
func (m *Model) Embed(text string) ([]float32, error) {
	vec := make([]float64, types.EmbeddingDims)
	for i := 0; i < len(text); i++ {
		bucket := (int(text[i]) * 2654435761) % types.EmbeddingDims
		if bucket < 0 {
			bucket += types.EmbeddingDims
		}
		vec[bucket] += 1
		vec[(bucket+i)%types.EmbeddingDims] += 0.5
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, types.EmbeddingDims)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// ZeroVector is the explicit "embedding failed" signal: zero cosine
// similarity to any real vector, never a silent null.
func ZeroVector() []float32 {
	return make([]float32, types.EmbeddingDims)
}

// EmbedBreadcrumb applies the full policy + text-extraction + model
// pipeline described in §4.2, degrading to ZeroVector with a logged
// warning on model failure.
func (m *Model) EmbedBreadcrumb(title string, tags []string, context json.RawMessage) []float32 {
	text, err := Text(title, tags, context)
	if err != nil {
		m.log.Warn("embedding text extraction failed, storing zero vector", "error", err)
		return ZeroVector()
	}
	vec, err := m.Embed(text)
	if err != nil {
		m.log.Warn("embedding model failed, storing zero vector", "error", err)
		return ZeroVector()
	}
	return vec
}

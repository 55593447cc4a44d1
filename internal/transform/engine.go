// Package transform implements the llm_hints projection engine: pure,
// no I/O, no time calls, no randomness, reentrant across goroutines,
// with a compile-once-per-process template/path cache, per §4.3.
package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rcrt-io/rcrt/internal/types"
)

// Engine is shared by every request in the process; its registries are
// guarded by an RWMutex so readers never block each other once the
// working set of templates has warmed up, the same shape as
// eventbus.Bus's handler registry.
type Engine struct {
	mu        sync.RWMutex
	templates map[string][]node
	formats   map[string][]formatPart
}

func NewEngine() *Engine {
	return &Engine{
		templates: make(map[string][]node),
		formats:   make(map[string][]formatPart),
	}
}

func (e *Engine) compiled(src string) ([]node, error) {
	e.mu.RLock()
	nodes, ok := e.templates[src]
	e.mu.RUnlock()
	if ok {
		return nodes, nil
	}
	nodes, err := compileTemplate(src)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.templates[src] = nodes
	e.mu.Unlock()
	return nodes, nil
}

func (e *Engine) compiledFormat(src string) ([]formatPart, error) {
	e.mu.RLock()
	parts, ok := e.formats[src]
	e.mu.RUnlock()
	if ok {
		return parts, nil
	}
	parts = compileFormat(src)
	e.mu.Lock()
	e.formats[src] = parts
	e.mu.Unlock()
	return parts, nil
}

// Resolve implements the three-step hint resolution order from §4.3:
// inline hints win, then the schema default, then nil ("unchanged").
func Resolve(inline, schemaDefault *types.LlmHints) *types.LlmHints {
	if inline != nil {
		return inline
	}
	return schemaDefault
}

// Project applies hints to rawContext and returns the projected JSON.
// A nil hints value returns rawContext unchanged, per §4.3 step 3.
func (e *Engine) Project(rawContext json.RawMessage, hints *types.LlmHints) (json.RawMessage, error) {
	if hints == nil {
		if len(rawContext) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return rawContext, nil
	}

	var data map[string]interface{}
	if len(rawContext) > 0 {
		if err := json.Unmarshal(rawContext, &data); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	// exclude runs before transform so templates never see excluded
	// fields, per §4.3.
	working := deepCopyMap(data)
	for _, path := range hints.Exclude {
		deletePath(working, parsePath(path))
	}

	transformed, err := e.applyTransforms(working, hints.Transform)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	switch hints.EffectiveMode() {
	case types.ModeReplace:
		out = map[string]interface{}{}
		for k, v := range transformed {
			out[k] = v
		}
	default: // merge
		out = working
		for k, v := range transformed {
			out[k] = v
		}
	}

	if len(hints.Include) > 0 {
		whitelisted := map[string]interface{}{}
		for _, path := range hints.Include {
			segs := parsePath(path)
			if val, ok := getPath(out, segs); ok {
				setPath(whitelisted, segs, val)
			} else if val, ok := getPath(working, segs); ok {
				setPath(whitelisted, segs, val)
			}
		}
		out = whitelisted
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode projected context: %w", err)
	}
	return encoded, nil
}

func (e *Engine) applyTransforms(data map[string]interface{}, rules map[string]types.TransformRule) (map[string]interface{}, error) {
	if len(rules) == 0 {
		return map[string]interface{}{}, nil
	}
	out := make(map[string]interface{}, len(rules))
	for field, rule := range rules {
		val, err := e.applyRule(data, rule)
		if err != nil {
			return nil, fmt.Errorf("transform field %q: %w", field, err)
		}
		out[field] = val
	}
	return out, nil
}

func (e *Engine) applyRule(data map[string]interface{}, rule types.TransformRule) (interface{}, error) {
	switch rule.Type {
	case types.RuleTemplate:
		nodes, err := e.compiled(rule.Template)
		if err != nil {
			return nil, err
		}
		return renderNodes(nodes, data), nil
	case types.RuleExtract:
		val, err := jsonpath.Get(rule.Value, data)
		if err != nil {
			// Missing path resolves to empty, matching the template
			// engine's "missing prefix is empty" rule rather than a
			// hard failure, since extract targets are often optional.
			return nil, nil
		}
		return val, nil
	case types.RuleLiteral:
		if len(rule.Literal) == 0 {
			return nil, nil
		}
		var v interface{}
		if err := json.Unmarshal(rule.Literal, &v); err != nil {
			return nil, fmt.Errorf("literal: %w", err)
		}
		return v, nil
	case types.RuleFormat:
		parts, err := e.compiledFormat(rule.Format)
		if err != nil {
			return nil, err
		}
		return renderFormat(parts, data), nil
	default:
		return nil, fmt.Errorf("unknown transform rule type %q", rule.Type)
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

// validMetadataKeyRe mirrors beads's internal/storage/metadata.go key
// validation: llm_hints and context object keys at the top level must
// look like identifiers, not arbitrary strings, so templates and
// JSONPath expressions can address them unambiguously.
var validMetadataKeyRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidateFieldKey reports whether key is a legal transform output field
// name or include/exclude path root.
func ValidateFieldKey(key string) bool {
	return validMetadataKeyRe.MatchString(key)
}

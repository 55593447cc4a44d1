package transform

import (
	"fmt"
	"strings"
)

// node is one piece of a compiled template: literal text, a scalar
// variable reference, or a block (#each/#if) with its own nested nodes.
type node struct {
	text string

	isVar bool
	path  string

	isEach bool
	isIf   bool
	body   []node
}

// compileTemplate parses the Handlebars-like subset described in §4.3:
// {{a.b}} scalar access, {{#each x}}...{{/each}} loops, {{#if x}}...{{/if}}
// conditionals. Anything else between {{ }} is treated as a bare
// variable path.
func compileTemplate(src string) ([]node, error) {
	toks := tokenize(src)
	nodes, rest, err := parseNodes(toks, "")
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("unexpected trailing tag %q", rest[0].tag)
	}
	return nodes, nil
}

type token struct {
	isTag bool
	text  string
	tag   string
}

func tokenize(src string) []token {
	var toks []token
	for {
		start := strings.Index(src, "{{")
		if start < 0 {
			if src != "" {
				toks = append(toks, token{text: src})
			}
			return toks
		}
		if start > 0 {
			toks = append(toks, token{text: src[:start]})
		}
		end := strings.Index(src[start:], "}}")
		if end < 0 {
			toks = append(toks, token{text: src[start:]})
			return toks
		}
		tag := strings.TrimSpace(src[start+2 : start+end])
		toks = append(toks, token{isTag: true, tag: tag})
		src = src[start+end+2:]
	}
}

// parseNodes consumes toks until it hits a closing tag matching close
// (e.g. "/each"), or runs out of input when close is "". It returns the
// parsed nodes and whatever tokens remain unconsumed.
func parseNodes(toks []token, close string) ([]node, []token, error) {
	var out []node
	for len(toks) > 0 {
		t := toks[0]
		if !t.isTag {
			out = append(out, node{text: t.text})
			toks = toks[1:]
			continue
		}
		if close != "" && t.tag == close {
			return out, toks[1:], nil
		}
		switch {
		case strings.HasPrefix(t.tag, "#each "):
			path := strings.TrimSpace(strings.TrimPrefix(t.tag, "#each "))
			body, rest, err := parseNodes(toks[1:], "/each")
			if err != nil {
				return nil, nil, err
			}
			out = append(out, node{isEach: true, path: path, body: body})
			toks = rest
		case strings.HasPrefix(t.tag, "#if "):
			path := strings.TrimSpace(strings.TrimPrefix(t.tag, "#if "))
			body, rest, err := parseNodes(toks[1:], "/if")
			if err != nil {
				return nil, nil, err
			}
			out = append(out, node{isIf: true, path: path, body: body})
			toks = rest
		default:
			out = append(out, node{isVar: true, path: t.tag})
			toks = toks[1:]
		}
	}
	if close != "" {
		return nil, nil, fmt.Errorf("unterminated block, expected %q", close)
	}
	return out, nil, nil
}

// renderNodes executes a compiled template against data. Missing values
// render as "", per §4.3.
func renderNodes(nodes []node, data interface{}) string {
	var b strings.Builder
	for _, n := range nodes {
		switch {
		case n.isEach:
			val, ok := getPath(data, parsePath(n.path))
			if !ok {
				continue
			}
			arr, ok := val.([]interface{})
			if !ok {
				continue
			}
			for _, item := range arr {
				b.WriteString(renderNodes(n.body, item))
			}
		case n.isIf:
			val, _ := getPath(data, parsePath(n.path))
			if truthy(val) {
				b.WriteString(renderNodes(n.body, data))
			}
		case n.isVar:
			if n.path == "." {
				b.WriteString(scalarString(data))
				continue
			}
			val, ok := getPath(data, parsePath(n.path))
			if !ok {
				continue
			}
			b.WriteString(scalarString(val))
		default:
			b.WriteString(n.text)
		}
	}
	return b.String()
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

package transform

import "strings"

// formatPart is one piece of a compiled "format" rule: literal text or
// a {field} substitution.
type formatPart struct {
	text    string
	isField bool
}

// compileFormat parses the "{a}: {b}" shorthand described in §4.3 as
// straight-line substitution: each {field} may be a name or a dotted
// path, resolved the same way as template variables; no blocks.
func compileFormat(src string) []formatPart {
	var parts []formatPart
	for {
		start := strings.IndexByte(src, '{')
		if start < 0 {
			if src != "" {
				parts = append(parts, formatPart{text: src})
			}
			return parts
		}
		if start > 0 {
			parts = append(parts, formatPart{text: src[:start]})
		}
		end := strings.IndexByte(src[start:], '}')
		if end < 0 {
			parts = append(parts, formatPart{text: src[start:]})
			return parts
		}
		field := src[start+1 : start+end]
		parts = append(parts, formatPart{text: field, isField: true})
		src = src[start+end+1:]
	}
}

func renderFormat(parts []formatPart, data map[string]interface{}) string {
	var b strings.Builder
	for _, p := range parts {
		if !p.isField {
			b.WriteString(p.text)
			continue
		}
		val, ok := getPath(data, parsePath(p.text))
		if !ok {
			continue
		}
		b.WriteString(scalarString(val))
	}
	return b.String()
}

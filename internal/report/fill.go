// Package report renders analysis output as markdown: profile reports from
// templates, word-budget summaries, prompt documents and platform prompts.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// NotAvailable is substituted for declared placeholders that have no value.
const NotAvailable = "N/A"

var ErrFormat = errors.New("template format error")

type FormatError struct {
	Placeholder string
	Offset      int
	Reason      string
}

func (e *FormatError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("template: %s {%s} at offset %d", e.Reason, e.Placeholder, e.Offset)
	}
	return fmt.Sprintf("template: %s at offset %d", e.Reason, e.Offset)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Fill substitutes {name} placeholders. "{{" and "}}" produce literal braces.
// A placeholder listed in declared but missing from vars renders as N/A; one
// that is neither declared nor present in vars is a *FormatError.
func Fill(tmpl string, vars map[string]string, declared []string) (string, error) {
	known := make(map[string]struct{}, len(declared))
	for _, d := range declared {
		known[d] = struct{}{}
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); {
		switch c := tmpl[i]; c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", &FormatError{Offset: i, Reason: "unclosed placeholder"}
			}
			name := tmpl[i+1 : i+1+end]
			if name == "" || strings.ContainsAny(name, "{ \n\t") {
				return "", &FormatError{Placeholder: name, Offset: i, Reason: "invalid placeholder"}
			}
			if v, ok := vars[name]; ok {
				b.WriteString(v)
			} else if _, ok := known[name]; ok {
				b.WriteString(NotAvailable)
			} else {
				return "", &FormatError{Placeholder: name, Offset: i, Reason: "no value for"}
			}
			i += end + 2
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", &FormatError{Offset: i, Reason: "single '}'"}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// Placeholders lists the placeholder names a template references, in order
// of first appearance. Malformed templates return what was found so far.
func Placeholders(tmpl string) []string {
	var out []string
	seen := map[string]bool{}
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i+1:], '}')
		if end < 0 {
			break
		}
		name := tmpl[i+1 : i+1+end]
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		i += end + 1
	}
	return out
}

// Package analysis turns free-form model output into a structured analysis
// record. Parse never fails: text without a usable JSON object produces a
// degraded record that says so in its uncertain elements.
package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	KeyLayout          = "layout_analysis"
	KeyVisualDesign    = "visual_design"
	KeyComponents      = "components_identified"
	KeyInteraction     = "interaction_patterns"
	KeyTechnical       = "technical_specifications"
	KeyAccessibility   = "accessibility_notes"
	KeyPrompt          = "implementation_prompt"
	KeyConfidence      = "confidence_score"
	KeyUncertain       = "uncertain_elements"
	KeyCodeSuggestions = "code_suggestions"
)

// RequiredKeys are present in every Result.
var RequiredKeys = []string{
	KeyLayout,
	KeyVisualDesign,
	KeyComponents,
	KeyInteraction,
	KeyTechnical,
	KeyAccessibility,
	KeyPrompt,
	KeyConfidence,
	KeyUncertain,
}

const (
	DefaultConfidence  = 0.5
	FallbackConfidence = 0.7

	fallbackExcerpt = 300
	parseFailedFlag = "JSON parsing failed - text response provided"
)

type Result struct {
	Fields map[string]any
	// Fallback is set when the text held no parseable JSON object.
	Fallback bool
}

func Parse(text string) Result {
	if obj, ok := extractObject(text); ok {
		fillDefaults(obj)
		return Result{Fields: obj}
	}
	return fallback(text)
}

func extractObject(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func fillDefaults(obj map[string]any) {
	defaults := map[string]any{
		KeyLayout:        "",
		KeyVisualDesign:  "",
		KeyComponents:    []any{},
		KeyInteraction:   "",
		KeyTechnical:     "",
		KeyAccessibility: []any{},
		KeyPrompt:        "",
		KeyConfidence:    DefaultConfidence,
		KeyUncertain:     []any{},
	}
	for k, v := range defaults {
		if _, ok := obj[k]; !ok {
			obj[k] = v
		}
	}
}

func fallback(text string) Result {
	layout := text
	if runes := []rune(text); len(runes) > fallbackExcerpt {
		layout = string(runes[:fallbackExcerpt]) + "..."
	}
	return Result{
		Fallback: true,
		Fields: map[string]any{
			KeyLayout:        layout,
			KeyVisualDesign:  "Analysis completed - see full response",
			KeyComponents:    []any{},
			KeyInteraction:   "Standard UI interactions detected",
			KeyTechnical:     "CSS and responsive design needed",
			KeyAccessibility: []any{"Review for WCAG compliance"},
			KeyPrompt:        text,
			KeyConfidence:    FallbackConfidence,
			KeyUncertain:     []any{parseFailedFlag},
		},
	}
}

// Failure is the record used when the model call itself failed.
func Failure(err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Fallback: true,
		Fields: map[string]any{
			KeyLayout:        "Analysis failed: " + msg,
			KeyVisualDesign:  "Unable to analyze",
			KeyComponents:    []any{},
			KeyInteraction:   "Unable to analyze",
			KeyTechnical:     "Unable to analyze",
			KeyAccessibility: []any{"Manual review required"},
			KeyPrompt:        fmt.Sprintf("Analysis failed due to: %s. Please analyze manually.", msg),
			KeyConfidence:    0.0,
			KeyUncertain:     []any{"API Error: " + msg},
		},
	}
}

// String renders a field as text. Objects and lists the model returned where
// prose was expected are re-encoded as compact JSON.
func (r Result) String(key string) string {
	switch v := r.Fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	case bool:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// Float returns a numeric field, accepting numbers encoded as strings.
// NaN and infinities yield def.
func (r Result) Float(key string, def float64) float64 {
	var f float64
	switch v := r.Fields[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return def
		}
		f = n
	case string:
		if _, err := fmt.Sscan(strings.TrimSpace(v), &f); err != nil {
			return def
		}
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Strings returns a list of strings. A single string becomes a one-element
// list; non-string list entries are rendered with String semantics.
func (r Result) Strings(key string) []string {
	switch v := r.Fields[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s := Result{Fields: map[string]any{"v": item}}.String("v")
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (r Result) List(key string) []any {
	if v, ok := r.Fields[key].([]any); ok {
		return v
	}
	return nil
}

func (r Result) Map(key string) map[string]any {
	if v, ok := r.Fields[key].(map[string]any); ok {
		return v
	}
	return nil
}

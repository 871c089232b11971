package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"vibe-mind/internal/analysis"
	"vibe-mind/internal/handoff"
	"vibe-mind/internal/profile"
)

const defaultSummary = "Analysis completed successfully."

// DefaultHandoffTemplate renders a handoff when the profile has no
// handoff_template of its own. Its placeholders are the HandoffVars keys.
const DefaultHandoffTemplate = `# {designer_profile} Analysis Report

## Design Analysis Summary
{layout}

## Components
{components}

## Implementation Prompt
{implementation_prompt}

## Technical Specifications
{technical_specs}

## Vibe Coding Suggestions
{vibe_suggestions}

## Summary
{summary}
`

type StepResult struct {
	Key      string `json:"key"`
	Question string `json:"question"`
	Result   string `json:"result"`
}

// Steps is the outcome of a step-based profile analysis.
type Steps struct {
	ImageURL   string       `json:"image_url"`
	CustomText string       `json:"custom_text,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	Results    []StepResult `json:"analysis_results"`
	Error      string       `json:"error,omitempty"`
}

func (s Steps) lookup(key string) (string, bool) {
	for _, r := range s.Results {
		if r.Key == key {
			return r.Result, true
		}
	}
	return "", false
}

// ProfileReport fills the profile's report template. Mapped analysis keys
// without a result render as N/A.
func ProfileReport(p profile.Profile, s Steps) (string, error) {
	if s.Error != "" {
		return "# Analysis Failed\n\nError: " + s.Error, nil
	}

	summary := p.SummaryText
	if summary == "" {
		summary = defaultSummary
	}
	vars := map[string]string{
		"image_url":    s.ImageURL,
		"timestamp":    s.Timestamp.Format(time.RFC3339),
		"profile_name": p.Name,
		"summary":      summary,
		"results":      stepsMarkdown(s.Results),
	}

	declared := make([]string, 0, len(p.TemplateMapping))
	for key, placeholder := range p.TemplateMapping {
		declared = append(declared, placeholder)
		if v, ok := s.lookup(key); ok {
			vars[placeholder] = v
		}
	}

	tmpl := p.ReportTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = profile.DefaultReportTemplate
	}
	return Fill(tmpl, vars, declared)
}

func stepsMarkdown(results []StepResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %d. %s\n%s", i+1, r.Question, r.Result)
	}
	return b.String()
}

// HandoffVars exposes handoff fields as template variables.
func HandoffVars(h handoff.Handoff) map[string]string {
	primary, secondary := h.Colors()

	var comps strings.Builder
	for _, c := range h.Components {
		fmt.Fprintf(&comps, "- %s: %s\n", c.Type, c.Description)
	}
	var colors strings.Builder
	for _, c := range h.DominantColors {
		fmt.Fprintf(&colors, "- %s (%s, %.0f%%)\n", c.Hex, c.Name, c.Confidence*100)
	}

	specs := fmt.Sprintf("- Primary color: %s\n- Secondary color: %s", primary, secondary)
	if typ := describe(h.Typography); typ != "" {
		specs += "\n- Typography: " + typ
	}

	return map[string]string{
		"id":                    h.ID,
		"image_url":             h.ImageURL,
		"timestamp":             h.Timestamp,
		"designer_profile":      h.DesignerProfile,
		"profile_name":          h.DesignerProfile,
		"platform_target":       h.PlatformTarget,
		"layout":                h.Layout.Structure,
		"analysis_summary":      h.Layout.Structure,
		"components":            orNA(strings.TrimRight(comps.String(), "\n")),
		"colors":                orNA(strings.TrimRight(colors.String(), "\n")),
		"primary_color":         primary,
		"secondary_color":       secondary,
		"typography":            orNA(describe(h.Typography)),
		"technical_specs":       specs,
		"implementation_prompt": orNA(h.PromptForPlatform),
		"accessibility_notes":   orNA(bullets(h.AccessibilityNotes)),
		"vibe_suggestions":      orNA(bullets(h.CodeSuggestions)),
		"confidence":            fmt.Sprintf("%.1f%%", h.ConfidenceScore*100),
		"uncertain_flags":       orNA(bullets(h.UncertainFlags)),
		"summary":               defaultSummary,
	}
}

// HandoffReport renders a handoff with the profile's handoff template, or
// DefaultHandoffTemplate when it has none.
func HandoffReport(p profile.Profile, h handoff.Handoff) (string, error) {
	tmpl := p.HandoffTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultHandoffTemplate
	}
	vars := HandoffVars(h)
	if p.SummaryText != "" {
		vars["summary"] = p.SummaryText
	}
	return Fill(tmpl, vars, nil)
}

// PromptMarkdown renders an analysis as a ready-to-paste prompt document for
// the named platform.
func PromptMarkdown(a analysis.Result, platformName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Implementation Prompt\n\n", platformName)
	fmt.Fprintf(&b, "## Analysis Summary\n%s\n\n", textOr(a, analysis.KeyLayout, "Layout analysis not available"))
	fmt.Fprintf(&b, "## Visual Design\n%s\n\n", textOr(a, analysis.KeyVisualDesign, "Visual design analysis not available"))

	b.WriteString("## Components Identified\n")
	if list, ok := a.Fields[analysis.KeyComponents].([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				fmt.Fprintf(&b, "- %s: %s\n", fieldOr(m, "type", "Component"), fieldOr(m, "description", "No description"))
			} else {
				fmt.Fprintf(&b, "- %v\n", item)
			}
		}
	} else {
		fmt.Fprintf(&b, "%s\n", a.String(analysis.KeyComponents))
	}

	fmt.Fprintf(&b, "\n## Technical Specifications\n%s\n\n", textOr(a, analysis.KeyTechnical, "Technical specs not available"))
	fmt.Fprintf(&b, "## Implementation Prompt for %s\n%s\n\n", platformName, textOr(a, analysis.KeyPrompt, "Implementation prompt not available"))

	b.WriteString("## Accessibility Notes\n")
	for _, note := range a.Strings(analysis.KeyAccessibility) {
		fmt.Fprintf(&b, "- %s\n", note)
	}

	fmt.Fprintf(&b, "\n## Analysis Confidence: %.1f%%\n", a.Float(analysis.KeyConfidence, analysis.DefaultConfidence)*100)

	if uncertain := a.Strings(analysis.KeyUncertain); len(uncertain) > 0 {
		b.WriteString("\n## Uncertain Elements:\n")
		for _, u := range uncertain {
			fmt.Fprintf(&b, "- %s\n", u)
		}
	}
	return b.String()
}

func textOr(a analysis.Result, key, def string) string {
	if s := a.String(key); strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

func fieldOr(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case nil:
		return def
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// describe renders a typography map as "key: value" pairs in key order, or
// its description alone when that is all it holds.
func describe(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	if d, ok := m["description"].(string); ok && len(m) == 1 {
		return d
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if s, ok := v.(string); ok {
			parts = append(parts, k+": "+s)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		parts = append(parts, k+": "+string(data))
	}
	return strings.Join(parts, "; ")
}

func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "- " + strings.Join(items, "\n- ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

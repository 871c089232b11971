// Package handoff assembles the design handoff record that is passed from
// image analysis to a code-generation tool.
package handoff

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"vibe-mind/internal/analysis"
	"vibe-mind/internal/palette"
	"vibe-mind/internal/profile"
)

const (
	fallbackPrimary   = "#000000"
	fallbackSecondary = "#666666"
	paletteSize       = 5

	defaultComponentConfidence = 0.5
)

type Component struct {
	Type        string         `json:"type"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Properties  map[string]any `json:"properties"`
	Confidence  float64        `json:"confidence"`
}

type Layout struct {
	Structure          string         `json:"structure"`
	GridSystem         *string        `json:"grid_system"`
	Spacing            map[string]any `json:"spacing"`
	ResponsiveBehavior *string        `json:"responsive_behavior"`
}

type Handoff struct {
	ID                 string          `json:"id"`
	Timestamp          string          `json:"timestamp"`
	ImageURL           string          `json:"image_url"`
	DesignerProfile    string          `json:"designer_profile"`
	PlatformTarget     string          `json:"platform_target"`
	DominantColors     []palette.Color `json:"dominant_colors"`
	Typography         map[string]any  `json:"typography"`
	Layout             Layout          `json:"layout"`
	Components         []Component     `json:"components"`
	StyleTokens        map[string]any  `json:"style_tokens"`
	ResponsiveSpecs    map[string]any  `json:"responsive_specs"`
	AccessibilityNotes []string        `json:"accessibility_notes"`
	PromptForPlatform  string          `json:"prompt_for_platform"`
	CodeSuggestions    []string        `json:"code_suggestions"`
	ConfidenceScore    float64         `json:"confidence_score"`
	UncertainFlags     []string        `json:"uncertain_flags"`
}

type Input struct {
	Analysis    analysis.Result
	Colors      []palette.Color
	Profile     profile.Profile
	PlatformKey string
	ImageRef    string
	Now         time.Time
}

func Assemble(in Input) Handoff {
	a := in.Analysis
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	colors := in.Colors
	if colors == nil {
		colors = []palette.Color{}
	}

	structure := a.String(analysis.KeyLayout)
	if _, ok := a.Fields[analysis.KeyLayout]; !ok {
		structure = "Unknown layout"
	}

	typography := typographyOf(a)
	uncertain := nonNil(a.Strings(analysis.KeyUncertain))
	if a.Fallback && len(uncertain) == 0 {
		uncertain = []string{"JSON parsing failed - text response provided"}
	}

	return Handoff{
		ID:              uuid.NewString(),
		Timestamp:       now.Format(time.RFC3339),
		ImageURL:        in.ImageRef,
		DesignerProfile: in.Profile.Name,
		PlatformTarget:  in.PlatformKey,
		DominantColors:  colors,
		Typography:      typography,
		Layout: Layout{
			Structure: structure,
			Spacing:   map[string]any{},
		},
		Components:         components(a.List(analysis.KeyComponents)),
		StyleTokens:        styleTokens(colors, typography),
		ResponsiveSpecs:    map[string]any{},
		AccessibilityNotes: nonNil(a.Strings(analysis.KeyAccessibility)),
		PromptForPlatform:  a.String(analysis.KeyPrompt),
		CodeSuggestions:    nonNil(a.Strings(analysis.KeyCodeSuggestions)),
		ConfidenceScore:    clamp01(a.Float(analysis.KeyConfidence, analysis.DefaultConfidence)),
		UncertainFlags:     uncertain,
	}
}

// typographyOf keeps an object-shaped visual_design as is and wraps prose
// under "description".
func typographyOf(a analysis.Result) map[string]any {
	if m := a.Map(analysis.KeyVisualDesign); m != nil {
		return m
	}
	if s := a.String(analysis.KeyVisualDesign); s != "" {
		return map[string]any{"description": s}
	}
	return map[string]any{}
}

func components(raw []any) []Component {
	out := make([]Component, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := Component{
			Type:        stringOr(m["type"], "unknown"),
			Location:    stringOr(m["location"], "unknown"),
			Description: stringOr(m["description"], ""),
			Properties:  map[string]any{},
			Confidence:  defaultComponentConfidence,
		}
		if props, ok := m["properties"].(map[string]any); ok {
			c.Properties = props
		}
		if f, ok := m["confidence"].(float64); ok && !math.IsNaN(f) {
			c.Confidence = clamp01(f)
		}
		out = append(out, c)
	}
	return out
}

func styleTokens(colors []palette.Color, typography map[string]any) map[string]any {
	primary, secondary := fallbackPrimary, fallbackSecondary
	if len(colors) > 0 {
		primary = colors[0].Hex
	}
	if len(colors) > 1 {
		secondary = colors[1].Hex
	}
	hexes := make([]string, 0, paletteSize)
	for i, c := range colors {
		if i == paletteSize {
			break
		}
		hexes = append(hexes, c.Hex)
	}

	return map[string]any{
		"colors": map[string]any{
			"primary":   primary,
			"secondary": secondary,
			"palette":   hexes,
		},
		"typography": typography,
		"spacing":    map[string]any{},
		"borders":    map[string]any{},
		"shadows":    map[string]any{},
	}
}

// Colors returns the primary and secondary style token colors.
func (h Handoff) Colors() (primary, secondary string) {
	primary, secondary = fallbackPrimary, fallbackSecondary
	colors, _ := h.StyleTokens["colors"].(map[string]any)
	if s, ok := colors["primary"].(string); ok {
		primary = s
	}
	if s, ok := colors["secondary"].(string); ok {
		secondary = s
	}
	return primary, secondary
}

// Validate reports quality problems that warrant a manual review. An empty
// result means none were found.
func Validate(h Handoff) []string {
	var warnings []string
	if strings.TrimSpace(h.PromptForPlatform) == "" {
		warnings = append(warnings, "Missing implementation prompt")
	}
	if h.ConfidenceScore < 0.3 {
		warnings = append(warnings, "Low confidence score - manual review recommended")
	}
	if len(h.DominantColors) == 0 {
		warnings = append(warnings, "No colors extracted")
	}
	if len(h.UncertainFlags) > 3 {
		warnings = append(warnings, "Too many uncertain elements")
	}
	return warnings
}

func stringOr(v any, def string) string {
	switch s := v.(type) {
	case nil:
		return def
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"vibe-mind/internal/analysis"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
)

const maxPromptKeywords = 10

// BuildPrompt renders the analysis instruction for one profile and platform.
// The platform name falls back to platformKey when the config has none.
func BuildPrompt(p profile.Profile, cfg platform.Config, platformKey string, projectContext map[string]any) string {
	name := cfg.PlatformName
	if name == "" {
		name = platformKey
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this UI/UX design image as a %s for %s platform.\n\n", p.Name, name)

	if len(projectContext) > 0 {
		if data, err := json.MarshalIndent(projectContext, "", "  "); err == nil {
			fmt.Fprintf(&b, "Project Context: %s\n\n", data)
		}
	}

	fmt.Fprintf(&b, "Platform-Specific Focus: %s\n", cfg.Strategy.Approach)
	fmt.Fprintf(&b, "Key Terms to Use: %s\n\n", strings.Join(cfg.Keywords(maxPromptKeywords), ", "))

	b.WriteString("Please provide a comprehensive analysis covering:\n\n")
	b.WriteString("1. **Layout Structure**: Describe the overall layout, grid system, component hierarchy\n")
	b.WriteString("2. **Visual Design**: Colors, typography, spacing, visual hierarchy\n")
	b.WriteString("3. **Components**: Identify UI components and their properties\n")
	b.WriteString("4. **Interactions**: User flows and interactive elements\n")
	b.WriteString("5. **Technical Specs**: CSS/styling requirements, responsive behavior\n")
	b.WriteString("6. **Accessibility**: A11y considerations and improvements\n")
	fmt.Fprintf(&b, "7. **Platform Implementation Prompt**: Detailed prompt optimized for %s using their specific terminology and best practices\n\n", name)

	b.WriteString("Format your response as a structured JSON with these keys:\n")
	for _, key := range analysis.RequiredKeys {
		switch key {
		case analysis.KeyConfidence:
			b.WriteString("- confidence_score (0-1)\n")
		case analysis.KeyUncertain:
			b.WriteString("- uncertain_elements (array of strings)\n")
		default:
			fmt.Fprintf(&b, "- %s\n", key)
		}
	}

	b.WriteString("\nBe specific and actionable. Focus on details that developers need for accurate implementation.\n")
	fmt.Fprintf(&b, "For the implementation_prompt, use %s-specific terminology and follow their recommended patterns.", name)
	return b.String()
}

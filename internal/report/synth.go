package report

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"vibe-mind/internal/analysis"
	"vibe-mind/internal/palette"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/registry"
)

// Synthesizer wraps a platform scenario prompt in the boilerplate each
// code-generation tool expects.
type Synthesizer struct {
	platforms *platform.Registry
	logger    *slog.Logger
}

type SynthesizerOptions struct {
	Platforms *platform.Registry
	Logger    *slog.Logger
}

func NewSynthesizer(opts SynthesizerOptions) *Synthesizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Synthesizer{platforms: opts.Platforms, logger: logger}
}

// Platform renders the prompt for platformKey. An unknown scenario falls back
// to the platform's first scenario; an unknown platform is an error.
func (s *Synthesizer) Platform(platformKey, scenario string, a analysis.Result, colors []palette.Color) (string, error) {
	if s.platforms == nil {
		return "", fmt.Errorf("platform %q: %w", platformKey, registry.ErrNotFound)
	}
	cfg, err := s.platforms.Get(platformKey)
	if err != nil {
		return "", err
	}

	used, sc, ok := cfg.Scenario(scenario)
	if !ok {
		s.logger.Warn("scenario not found, using default",
			"platform", platformKey,
			"scenario", scenario,
			"used", used,
		)
	}
	return Synthesize(platformKey, cfg, sc, a, colors), nil
}

// Synthesize is the registry-free form of Synthesizer.Platform.
func Synthesize(platformKey string, cfg platform.Config, sc platform.Scenario, a analysis.Result, colors []palette.Color) string {
	base := sc.Prompt
	if base == "" {
		base = cfg.BaseTemplate()
	}

	switch platformKey {
	case "v0":
		return v0Prompt(base, a)
	case "lovable":
		return lovablePrompt(base, sc)
	case "magic-patterns", "magic-pattern":
		return magicPatternsPrompt(base, colors)
	default:
		return a.String(analysis.KeyPrompt)
	}
}

func v0Prompt(base string, a analysis.Result) string {
	var comps []string
	for _, item := range a.List(analysis.KeyComponents) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		comps = append(comps, fmt.Sprintf("- %s: %s", fieldOr(m, "type", "Component"), fieldOr(m, "description", "")))
	}
	if len(comps) == 0 {
		comps = []string{"- Auto-detect components based on the design"}
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nComponent specifications:\n")
	b.WriteString(strings.Join(comps, "\n"))
	b.WriteString(`

Styling requirements:
- Use shadcn/ui component library
- Tailwind CSS for styling
- Support responsive layout
- Implement hover and interaction states

Tech stack:
- React + TypeScript
- Next.js framework
- shadcn/ui + Radix UI
- Tailwind CSS

Responsive design:
- Mobile-first
- Tablet and desktop adaptations
- Sensible breakpoint setup`)
	return b.String()
}

func lovablePrompt(base string, sc platform.Scenario) string {
	roles := "users"
	if len(sc.UserRoles) > 0 {
		roles = strings.Join(sc.UserRoles, ", ")
	}
	features := []string{"basic features"}
	if len(sc.CoreFeatures) > 0 {
		features = sc.CoreFeatures
	}

	var b strings.Builder
	b.WriteString(base)
	fmt.Fprintf(&b, "\n\nUser roles:\n- Primary users: %s\n- Permission levels: basic, power, admin\n", roles)
	b.WriteString(`
Detailed user flow:
1. User login/registration
2. Browse main interface
3. Perform core actions
4. Review results/feedback
5. Follow-up actions

Core feature modules:
`)
	b.WriteString(bullets(features))
	b.WriteString(`

System integrations:
- Authentication system
- Data storage solution
- Real-time communication (if needed)
- Third-party integrations

Business logic:
- Data validation rules
- User permission control
- Workflow automation
- Notification mechanism

Success metrics:
- User activation rate
- Feature usage frequency
- User satisfaction
- Business conversion rate`)
	return b.String()
}

func magicPatternsPrompt(base string, colors []palette.Color) string {
	var specs []string
	for i, c := range colors {
		if i == 5 {
			break
		}
		specs = append(specs, fmt.Sprintf("- Color %d: %s (%s)", i+1, c.Hex, c.Name))
	}
	system := "- Primary: #3B82F6\n- Secondary: #64748B"
	if len(specs) > 0 {
		system = strings.Join(specs, "\n")
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nDesign Tokens:\n\nColor system:\n")
	b.WriteString(system)
	b.WriteString(`

Typography:
- Primary font: Inter, system-ui, sans-serif
- Headings: 24px-32px, font-weight: 700
- Body: 16px, font-weight: 400
- Small: 14px, font-weight: 400
- Line height: 1.5 (body), 1.25 (headings)

Spacing system:
- Base unit: 8px
- Component padding: 16px
- Component spacing: 24px
- Section spacing: 48px
- Page margin: 32px

Border radius system:
- Small: 4px (buttons, badges)
- Medium: 8px (cards, inputs)
- Large: 12px (panels, modals)

Shadow levels:
- Subtle: 0 1px 3px rgba(0,0,0,0.1)
- Normal: 0 4px 6px rgba(0,0,0,0.1)
- Prominent: 0 10px 15px rgba(0,0,0,0.1)

CSS implementation guidelines:
- Use CSS custom properties
- BEM naming
- Mobile-first responsive
- Support dark mode

Responsive breakpoints:
- Mobile: 320px - 767px
- Tablet: 768px - 1023px
- Desktop: 1024px - 1439px
- Wide: 1440px+

Component states:
- Default, hover, active
- Disabled, loading, error
- Focus (keyboard navigation)`)
	return b.String()
}

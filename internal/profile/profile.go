package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vibe-mind/internal/registry"
)

var ErrInvalid = errors.New("invalid profile")

var defaultPlatformTargets = []string{"v0", "magic-pattern", "lovable"}

// DefaultReportTemplate is used by profiles that do not define their own.
// {results} expands to every analysis step with its answer.
const DefaultReportTemplate = `# {profile_name} Analysis Report

**Image:** {image_url}
**Generated:** {timestamp}

## Results
{results}

## Summary
{summary}
`

type Profile struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	AnalysisSteps   []string          `json:"analysis_steps"`
	PlatformTargets []string          `json:"platform_targets,omitempty"`
	Specializations []string          `json:"specializations,omitempty"`
	OutputFormat    string            `json:"output_format,omitempty"`
	ReportTemplate  string            `json:"report_template,omitempty"`
	TemplateMapping map[string]string `json:"template_mapping,omitempty"`
	SummaryText     string            `json:"summary_text,omitempty"`
	HandoffTemplate string            `json:"handoff_template,omitempty"`

	// Extra holds fields this version does not know about.
	Extra map[string]any `json:"-"`
}

type plainProfile Profile

func (p *Profile) UnmarshalJSON(data []byte) error {
	var base plainProfile
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	extra, err := registry.SplitExtra(data, base)
	if err != nil {
		return err
	}
	*p = Profile(base)
	p.Extra = extra
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainProfile(p))
	if err != nil {
		return nil, err
	}
	return registry.MergeExtra(data, p.Extra)
}

func (p Profile) withDefaults() Profile {
	if len(p.PlatformTargets) == 0 {
		p.PlatformTargets = append([]string(nil), defaultPlatformTargets...)
	}
	if p.OutputFormat == "" {
		p.OutputFormat = "structured_json"
	}
	if strings.TrimSpace(p.ReportTemplate) == "" {
		p.ReportTemplate = DefaultReportTemplate
	}
	return p
}

func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	case len(p.AnalysisSteps) == 0:
		return fmt.Errorf("%w: analysis_steps must not be empty", ErrInvalid)
	}
	for i, step := range p.AnalysisSteps {
		if strings.TrimSpace(step) == "" {
			return fmt.Errorf("%w: analysis step %d is empty", ErrInvalid, i+1)
		}
	}
	return nil
}

// SystemPrompt is the persona instruction sent with every model call.
func (p Profile) SystemPrompt() string {
	targets := p.PlatformTargets
	if len(targets) == 0 {
		targets = defaultPlatformTargets
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s specializing in analyzing UI/UX designs for vibe coding platforms.\n\n", p.Name)
	fmt.Fprintf(&b, "Your role: %s\n\n", p.Description)
	fmt.Fprintf(&b, "Platform targets: %s\n\n", strings.Join(targets, ", "))
	if len(p.Specializations) > 0 {
		fmt.Fprintf(&b, "Specializations: %s\n\n", strings.Join(p.Specializations, ", "))
	}
	b.WriteString("You analyze images to extract:\n")
	b.WriteString("1. Layout structure and component hierarchy\n")
	b.WriteString("2. Visual design system (colors, typography, spacing)\n")
	b.WriteString("3. Interactive elements and user flows\n")
	b.WriteString("4. Technical specifications for implementation\n")
	b.WriteString("5. Accessibility considerations\n\n")
	b.WriteString("Always provide structured, actionable analysis that developers can use immediately for implementation.\n")
	b.WriteString("Focus on generating precise, implementable prompts for vibe coding tools.")
	return b.String()
}

// Decode parses a profile file, applies defaults and validates it.
func Decode(data []byte, ext string) (Profile, error) {
	data, err := registry.Normalize(data, ext)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p.withDefaults(), nil
}

type Registry = registry.Registry[Profile]

func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return registry.New(registry.Options[Profile]{
		Dir:    dir,
		Kind:   "profile",
		Decode: Decode,
		Logger: logger,
	})
}

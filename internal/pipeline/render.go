package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"vibe-mind/internal/report"
)

type Mode string

const (
	ModeJSON     Mode = "json"
	ModePrompt   Mode = "prompt"
	ModeReport   Mode = "report"
	ModePlatform Mode = "platform"
)

var Modes = []Mode{ModeJSON, ModePrompt, ModeReport, ModePlatform}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeJSON, nil
	}
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown output mode %q", s)
}

type RenderOptions struct {
	// Scenario selects the platform preset in ModePlatform.
	Scenario string
	// MaxWords summarizes ModeReport output when positive.
	MaxWords int
}

// Render formats an analysis result. ModeJSON is the indented handoff;
// ModePrompt the ready-to-paste prompt document; ModeReport the profile's
// handoff template; ModePlatform the platform-specific prompt.
func (p *Pipeline) Render(res Result, mode Mode, opts RenderOptions) (string, error) {
	switch mode {
	case ModeJSON, "":
		data, err := json.MarshalIndent(res.Handoff, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal handoff: %w", err)
		}
		return string(data), nil
	case ModePrompt:
		name := res.Platform.PlatformName
		if name == "" {
			name = res.PlatformKey
		}
		return report.PromptMarkdown(res.Analysis, name), nil
	case ModeReport:
		md, err := report.HandoffReport(res.Profile, res.Handoff)
		if err != nil {
			return "", err
		}
		if opts.MaxWords > 0 {
			md = report.Summarize(md, opts.MaxWords)
		}
		return md, nil
	case ModePlatform:
		return p.synth.Platform(res.PlatformKey, opts.Scenario, res.Analysis, res.Handoff.DominantColors)
	default:
		return "", fmt.Errorf("unknown output mode %q", mode)
	}
}

package handlers

import (
	"strings"

	"vibe-mind/internal/pipeline"
)

// captionIntent is what a photo caption asks for. Hashtags override the
// chat's selection for that one photo: "#prompt", "#lovable",
// "#scenario=b_feed". The remaining text becomes project context.
type captionIntent struct {
	Mode     pipeline.Mode
	Platform string
	Scenario string
	Message  string
}

func parseCaption(caption string, isPlatform func(string) bool) captionIntent {
	var (
		intent captionIntent
		rest   []string
	)
	for _, word := range strings.Fields(caption) {
		if !strings.HasPrefix(word, "#") || len(word) == 1 {
			rest = append(rest, word)
			continue
		}
		tag := strings.ToLower(strings.TrimRight(word[1:], ".,;:!?"))

		if name, ok := strings.CutPrefix(tag, "scenario="); ok && name != "" {
			intent.Scenario = name
			continue
		}
		if mode, err := pipeline.ParseMode(tag); err == nil {
			intent.Mode = mode
			continue
		}
		if isPlatform != nil && isPlatform(tag) {
			intent.Platform = tag
			continue
		}
		rest = append(rest, word)
	}
	intent.Message = strings.Join(rest, " ")
	return intent
}

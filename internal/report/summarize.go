package report

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxWords = 300
	sectionWordCap  = 50
)

var (
	headerMarks = regexp.MustCompile(`#+\s*`)
	boldMarks   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicMarks = regexp.MustCompile(`\*(.*?)\*`)
	codeMarks   = regexp.MustCompile("`(.*?)`")
	blankLines  = regexp.MustCompile(`\n\s*\n`)
)

// WordCount counts the words of md once markdown markers are stripped.
func WordCount(md string) int {
	return len(strings.Fields(plainText(md)))
}

func plainText(md string) string {
	s := headerMarks.ReplaceAllString(md, "")
	s = boldMarks.ReplaceAllString(s, "$1")
	s = italicMarks.ReplaceAllString(s, "$1")
	s = codeMarks.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "---", "")
	return blankLines.ReplaceAllString(s, "\n")
}

// Summarize shortens md to at most maxWords words as counted by WordCount.
// Documents already within budget are returned unchanged. Otherwise the
// title block is kept and every "## " section body is capped at 50 words;
// if that is still too long the whole text is cut to maxWords words.
// Summarize(Summarize(md, n), n) == Summarize(md, n).
func Summarize(md string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if WordCount(md) <= maxWords {
		return md
	}

	title, sections := splitSections(md)
	if len(sections) > 0 {
		parts := make([]string, 0, len(sections)+1)
		if t := strings.TrimSpace(title); t != "" {
			parts = append(parts, t)
		}
		for _, s := range sections {
			body := s.body
			if words := strings.Fields(body); len(words) > sectionWordCap {
				body = strings.Join(words[:sectionWordCap], " ") + "..."
			}
			parts = append(parts, "## "+s.title+"\n"+body)
		}
		out := strings.Join(parts, "\n\n")
		if WordCount(out) <= maxWords {
			return out
		}
		md = out
	}

	words := strings.Fields(md)
	return strings.Join(words[:min(maxWords, len(words))], " ") + "..."
}

type section struct {
	title string
	body  string
}

func splitSections(md string) (string, []section) {
	var (
		title    strings.Builder
		sections []section
		body     []string
	)
	flush := func() {
		if len(sections) > 0 {
			sections[len(sections)-1].body = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}

	for _, line := range strings.Split(md, "\n") {
		if rest, ok := strings.CutPrefix(line, "## "); ok {
			flush()
			sections = append(sections, section{title: strings.TrimSpace(rest)})
			continue
		}
		if len(sections) == 0 {
			title.WriteString(line)
			title.WriteByte('\n')
			continue
		}
		body = append(body, line)
	}
	flush()
	return title.String(), sections
}

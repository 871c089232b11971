package analysis

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireAllKeys(t *testing.T, r Result) {
	t.Helper()
	for _, k := range RequiredKeys {
		_, ok := r.Fields[k]
		require.Truef(t, ok, "missing key %s", k)
	}
}

func TestParse_AlwaysHasRequiredKeys(t *testing.T) {
	inputs := []string{
		"",
		"I see a dashboard with charts.",
		"{ not json }",
		"}{",
		`{"layout_analysis":"A login form"}`,
		"prefix ```json\n{\"confidence_score\":0.4}\n``` suffix",
		"null",
		"{}",
	}
	for _, in := range inputs {
		r := Parse(in)
		requireAllKeys(t, r)
	}
}

func TestParse_JSONObject(t *testing.T) {
	text := `{"layout_analysis":"A login form","confidence_score":0.9,"components_identified":[{"type":"button","description":"Submit"}]}`
	r := Parse(text)

	assert.False(t, r.Fallback)
	assert.Equal(t, "A login form", r.String(KeyLayout))
	assert.Equal(t, 0.9, r.Float(KeyConfidence, -1))
	require.Len(t, r.List(KeyComponents), 1)
	assert.Empty(t, r.Strings(KeyUncertain))
}

func TestParse_EmbeddedInProse(t *testing.T) {
	text := "Here you go:\n```json\n{\"implementation_prompt\":\"Build it\",\"extra\":{\"a\":1}}\n```\nThanks!"
	r := Parse(text)

	assert.False(t, r.Fallback)
	assert.Equal(t, "Build it", r.String(KeyPrompt))
	assert.Equal(t, DefaultConfidence, r.Float(KeyConfidence, -1))
	assert.Equal(t, `{"a":1}`, r.String("extra"))
}

func TestParse_PlainTextFallback(t *testing.T) {
	text := "I see a dashboard with charts."
	r := Parse(text)

	assert.True(t, r.Fallback)
	assert.Equal(t, text, r.String(KeyPrompt))
	assert.Equal(t, text, r.String(KeyLayout))
	assert.Equal(t, FallbackConfidence, r.Float(KeyConfidence, -1))
	assert.Equal(t, []string{"JSON parsing failed - text response provided"}, r.Strings(KeyUncertain))
}

func TestParse_FallbackTruncatesLayout(t *testing.T) {
	text := strings.Repeat("é", 400)
	r := Parse(text)

	layout := r.String(KeyLayout)
	assert.Equal(t, 303, len([]rune(layout)))
	assert.True(t, strings.HasSuffix(layout, "..."))
	assert.Equal(t, text, r.String(KeyPrompt))
}

func TestFailure(t *testing.T) {
	r := Failure(errors.New("status 500"))
	requireAllKeys(t, r)

	assert.True(t, r.Fallback)
	assert.Equal(t, 0.0, r.Float(KeyConfidence, -1))
	assert.Equal(t, []string{"API Error: status 500"}, r.Strings(KeyUncertain))
	assert.Equal(t, "Analysis failed: status 500", r.String(KeyLayout))
}

func TestAccessors(t *testing.T) {
	r := Result{Fields: map[string]any{
		"num":   "0.25",
		"bad":   "high",
		"one":   "Use alt text",
		"mixed": []any{"a", 2.0, map[string]any{"k": "v"}, ""},
		"obj":   map[string]any{"font": "Inter"},
	}}

	assert.Equal(t, 0.25, r.Float("num", 0))
	assert.Equal(t, 0.5, r.Float("bad", 0.5))
	assert.Equal(t, 0.5, r.Float("missing", 0.5))
	assert.Equal(t, []string{"Use alt text"}, r.Strings("one"))
	assert.Equal(t, []string{"a", "2", `{"k":"v"}`}, r.Strings("mixed"))
	assert.Equal(t, map[string]any{"font": "Inter"}, r.Map("obj"))
	assert.Nil(t, r.Map("one"))
	assert.Nil(t, r.List("obj"))
}

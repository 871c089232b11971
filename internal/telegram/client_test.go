package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 4096))

	text := strings.Repeat("line of text\n", 10)
	parts := SplitMessage(text, 30)
	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 30)
		assert.True(t, strings.HasSuffix(p, "\n"), "part %q should end at a line break", p)
	}

	runes := strings.Repeat("é", 10)
	parts = SplitMessage(runes, 5)
	assert.Equal(t, runes, strings.Join(parts, ""))
	for _, p := range parts {
		assert.Equal(t, "éé", p)
	}
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "abc", TruncateBytes("abc", 10))
	assert.Equal(t, "ab", TruncateBytes("abc", 2))
	assert.Equal(t, "é", TruncateBytes("éé", 3))
}

func TestDetectMime(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.Equal(t, "image/webp", detectMime("image/webp; charset=binary", png))
	assert.Equal(t, "image/png", detectMime("application/octet-stream", png))
	assert.Equal(t, "image/png", detectMime("", png))
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"vibe-mind/internal/handoff"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC)
}

func sampleHandoff(id string) handoff.Handoff {
	return handoff.Handoff{
		ID:              id,
		Timestamp:       fixedNow().Format(time.RFC3339),
		ImageURL:        "https://example.com/login.png",
		DesignerProfile: "Product Designer",
		PlatformTarget:  "v0",
		ConfidenceScore: 0.85,
	}
}

func TestFiles_SaveHandoff(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	files := NewFiles(FilesOptions{Dir: dir, Now: fixedNow})

	path, err := files.SaveHandoff(sampleHandoff("abc"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "design_handoff_20260304_150405.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "abc", decoded["id"])
	assert.Equal(t, "v0", decoded["platform_target"])
}

func TestFiles_SameSecondDoesNotOverwrite(t *testing.T) {
	files := NewFiles(FilesOptions{Dir: t.TempDir(), Now: fixedNow})

	first, err := files.SaveMarkdown("analysis_report", "one")
	require.NoError(t, err)
	second, err := files.SaveMarkdown("analysis_report", "two")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "analysis_report_20260304_150405_2.md"))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestFiles_ConcurrentSavesKeepEveryFile(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(FilesOptions{Dir: dir, Now: fixedNow})

	const n = 64
	paths := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			path, err := files.SaveMarkdown("prompt_output", fmt.Sprintf("body %d", i))
			paths[i] = path
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	for i, path := range paths {
		require.False(t, seen[path], "duplicate path %s", path)
		seen[path] = true

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("body %d", i), string(data))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestFiles_SavePlatformPrompts(t *testing.T) {
	files := NewFiles(FilesOptions{Dir: t.TempDir(), Now: fixedNow})

	saved, err := files.SavePlatformPrompts(map[string]string{
		"v0":      "Create a login form",
		"lovable": "Build an app",
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	data, err := os.ReadFile(saved["v0"])
	require.NoError(t, err)
	assert.Equal(t, "# V0 Platform Prompt\n\nGenerated at: 20260304_150405\n\n## Prompt Content\n\nCreate a login form", string(data))
	assert.Equal(t, "platform_handoff_lovable_20260304_150405.md", filepath.Base(saved["lovable"]))
}

func TestFiles_WriteErrorPropagates(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	files := NewFiles(FilesOptions{Dir: filepath.Join(blocker, "out"), Now: fixedNow})
	_, err := files.SaveMarkdown("report", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create output dir")
}

func TestIndex_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "db", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	clock := fixedNow()
	idx.now = func() time.Time { return clock }

	require.NoError(t, idx.Record(ctx, sampleHandoff("a"), "handoff", "/out/a.json"))
	clock = clock.Add(time.Second)
	require.NoError(t, idx.Record(ctx, sampleHandoff("b"), "handoff", "/out/b.json"))
	clock = clock.Add(time.Second)
	require.NoError(t, idx.Record(ctx, sampleHandoff("b"), "report", "/out/b.md"))

	entries, err := idx.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "report", entries[0].Kind)
	assert.Equal(t, "a", entries[2].ID)
	assert.Equal(t, "Product Designer", entries[2].Profile)
	assert.InDelta(t, 0.85, entries[2].Confidence, 1e-9)
	assert.True(t, entries[2].CreatedAt.Equal(fixedNow()))

	limited, err := idx.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestIndex_RecordReplacesSameKind(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.Record(ctx, sampleHandoff("a"), "handoff", "/out/old.json"))
	require.NoError(t, idx.Record(ctx, sampleHandoff("a"), "handoff", "/out/new.json"))

	entries, err := idx.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/out/new.json", entries[0].Path)
}

func TestIndex_EmptyIsNotNil(t *testing.T) {
	idx, err := OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	entries, err := idx.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

// Package storage writes handoffs and reports to disk and keeps an index of
// what was written.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vibe-mind/internal/handoff"
)

const timestampLayout = "20060102_150405"

type FilesOptions struct {
	Dir string
	Now func() time.Time
}

// Files writes whole files into one directory, named by kind and timestamp.
type Files struct {
	dir string
	now func() time.Time
}

func NewFiles(opts FilesOptions) *Files {
	dir := opts.Dir
	if dir == "" {
		dir = "output"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Files{dir: dir, now: now}
}

func (f *Files) Dir() string {
	return f.dir
}

func (f *Files) SaveHandoff(h handoff.Handoff) (string, error) {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal handoff: %w", err)
	}
	return f.write("design_handoff", ".json", data)
}

// SaveMarkdown writes md as <kind>_<timestamp>.md.
func (f *Files) SaveMarkdown(kind, md string) (string, error) {
	return f.write(kind, ".md", []byte(md))
}

// SavePlatformPrompts writes one markdown file per platform and returns the
// paths keyed by platform.
func (f *Files) SavePlatformPrompts(prompts map[string]string) (map[string]string, error) {
	keys := make([]string, 0, len(prompts))
	for k := range prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ts := f.now().Format(timestampLayout)
	saved := make(map[string]string, len(prompts))
	var errs []error
	for _, platform := range keys {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s Platform Prompt\n\n", strings.ToUpper(platform))
		fmt.Fprintf(&b, "Generated at: %s\n\n", ts)
		b.WriteString("## Prompt Content\n\n")
		b.WriteString(prompts[platform])

		path, err := f.write("platform_handoff_"+platform, ".md", []byte(b.String()))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", platform, err))
			continue
		}
		saved[platform] = path
	}
	return saved, errors.Join(errs...)
}

func (f *Files) write(kind, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	base := fmt.Sprintf("%s_%s", kind, f.now().Format(timestampLayout))
	path := filepath.Join(f.dir, base+ext)
	for i := 2; ; i++ {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			path = filepath.Join(f.dir, fmt.Sprintf("%s_%d%s", base, i, ext))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		_, err = file.Write(data)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		break
	}
	return path, nil
}

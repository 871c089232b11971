// Package registry keeps a directory of configuration files as an immutable,
// atomically swapped snapshot keyed by filename stem.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	ErrNotFound = errors.New("not found")
	ErrEmpty    = errors.New("registry is empty")
)

// Decoder parses one file. ext is the lower-case extension including the dot.
type Decoder[T any] func(data []byte, ext string) (T, error)

type Options[T any] struct {
	Dir    string
	Kind   string
	Decode Decoder[T]
	Logger *slog.Logger
}

type Registry[T any] struct {
	dir    string
	kind   string
	decode Decoder[T]
	logger *slog.Logger
	snap   atomic.Pointer[snapshot[T]]
}

type snapshot[T any] struct {
	items map[string]T
	keys  []string
}

func New[T any](opts Options[T]) *Registry[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	kind := opts.Kind
	if kind == "" {
		kind = "entry"
	}

	r := &Registry[T]{
		dir:    opts.Dir,
		kind:   kind,
		decode: opts.Decode,
		logger: logger,
	}
	r.snap.Store(&snapshot[T]{items: map[string]T{}})
	return r
}

func (r *Registry[T]) Dir() string {
	return r.dir
}

// Reload scans the directory and swaps in a fresh snapshot. Files that fail
// to parse are logged and skipped. A missing directory yields an empty
// registry; other directory errors leave the previous snapshot in place.
func (r *Registry[T]) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn(r.kind+" directory not found", "dir", r.dir)
			r.snap.Store(&snapshot[T]{items: map[string]T{}})
			return nil
		}
		return fmt.Errorf("read %s dir %s: %w", r.kind, r.dir, err)
	}

	next := &snapshot[T]{items: make(map[string]T, len(entries))}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !Supported(ext) {
			continue
		}

		key := strings.TrimSuffix(name, filepath.Ext(name))
		if _, dup := next.items[key]; dup {
			r.logger.Warn("duplicate "+r.kind+" key, keeping first", "key", key, "file", name)
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Error("read "+r.kind+" failed", "file", name, "err", err)
			continue
		}
		item, err := r.decode(data, ext)
		if err != nil {
			r.logger.Error("parse "+r.kind+" failed", "file", name, "err", err)
			continue
		}

		next.items[key] = item
		next.keys = append(next.keys, key)
	}
	sort.Strings(next.keys)

	r.snap.Store(next)
	r.logger.Info(r.kind+"s loaded", "dir", r.dir, "count", len(next.keys))
	return nil
}

func (r *Registry[T]) Get(key string) (T, error) {
	item, ok := r.snap.Load().items[key]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, key, ErrNotFound)
	}
	return item, nil
}

// Resolve returns the item for key or, when key is unknown, the first item in
// key order. The returned key is the one actually used.
func (r *Registry[T]) Resolve(key string) (string, T, error) {
	s := r.snap.Load()
	if item, ok := s.items[key]; ok {
		return key, item, nil
	}

	var zero T
	if len(s.keys) == 0 {
		return "", zero, fmt.Errorf("%s %q: %w", r.kind, key, ErrEmpty)
	}

	first := s.keys[0]
	r.logger.Warn(r.kind+" not found, using first available", "requested", key, "using", first)
	return first, s.items[first], nil
}

func (r *Registry[T]) Keys() []string {
	return append([]string(nil), r.snap.Load().keys...)
}

// All returns a copy of the current snapshot.
func (r *Registry[T]) All() map[string]T {
	s := r.snap.Load()
	out := make(map[string]T, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

func (r *Registry[T]) Len() int {
	return len(r.snap.Load().keys)
}

func Supported(ext string) bool {
	switch ext {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

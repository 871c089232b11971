package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"vibe-mind/internal/registry"
)

var (
	ErrExists     = errors.New("profile already exists")
	ErrInvalidKey = errors.New("invalid profile key")
)

var keyRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Store persists profiles as whole JSON files next to the registry and
// reloads the registry after every change.
type Store struct {
	reg *Registry
}

func NewStore(reg *Registry) *Store {
	return &Store{reg: reg}
}

// KeyFor derives the file key for a profile name.
func KeyFor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Store) Create(p Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	key := KeyFor(p.Name)
	if !keyRegex.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, p.Name)
	}
	if path := s.find(key); path != "" {
		return "", fmt.Errorf("%w: %s", ErrExists, key)
	}

	if err := os.MkdirAll(s.reg.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("create profiles dir: %w", err)
	}
	if err := writeJSON(filepath.Join(s.reg.Dir(), key+".json"), p); err != nil {
		return "", err
	}
	return key, s.reg.Reload()
}

func (s *Store) Update(key string, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	existing := s.find(key)
	if existing == "" {
		return fmt.Errorf("profile %q: %w", key, registry.ErrNotFound)
	}

	target := filepath.Join(s.reg.Dir(), key+".json")
	if err := writeJSON(target, p); err != nil {
		return err
	}
	if existing != target {
		if err := os.Remove(existing); err != nil {
			return fmt.Errorf("remove %s: %w", existing, err)
		}
	}
	return s.reg.Reload()
}

func (s *Store) Delete(key string) error {
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	path := s.find(key)
	if path == "" {
		return fmt.Errorf("profile %q: %w", key, registry.ErrNotFound)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return s.reg.Reload()
}

func (s *Store) find(key string) string {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(s.reg.Dir(), key+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func writeJSON(path string, p Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

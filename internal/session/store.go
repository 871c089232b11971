// Package session keeps each chat's analysis selection in memory.
package session

import (
	"sync"
	"time"
)

// Selection is what a chat has picked with /profile, /platform, /mode and
// /scenario. Empty fields mean "use the default".
type Selection struct {
	ProfileKey  string
	PlatformKey string
	Mode        string
	Scenario    string
}

type Session struct {
	ChatID       int64
	Username     string
	Selection    Selection
	Analyses     int
	LastActivity time.Time
}

type Options struct {
	Defaults Selection
	// IdleTTL drops sessions untouched for longer than this on Prune.
	IdleTTL time.Duration
	Now     func() time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	defaults Selection
	idleTTL  time.Duration
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	idleTTL := opts.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		sessions: make(map[int64]*Session),
		defaults: opts.Defaults,
		idleTTL:  idleTTL,
		now:      now,
	}
}

// Selection returns the chat's choices with defaults filled in.
func (s *Store) Selection(chatID int64, username string) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID, username)
	sess.LastActivity = s.now()
	return s.withDefaults(sess.Selection)
}

// Update applies fn to the chat's stored selection and returns the result
// with defaults filled in.
func (s *Store) Update(chatID int64, username string, fn func(*Selection)) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID, username)
	sess.LastActivity = s.now()
	fn(&sess.Selection)
	return s.withDefaults(sess.Selection)
}

// RecordAnalysis counts a finished analysis and returns the new total.
func (s *Store) RecordAnalysis(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID, "")
	sess.LastActivity = s.now()
	sess.Analyses++
	return sess.Analyses
}

func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		sess.Selection = Selection{}
		sess.LastActivity = s.now()
	}
}

// Prune removes idle sessions and returns how many were dropped.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.idleTTL)
	dropped := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) withDefaults(sel Selection) Selection {
	if sel.ProfileKey == "" {
		sel.ProfileKey = s.defaults.ProfileKey
	}
	if sel.PlatformKey == "" {
		sel.PlatformKey = s.defaults.PlatformKey
	}
	if sel.Mode == "" {
		sel.Mode = s.defaults.Mode
	}
	if sel.Scenario == "" {
		sel.Scenario = s.defaults.Scenario
	}
	return sel
}

func (s *Store) getOrCreateLocked(chatID int64, username string) *Session {
	if sess, ok := s.sessions[chatID]; ok {
		if sess.Username == "" && username != "" {
			sess.Username = username
		}
		return sess
	}

	sess := &Session{
		ChatID:       chatID,
		Username:     username,
		LastActivity: s.now(),
	}
	s.sessions[chatID] = sess
	return sess
}

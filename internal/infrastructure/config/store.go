package config

import "sync"

// Store holds the authoritative configuration for the process and hands out
// snapshots to readers. Settings updates replace the whole value at once so
// readers never observe a half-applied configuration.
type Store struct {
	mu      sync.RWMutex
	current *AppConfig
}

// NewStore creates a store seeded with the given configuration.
func NewStore(cfg *AppConfig) *Store {
	return &Store{current: cfg}
}

// Current returns the active configuration snapshot. Callers must treat the
// returned value as read-only; use Clone before mutating.
func (s *Store) Current() *AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a new configuration.
func (s *Store) Replace(cfg *AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cfg
}

package config

import (
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable, versioned view of the configuration. Consumers
// must not modify Config through a Snapshot.
type Snapshot struct {
	Version uint64
	Config
}

// Store publishes configuration snapshots. Readers load the current snapshot
// without locking; writers are serialized among themselves only.
type Store struct {
	cur atomic.Pointer[Snapshot]
	mu  sync.Mutex // serializes writers
}

// NewStore returns a store whose first snapshot (version 1) is a validated copy of cfg.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	_ = c.Validate()
	s := &Store{}
	s.cur.Store(&Snapshot{Version: 1, Config: c})
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot { return s.cur.Load() }

// Update applies fn to a copy of the current configuration, validates it and
// publishes it as a new version. It returns the published snapshot.
func (s *Store) Update(fn func(*Config)) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur.Load()
	c := prev.Config
	if fn != nil {
		fn(&c)
	}
	_ = c.Validate()
	next := &Snapshot{Version: prev.Version + 1, Config: c}
	s.cur.Store(next)
	return next
}

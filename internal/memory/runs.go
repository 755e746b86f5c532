// Package memory keeps finished re-ranking runs in memory for later retrieval.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/knoguchi/comparank/internal/model"
	"github.com/knoguchi/comparank/internal/runfile"
)

// Run is the result of re-ranking one query.
type Run struct {
	ID        string         `json:"id"`
	Query     model.Query    `json:"query"`
	Stages    []string       `json:"stages"`
	Axioms    string         `json:"axioms,omitempty"`
	Ranking   model.Ranking  `json:"ranking"`
	Lines     []runfile.Line `json:"lines"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store provides in-memory run storage.
// Runs expire after the TTL; the oldest runs are dropped once maxRuns is exceeded.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	maxRuns int           // Max runs kept
	ttl     time.Duration // Time-to-live for runs
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewStore creates a new run store and starts its cleanup loop.
func NewStore(maxRuns int, ttl time.Duration) *Store {
	s := &Store{
		runs:    make(map[string]*Run),
		maxRuns: maxRuns,
		ttl:     ttl,
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go s.cleanupLoop()

	return s
}

// DefaultStore creates a store with sensible defaults.
// - Max 1000 runs
// - 1 hour TTL
func DefaultStore() *Store {
	return NewStore(1000, 1*time.Hour)
}

// Put stores a run, replacing any run with the same id. A zero CreatedAt is set to now.
func (s *Store) Put(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	s.runs[run.ID] = &run

	if s.maxRuns > 0 && len(s.runs) > s.maxRuns {
		s.evictOldest(len(s.runs) - s.maxRuns)
	}
}

// Get returns the run with the given id.
func (s *Store) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists || s.expired(run) {
		return Run{}, false
	}
	return *run, true
}

// Delete removes a run.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// Len returns the number of stored runs, expired ones included until cleanup.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Close stops the cleanup loop.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) expired(run *Run) bool {
	return s.ttl > 0 && s.now().Sub(run.CreatedAt) > s.ttl
}

func (s *Store) evictOldest(n int) {
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].CreatedAt.Before(runs[b].CreatedAt) })
	for _, run := range runs[:n] {
		delete(s.runs, run.ID)
	}
}

// cleanupLoop periodically removes expired runs.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, run := range s.runs {
		if s.expired(run) {
			delete(s.runs, id)
		}
	}
}

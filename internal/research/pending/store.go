// Package pending deduplicates question submissions by their caller-supplied
// question id and tracks the processing → complete|error lifecycle of each
// answer. Completed entries are consumed by the next fetch for the same id;
// entries nobody re-fetches are evicted after a TTL.
package pending

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status is the lifecycle state of an answer.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Answer is the result of a question submission.
type Answer struct {
	Answer string `json:"answer"`
	Status Status `json:"status"`
}

type entry struct {
	answer   Answer
	inFlight bool
	storedAt time.Time
}

// RunFunc computes an answer. It is invoked at most once per id while that
// id is in flight.
type RunFunc func(ctx context.Context) (string, error)

// Store is the pending-answer map with explicit mutual exclusion. It is safe
// for concurrent use from parallel request handlers.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	stop    chan struct{}
	logger  *slog.Logger

	// onSizeChange, when set, observes the store size after each mutation.
	onSizeChange func(n int)
}

// NewStore creates a Store whose finished entries expire after ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		logger:  slog.Default().With("component", "pending-answers"),
	}
	go s.janitor()
	return s
}

// SetSizeObserver registers a callback invoked with the store size after
// each mutation (used for the pending-answers gauge).
func (s *Store) SetSizeObserver(fn func(n int)) {
	s.mu.Lock()
	s.onSizeChange = fn
	s.mu.Unlock()
}

// Resolve implements submit-or-fetch semantics for one question id:
//
//   - finished entry present: it is consumed (removed) and returned;
//   - same id currently in flight: Status "processing" returns immediately,
//     without a duplicate run;
//   - otherwise: run executes synchronously, its outcome is stored under the
//     id for the next fetch, and the outcome is returned. A run error is
//     stored as a Status "error" entry and also returned as err so the
//     caller can surface it.
func (s *Store) Resolve(ctx context.Context, id string, run RunFunc) (Answer, error) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		if e.inFlight {
			s.mu.Unlock()
			return Answer{Status: StatusProcessing}, nil
		}
		delete(s.entries, id)
		s.notifySizeLocked()
		s.mu.Unlock()
		return e.answer, nil
	}
	s.entries[id] = &entry{inFlight: true}
	s.notifySizeLocked()
	s.mu.Unlock()

	text, err := run(ctx)

	answer := Answer{Answer: text, Status: StatusComplete}
	if err != nil {
		answer = Answer{Answer: "Error: " + err.Error(), Status: StatusError}
	}

	s.mu.Lock()
	s.entries[id] = &entry{answer: answer, storedAt: time.Now()}
	s.notifySizeLocked()
	s.mu.Unlock()

	return answer, err
}

// Len returns the number of stored entries, in-flight included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the eviction janitor.
func (s *Store) Close() {
	close(s.stop)
}

func (s *Store) janitor() {
	interval := s.ttl / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

// evictExpired drops finished entries older than the TTL. In-flight entries
// are never evicted; their pipeline still owns them.
func (s *Store) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if !e.inFlight && e.storedAt.Before(cutoff) {
			delete(s.entries, id)
			s.logger.Debug("evicted stale answer", "question_id", id)
		}
	}
	s.notifySizeLocked()
}

func (s *Store) notifySizeLocked() {
	if s.onSizeChange != nil {
		s.onSizeChange(len(s.entries))
	}
}

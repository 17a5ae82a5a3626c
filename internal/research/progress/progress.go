// Package progress tracks pipeline progress per run. Every pipeline run gets
// its own Tracker in a concurrent-safe Registry, so parallel runs cannot
// clobber each other's state; subscribers stream updates until the run
// reaches 100 percent or fails.
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Update is one progress observation: a percentage and a status line.
type Update struct {
	Percent int    `json:"progress"`
	Status  string `json:"status"`
}

// Tracker holds the progress of a single pipeline run. Percent is
// monotonically non-decreasing; updates that would move it backwards keep
// the higher value. The tracker terminates when percent reaches 100 or
// Fail is called, at which point all subscriber channels are closed.
type Tracker struct {
	mu      sync.Mutex
	current Update
	done    bool
	subs    map[int]chan Update
	nextSub int
	logger  *slog.Logger
}

func newTracker(id string) *Tracker {
	return &Tracker{
		subs:   make(map[int]chan Update),
		logger: slog.Default().With("component", "progress", "run_id", id),
	}
}

// Set records a progress update and pushes it to all subscribers. Reaching
// 100 terminates the tracker.
func (t *Tracker) Set(percent int, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	if percent < t.current.Percent {
		percent = t.current.Percent
	}
	if percent > 100 {
		percent = 100
	}
	t.current = Update{Percent: percent, Status: status}
	t.logger.Info("progress", "percent", percent, "status", status)
	t.broadcastLocked()
	if percent == 100 {
		t.terminateLocked()
	}
}

// Fail terminates the tracker without reaching 100, pushing one final status
// so pollers see why the stream ended.
func (t *Tracker) Fail(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.current.Status = status
	t.logger.Warn("run failed", "percent", t.current.Percent, "status", status)
	t.broadcastLocked()
	t.terminateLocked()
}

// Current returns the latest update.
func (t *Tracker) Current() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Done reports whether the tracker has terminated.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Subscribe returns a channel that receives the current state immediately
// and every subsequent update. The channel is closed when the run terminates.
// The returned cancel function must be called when the subscriber goes away.
func (t *Tracker) Subscribe() (<-chan Update, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Update, 16)
	ch <- t.current
	if t.done {
		close(ch)
		return ch, func() {}
	}

	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// broadcastLocked pushes the current update to every subscriber without
// blocking; a subscriber that has fallen 16 updates behind misses one.
func (t *Tracker) broadcastLocked() {
	for _, ch := range t.subs {
		select {
		case ch <- t.current:
		default:
		}
	}
}

func (t *Tracker) terminateLocked() {
	t.done = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

// Registry maps run ids to Trackers and remembers the most recently started
// run for clients that poll without an id. Terminated trackers are evicted
// after the configured TTL.
type Registry struct {
	mu     sync.Mutex
	runs   map[string]*Tracker
	latest string
	ttl    time.Duration
}

// NewRegistry creates a Registry whose finished trackers linger for ttl.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{
		runs: make(map[string]*Tracker),
		ttl:  ttl,
	}
}

// Start registers a new tracker under id, replacing any previous run with
// the same id, and marks it as the latest run.
func (r *Registry) Start(id string) *Tracker {
	t := newTracker(id)
	r.mu.Lock()
	r.runs[id] = t
	r.latest = id
	r.mu.Unlock()

	time.AfterFunc(r.ttl, func() { r.evictIfDone(id, t) })
	return t
}

// Get returns the tracker for id.
func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.runs[id]
	return t, ok
}

// Latest returns the most recently started tracker.
func (r *Registry) Latest() (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == "" {
		return nil, false
	}
	t, ok := r.runs[r.latest]
	return t, ok
}

// evictIfDone removes a terminated tracker; a tracker still running at TTL
// gets another grace period rather than disappearing mid-run.
func (r *Registry) evictIfDone(id string, t *Tracker) {
	if !t.Done() {
		time.AfterFunc(r.ttl, func() { r.evictIfDone(id, t) })
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.runs[id]; ok && cur == t {
		delete(r.runs, id)
		if r.latest == id {
			r.latest = ""
		}
	}
}

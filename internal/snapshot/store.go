// Package snapshot holds the lock-free, reader-visible snapshot of all
// enrolled face profiles shared by every recognition call. The refresher is
// the store's only writer; it swaps an immutable state atomically so no
// reader ever observes a partially constructed snapshot.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/sentryvms/facecore/internal/domain"
)

// State is one immutable, fully-constructed view of the snapshot store.
type State struct {
	Profiles            []domain.FaceProfileSnapshot
	Version             uint64
	LastRefreshAt        time.Time
	LastRefreshDurationMs int64
	LastError            error
}

// Store is the process-wide snapshot holder. Zero value is not usable; use
// New.
type Store struct {
	state      atomic.Pointer[State]
	isRefreshing atomic.Bool
	refreshRequested atomic.Bool
}

// New returns a Store with an empty initial snapshot at version 0.
func New() *Store {
	s := &Store{}
	s.state.Store(&State{Version: 0})
	return s
}

// Current returns the latest snapshot without blocking. Never nil.
func (s *Store) Current() *State {
	return s.state.Load()
}

// Age returns how long ago the last successful refresh completed. If no
// refresh has ever succeeded, it returns a very large duration so staleness
// checks trip immediately.
func (s *Store) Age() time.Duration {
	st := s.Current()
	if st.LastRefreshAt.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(st.LastRefreshAt)
}

// UpdateSuccess atomically swaps in a newly loaded snapshot. version must be
// monotonically non-decreasing relative to prior publications by this
// process; callers (the refresher) are responsible for sourcing a version
// that satisfies that, typically from the distributed cache.
func (s *Store) UpdateSuccess(profiles []domain.FaceProfileSnapshot, durationMs int64, version uint64) {
	prev := s.state.Load()
	next := &State{
		Profiles:              profiles,
		Version:               version,
		LastRefreshAt:         time.Now(),
		LastRefreshDurationMs: durationMs,
		LastError:             nil,
	}
	if version < prev.Version {
		next.Version = prev.Version
	}
	s.state.Store(next)
	s.refreshRequested.Store(false)
}

// UpdateFailure records a failed refresh attempt without touching the
// current snapshot contents.
func (s *Store) UpdateFailure(err error, durationMs int64) {
	prev := s.state.Load()
	next := &State{
		Profiles:              prev.Profiles,
		Version:               prev.Version,
		LastRefreshAt:         prev.LastRefreshAt,
		LastRefreshDurationMs: durationMs,
		LastError:             err,
	}
	s.state.Store(next)
}

// RequestRefresh sets a flag the refresher consumes to wake early instead of
// waiting out its full interval.
func (s *Store) RequestRefresh() {
	s.refreshRequested.Store(true)
}

// ConsumeRefreshRequest reports and clears whether a refresh was requested.
func (s *Store) ConsumeRefreshRequest() bool {
	return s.refreshRequested.Swap(false)
}

// TryBeginRefresh attempts to take the non-reentrant in-process refresh
// guard. Returns false if a refresh is already in flight.
func (s *Store) TryBeginRefresh() bool {
	return s.isRefreshing.CompareAndSwap(false, true)
}

// EndRefresh releases the in-process refresh guard.
func (s *Store) EndRefresh() {
	s.isRefreshing.Store(false)
}

// IsEmpty reports whether the current snapshot has no profiles.
func (st *State) IsEmpty() bool {
	return st == nil || len(st.Profiles) == 0
}

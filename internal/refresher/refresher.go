// Package refresher runs the background loop that keeps the in-process
// snapshot store up to date, coordinating with other instances through a
// distributed lock and cache so only one instance hits Postgres per
// interval under normal conditions.
package refresher

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/metrics"
	"github.com/sentryvms/facecore/internal/snapshot"
)

// Loader produces the authoritative profile snapshot set from the system
// of record.
type Loader interface {
	Load(ctx context.Context) ([]domain.FaceProfileSnapshot, error)
}

// Cache is the distributed cache/lock coordination dependency.
type Cache interface {
	TryGet(ctx context.Context) (found bool, version uint64, snapshots []domain.FaceProfileSnapshot)
	Set(ctx context.Context, snapshots []domain.FaceProfileSnapshot) uint64
	TryAcquireLock(ctx context.Context) (acquired bool, token string)
	ReleaseLock(ctx context.Context, token string)
}

// Notifier is told about successful publications. Optional; a nil
// Notifier on Refresher skips notification entirely.
type Notifier interface {
	PublishSnapshotRefreshed(version uint64, profileCount int)
}

// Config tunes the refresh loop.
type Config struct {
	Interval             time.Duration
	JitterFraction       float64
	PreferDistributed    bool
	MaxStaleness         time.Duration
	EmergencyRefresh     bool
	LoadTimeout          time.Duration
	FollowerRetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:             60 * time.Second,
		JitterFraction:       0.2,
		PreferDistributed:    true,
		MaxStaleness:         5 * time.Minute,
		EmergencyRefresh:     true,
		LoadTimeout:          20 * time.Second,
		FollowerRetryBackoff: 250 * time.Millisecond,
	}
}

// Refresher owns the background loop: a ticker-driven goroutine guarded by
// a quit channel and WaitGroup, attempting one leader-or-follower refresh
// per tick.
type Refresher struct {
	loader   Loader
	cache    Cache
	store    *snapshot.Store
	notifier Notifier
	cfg      Config

	quit chan struct{}
	wg   sync.WaitGroup
}

func New(loader Loader, cache Cache, store *snapshot.Store, cfg Config) *Refresher {
	return &Refresher{loader: loader, cache: cache, store: store, cfg: cfg, quit: make(chan struct{})}
}

// WithNotifier attaches an optional publisher notified after a successful
// leader refresh.
func (r *Refresher) WithNotifier(n Notifier) *Refresher {
	r.notifier = n
	return r
}

func (r *Refresher) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *Refresher) Stop() {
	close(r.quit)
	r.wg.Wait()
}

func (r *Refresher) run() {
	defer r.wg.Done()

	if r.cfg.PreferDistributed {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.LoadTimeout)
		if found, version, snaps := r.cache.TryGet(ctx); found {
			r.store.UpdateSuccess(snaps, 0, version)
		}
		cancel()
	}

	r.tick()

	// pollTicker checks refreshRequested between full intervals so a
	// caller's RequestRefresh() is honored promptly without a busy loop.
	pollTicker := time.NewTicker(250 * time.Millisecond)
	defer pollTicker.Stop()

	deadline := time.Now().Add(r.jitteredInterval())
	for {
		select {
		case <-r.quit:
			return
		case <-pollTicker.C:
			if r.store.ConsumeRefreshRequest() || time.Now().After(deadline) {
				r.tick()
				deadline = time.Now().Add(r.jitteredInterval())
			}
		}
	}
}

func (r *Refresher) jitteredInterval() time.Duration {
	base := r.cfg.Interval
	jitter := time.Duration(float64(base) * r.cfg.JitterFraction * (rand.Float64()*2 - 1))
	return base + jitter
}

func (r *Refresher) tick() {
	if !r.store.TryBeginRefresh() {
		return
	}
	defer r.store.EndRefresh()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.LoadTimeout)
	defer cancel()

	acquired, token := r.cache.TryAcquireLock(ctx)
	if acquired {
		r.runAsLeader(ctx, token)
		return
	}
	r.runAsFollower(ctx)
}

func (r *Refresher) runAsLeader(ctx context.Context, token string) {
	defer r.cache.ReleaseLock(ctx, token)

	start := time.Now()
	snaps, err := r.loader.Load(ctx)
	duration := time.Since(start)
	metrics.RefreshDurationMs.WithLabelValues("leader").Observe(float64(duration.Milliseconds()))

	if err != nil {
		log.Printf("[refresher] leader load failed: %v", err)
		r.store.UpdateFailure(err, duration.Milliseconds())
		metrics.RefreshTotal.WithLabelValues("leader", "failure").Inc()
		return
	}

	version := r.cache.Set(ctx, snaps)
	r.store.UpdateSuccess(snaps, duration.Milliseconds(), version)
	metrics.RefreshTotal.WithLabelValues("leader", "success").Inc()
	if r.notifier != nil {
		r.notifier.PublishSnapshotRefreshed(version, len(snaps))
	}
}

func (r *Refresher) runAsFollower(ctx context.Context) {
	start := time.Now()

	if found, version, snaps := r.cache.TryGet(ctx); found {
		r.store.UpdateSuccess(snaps, time.Since(start).Milliseconds(), version)
		metrics.RefreshTotal.WithLabelValues("follower", "success").Inc()
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(r.cfg.FollowerRetryBackoff):
	}

	if found, version, snaps := r.cache.TryGet(ctx); found {
		r.store.UpdateSuccess(snaps, time.Since(start).Milliseconds(), version)
		metrics.RefreshTotal.WithLabelValues("follower", "success").Inc()
		return
	}

	if r.cfg.EmergencyRefresh && r.store.Age() > r.cfg.MaxStaleness {
		log.Printf("[refresher] follower snapshot stale beyond %s with no cache entry, acting as leader", r.cfg.MaxStaleness)
		acquired, token := r.cache.TryAcquireLock(ctx)
		if acquired {
			r.runAsLeader(ctx, token)
			return
		}
	}

	metrics.RefreshTotal.WithLabelValues("follower", "failure").Inc()
}

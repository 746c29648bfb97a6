package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	snaps []domain.FaceProfileSnapshot
	err   error
	calls int
}

func (f *fakeLoader) Load(ctx context.Context) ([]domain.FaceProfileSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps, nil
}

type fakeCache struct {
	mu         sync.Mutex
	found      bool
	version    uint64
	snaps      []domain.FaceProfileSnapshot
	lockFree   bool
	setCalls   int
	acquireLog []bool
}

func (f *fakeCache) TryGet(ctx context.Context) (bool, uint64, []domain.FaceProfileSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.found, f.version, f.snaps
}

func (f *fakeCache) Set(ctx context.Context, snaps []domain.FaceProfileSnapshot) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.found = true
	f.snaps = snaps
	f.version++
	return f.version
}

func (f *fakeCache) TryAcquireLock(ctx context.Context) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireLog = append(f.acquireLog, f.lockFree)
	return f.lockFree, "token"
}

func (f *fakeCache) ReleaseLock(ctx context.Context, token string) {}

func testSnapshots() []domain.FaceProfileSnapshot {
	return []domain.FaceProfileSnapshot{{ProfileID: uuid.New()}}
}

func TestTickAsLeaderPublishesToStoreAndCache(t *testing.T) {
	store := snapshot.New()
	loader := &fakeLoader{snaps: testSnapshots()}
	cache := &fakeCache{lockFree: true}
	r := New(loader, cache, store, DefaultConfig())

	r.tick()

	require.False(t, store.Current().IsEmpty())
	assert.Equal(t, 1, cache.setCalls)
}

func TestTickAsFollowerInstallsFromCache(t *testing.T) {
	store := snapshot.New()
	loader := &fakeLoader{}
	cache := &fakeCache{lockFree: false, found: true, version: 5, snaps: testSnapshots()}
	r := New(loader, cache, store, DefaultConfig())

	r.tick()

	current := store.Current()
	assert.Equal(t, uint64(5), current.Version)
	assert.Equal(t, 0, loader.calls)
}

func TestTickAsFollowerEmergencyRefreshWhenStaleAndCacheMiss(t *testing.T) {
	store := snapshot.New()
	store.UpdateSuccess(testSnapshots(), 1, 1)

	loader := &fakeLoader{snaps: testSnapshots()}
	cfg := DefaultConfig()
	cfg.MaxStaleness = -time.Second // force staleness immediately
	cache := &fakeCache{lockFree: false, found: false}
	r := New(loader, cache, store, cfg)
	// After the first TryAcquireLock returns false, the emergency path
	// retries TryAcquireLock; flip it to free for that second call.
	go func() {
		time.Sleep(10 * time.Millisecond)
		cache.mu.Lock()
		cache.lockFree = true
		cache.mu.Unlock()
	}()

	r.tick()

	assert.GreaterOrEqual(t, len(cache.acquireLog), 1)
	assert.Equal(t, 1, loader.calls, "stale follower should load from the database")
}

func TestTickLeaderLoadFailurePreservesPreviousSnapshot(t *testing.T) {
	store := snapshot.New()
	store.UpdateSuccess(testSnapshots(), 1, 3)

	loader := &fakeLoader{err: errors.New("db down")}
	cache := &fakeCache{lockFree: true}
	r := New(loader, cache, store, DefaultConfig())

	r.tick()

	current := store.Current()
	assert.Equal(t, uint64(3), current.Version)
	assert.NotEmpty(t, current.LastError)
}

func TestStartStopRunsLoopWithoutDeadlock(t *testing.T) {
	store := snapshot.New()
	loader := &fakeLoader{snaps: testSnapshots()}
	cache := &fakeCache{lockFree: true}
	cfg := DefaultConfig()
	cfg.Interval = 50 * time.Millisecond
	r := New(loader, cache, store, cfg)

	r.Start()
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	assert.False(t, store.Current().IsEmpty())
}

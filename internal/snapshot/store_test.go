package snapshot_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreStartsEmpty(t *testing.T) {
	s := snapshot.New()
	cur := s.Current()
	require.NotNil(t, cur)
	assert.True(t, cur.IsEmpty())
	assert.Equal(t, uint64(0), cur.Version)
}

func TestUpdateSuccessSwapsAtomically(t *testing.T) {
	s := snapshot.New()
	profiles := []domain.FaceProfileSnapshot{{ProfileID: uuid.New()}}
	s.UpdateSuccess(profiles, 10, 1)

	cur := s.Current()
	assert.Equal(t, uint64(1), cur.Version)
	assert.Len(t, cur.Profiles, 1)
}

func TestVersionNeverDecreases(t *testing.T) {
	s := snapshot.New()
	s.UpdateSuccess(nil, 5, 5)
	s.UpdateSuccess(nil, 5, 2) // stale publish attempt
	assert.Equal(t, uint64(5), s.Current().Version)
}

func TestUpdateFailurePreservesProfiles(t *testing.T) {
	s := snapshot.New()
	profiles := []domain.FaceProfileSnapshot{{ProfileID: uuid.New()}}
	s.UpdateSuccess(profiles, 10, 3)

	s.UpdateFailure(errors.New("db down"), 20)

	cur := s.Current()
	assert.Len(t, cur.Profiles, 1)
	assert.Equal(t, uint64(3), cur.Version)
	assert.EqualError(t, cur.LastError, "db down")
}

func TestRefreshGuardIsNonReentrant(t *testing.T) {
	s := snapshot.New()
	assert.True(t, s.TryBeginRefresh())
	assert.False(t, s.TryBeginRefresh())
	s.EndRefresh()
	assert.True(t, s.TryBeginRefresh())
}

func TestRequestRefreshConsumedOnce(t *testing.T) {
	s := snapshot.New()
	s.RequestRefresh()
	assert.True(t, s.ConsumeRefreshRequest())
	assert.False(t, s.ConsumeRefreshRequest())
}

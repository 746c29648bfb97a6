package matcher

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func snap(id uuid.UUID, primary bool, createdAt time.Time, vecs ...[]float32) domain.FaceProfileSnapshot {
	return domain.FaceProfileSnapshot{
		ProfileID:  id,
		UserID:     uuid.New(),
		IsPrimary:  primary,
		CreatedAt:  createdAt,
		Embeddings: vecs,
	}
}

func TestMatchNoCandidatesAboveZero(t *testing.T) {
	result := Match([]float32{1, 0}, 0.5, nil)
	assert.False(t, result.IsMatch)
}

func TestMatchExactMatch(t *testing.T) {
	id := uuid.New()
	snapshots := []domain.FaceProfileSnapshot{
		snap(id, false, time.Now(), []float32{1, 0, 0}),
	}
	result := Match([]float32{1, 0, 0}, 0.8, snapshots)
	assert.True(t, result.IsMatch)
	assert.Equal(t, id, *result.MatchedProfile)
	assert.InDelta(t, 1.0, result.Similarity, 1e-6)
}

func TestMatchBelowThresholdIsNoMatch(t *testing.T) {
	snapshots := []domain.FaceProfileSnapshot{
		snap(uuid.New(), false, time.Now(), []float32{1, 0, 0}),
	}
	// orthogonal probe -> similarity 0, filtered before threshold check
	result := Match([]float32{0, 1, 0}, 0.5, snapshots)
	assert.False(t, result.IsMatch)
}

func TestMatchTieBreakPrefersPrimary(t *testing.T) {
	now := time.Now()
	nonPrimary := uuid.New()
	primary := uuid.New()
	snapshots := []domain.FaceProfileSnapshot{
		snap(nonPrimary, false, now, []float32{1, 0}),
		snap(primary, true, now, []float32{1, 0}),
	}
	result := Match([]float32{1, 0}, 0.5, snapshots)
	assert.True(t, result.IsMatch)
	assert.Equal(t, primary, *result.MatchedProfile)
}

func TestMatchTieBreakPrefersEarliestCreated(t *testing.T) {
	older := uuid.New()
	newer := uuid.New()
	now := time.Now()
	snapshots := []domain.FaceProfileSnapshot{
		snap(newer, false, now, []float32{1, 0}),
		snap(older, false, now.Add(-time.Hour), []float32{1, 0}),
	}
	result := Match([]float32{1, 0}, 0.5, snapshots)
	assert.Equal(t, older, *result.MatchedProfile)
}

func TestMatchTieBreakFallsBackToProfileID(t *testing.T) {
	now := time.Now()
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	snapshots := []domain.FaceProfileSnapshot{
		snap(b, false, now, []float32{1, 0}),
		snap(a, false, now, []float32{1, 0}),
	}
	result := Match([]float32{1, 0}, 0.5, snapshots)
	assert.Equal(t, a, *result.MatchedProfile)
}

func TestMatchPicksBestEmbeddingAcrossMultiplePerProfile(t *testing.T) {
	id := uuid.New()
	snapshots := []domain.FaceProfileSnapshot{
		snap(id, false, time.Now(), []float32{0, 1}, []float32{1, 0}),
	}
	result := Match([]float32{1, 0}, 0.5, snapshots)
	assert.True(t, result.IsMatch)
	assert.InDelta(t, 1.0, result.Similarity, 1e-6)
}

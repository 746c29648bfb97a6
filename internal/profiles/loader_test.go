package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	profiles []domain.FaceProfile
	err      error
}

func (f fakeRepo) ListProfiles(ctx context.Context) ([]domain.FaceProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles, nil
}

func TestLoadBuildsSnapshots(t *testing.T) {
	userID := uuid.New()
	profileID := uuid.New()
	repo := fakeRepo{profiles: []domain.FaceProfile{
		{
			ID:          profileID,
			UserID:      userID,
			Description: "front desk",
			IsPrimary:   true,
			CreatedAt:   time.Now(),
			Embeddings: []domain.FaceEmbedding{
				{ID: uuid.New(), ProfileID: profileID, Vector: []float32{3, 4}},
			},
		},
	}}

	snaps, err := New(repo).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, profileID, snaps[0].ProfileID)
	assert.Equal(t, userID, snaps[0].UserID)
	assert.True(t, snaps[0].IsPrimary)
	require.Len(t, snaps[0].Embeddings, 1)
	// normalized: 3,4 -> 0.6,0.8
	assert.InDelta(t, 0.6, snaps[0].Embeddings[0][0], 1e-6)
	assert.InDelta(t, 0.8, snaps[0].Embeddings[0][1], 1e-6)
}

func TestLoadPropagatesRepositoryErrorWithoutPartialData(t *testing.T) {
	repo := fakeRepo{err: errors.New("connection reset")}
	snaps, err := New(repo).Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, snaps)
}

func TestLoadEmptyRepository(t *testing.T) {
	snaps, err := New(fakeRepo{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

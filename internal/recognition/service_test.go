package recognition

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePolicy struct {
	policy domain.CameraRecognitionPolicy
}

func (f fakePolicy) Resolve(ctx context.Context, cameraID int64) domain.CameraRecognitionPolicy {
	return f.policy
}

type fakeSnapshots struct {
	snaps []domain.FaceProfileSnapshot
}

func (f fakeSnapshots) Current() []domain.FaceProfileSnapshot {
	return f.snaps
}

type fakeExtractor struct {
	result domain.ExtractResult
	err    error
}

func (f fakeExtractor) ExtractEmbedding(ctx context.Context, image []byte) (domain.ExtractResult, error) {
	return f.result, f.err
}

func makeSnapshot() domain.FaceProfileSnapshot {
	return domain.FaceProfileSnapshot{
		ProfileID:  uuid.New(),
		UserID:     uuid.New(),
		IsPrimary:  true,
		CreatedAt:  time.Now(),
		Embeddings: [][]float32{make128Vector()},
	}
}

func make128Vector() []float32 {
	v := make([]float32, 128)
	v[0] = 1
	return v
}

func TestVerifyEmbeddingShortEmbeddingIsNoMatch(t *testing.T) {
	svc := New(fakePolicy{policy: domain.CameraRecognitionPolicy{Mode: domain.ModeNormal, Threshold: 0.5}}, fakeSnapshots{}, nil, 0)
	result := svc.VerifyEmbedding(context.Background(), 1, []float32{1, 2, 3})
	assert.False(t, result.IsMatch)
}

func TestVerifyEmbeddingDisabledModeIsNoMatch(t *testing.T) {
	svc := New(fakePolicy{policy: domain.CameraRecognitionPolicy{Mode: domain.ModeDisabled}}, fakeSnapshots{snaps: []domain.FaceProfileSnapshot{makeSnapshot()}}, nil, 0)
	result := svc.VerifyEmbedding(context.Background(), 1, make128Vector())
	assert.False(t, result.IsMatch)
}

func TestVerifyEmbeddingEmptySnapshotIsNoMatch(t *testing.T) {
	svc := New(fakePolicy{policy: domain.CameraRecognitionPolicy{Mode: domain.ModeNormal, Threshold: 0.5}}, fakeSnapshots{}, nil, 0)
	result := svc.VerifyEmbedding(context.Background(), 1, make128Vector())
	assert.False(t, result.IsMatch)
}

func TestVerifyEmbeddingObserveOnlySuppressesMatch(t *testing.T) {
	snap := makeSnapshot()
	svc := New(fakePolicy{policy: domain.CameraRecognitionPolicy{Mode: domain.ModeObserveOnly, Threshold: 0.5}}, fakeSnapshots{snaps: []domain.FaceProfileSnapshot{snap}}, nil, 0)
	result := svc.VerifyEmbedding(context.Background(), 1, make128Vector())
	assert.False(t, result.IsMatch)
	assert.Greater(t, result.Similarity, 0.0)
}

func TestVerifyEmbeddingNormalMatchSchedulesAutoEnroll(t *testing.T) {
	snap := makeSnapshot()
	svc := New(fakePolicy{policy: domain.CameraRecognitionPolicy{Mode: domain.ModeNormal, Threshold: 0.5}}, fakeSnapshots{snaps: []domain.FaceProfileSnapshot{snap}}, nil, 0)
	result := svc.VerifyEmbedding(context.Background(), 1, make128Vector())
	require.True(t, result.IsMatch)

	select {
	case candidate := <-svc.AutoEnrollQueue():
		assert.Equal(t, snap.ProfileID, candidate.ProfileID.ProfileID)
	default:
		t.Fatal("expected auto-enroll candidate to be queued")
	}
}

func TestVerifyImageUnsuccessfulExtractionIsNoMatch(t *testing.T) {
	svc := New(fakePolicy{}, fakeSnapshots{}, fakeExtractor{result: domain.ExtractResult{Success: false}}, 0)
	result, err := svc.VerifyImage(context.Background(), 1, []byte("jpeg"))
	require.NoError(t, err)
	assert.False(t, result.IsMatch)
}

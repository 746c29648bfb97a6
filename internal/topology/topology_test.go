package topology

import (
	"context"
	"testing"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	cameras []domain.Camera
	edges   []domain.ZoneEdge
}

func (f fakeRepo) ListCameras(ctx context.Context) ([]domain.Camera, error) {
	return f.cameras, nil
}

func (f fakeRepo) ListZoneEdges(ctx context.Context) ([]domain.ZoneEdge, error) {
	return f.edges, nil
}

func zoneID(id int64) *int64 { return &id }

func TestLoadFromDatabaseBuildsZoneEdgeCameraPairs(t *testing.T) {
	repo := fakeRepo{
		cameras: []domain.Camera{
			{ID: 1, ZoneID: zoneID(10)},
			{ID: 2, ZoneID: zoneID(20)},
		},
		edges: []domain.ZoneEdge{{From: 10, To: 20, TravelSeconds: 45}},
	}
	svc := New(repo, false)
	require.NoError(t, svc.LoadFromDatabase(context.Background()))

	seconds, ok := svc.TravelSeconds(1, 2)
	assert.True(t, ok)
	assert.Equal(t, 45, seconds)
}

func TestSameZoneIsNeighborLinksCamerasInSameZone(t *testing.T) {
	repo := fakeRepo{
		cameras: []domain.Camera{
			{ID: 1, ZoneID: zoneID(10)},
			{ID: 2, ZoneID: zoneID(10)},
		},
	}
	svc := New(repo, true)
	require.NoError(t, svc.LoadFromDatabase(context.Background()))

	assert.True(t, svc.AreNeighbors(1, 2))
}

func TestSameZoneDisabledDoesNotCreateImplicitEdges(t *testing.T) {
	repo := fakeRepo{
		cameras: []domain.Camera{
			{ID: 1, ZoneID: zoneID(10)},
			{ID: 2, ZoneID: zoneID(10)},
		},
	}
	svc := New(repo, false)
	require.NoError(t, svc.LoadFromDatabase(context.Background()))

	assert.False(t, svc.AreNeighbors(1, 2))
}

func TestTravelSecondsMissingEdgeReturnsFalse(t *testing.T) {
	svc := New(fakeRepo{}, false)
	require.NoError(t, svc.LoadFromDatabase(context.Background()))

	_, ok := svc.TravelSeconds(1, 2)
	assert.False(t, ok)
}

func TestZoneOfReturnsAssignedZone(t *testing.T) {
	repo := fakeRepo{cameras: []domain.Camera{{ID: 1, ZoneID: zoneID(99)}}}
	svc := New(repo, false)
	require.NoError(t, svc.LoadFromDatabase(context.Background()))

	zone, ok := svc.ZoneOf(1)
	assert.True(t, ok)
	assert.Equal(t, int64(99), zone)
}

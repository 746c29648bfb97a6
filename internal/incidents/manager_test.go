package incidents

import (
	"context"
	"testing"
	"time"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byDedupe    map[string]*domain.Incident
	byIdem      map[string]*domain.Incident
	inserted    []*domain.Incident
	nextID      int64
	transitions []domain.IncidentStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byDedupe: map[string]*domain.Incident{}, byIdem: map[string]*domain.Incident{}}
}

func (f *fakeRepo) FindOpenByDedupeKey(ctx context.Context, dedupeKey string) (*domain.Incident, error) {
	return f.byDedupe[dedupeKey], nil
}

func (f *fakeRepo) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Incident, error) {
	if key == "" {
		return nil, nil
	}
	return f.byIdem[key], nil
}

func (f *fakeRepo) InsertIncident(ctx context.Context, inc *domain.Incident) error {
	f.nextID++
	inc.ID = f.nextID
	f.inserted = append(f.inserted, inc)
	f.byDedupe[inc.DedupeKey] = inc
	if inc.IdempotencyKey != "" {
		f.byIdem[inc.IdempotencyKey] = inc
	}
	return nil
}

func (f *fakeRepo) UpdateIncidentStatus(ctx context.Context, id int64, status domain.IncidentStatus, resolvedAt *time.Time) error {
	f.transitions = append(f.transitions, status)
	return nil
}

func TestCreateAssignsSeverityFromTable(t *testing.T) {
	repo := newFakeRepo()
	mgr := New(repo, nil, nil)

	inc, err := mgr.Create(context.Background(), CreateRequest{
		Type:       "unauthorized_access",
		Source:     domain.SourceCamera,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, inc.Severity)
	assert.Equal(t, domain.StatusOpen, inc.Status)
}

func TestCreateRejectsDuplicateDedupeKey(t *testing.T) {
	repo := newFakeRepo()
	mgr := New(repo, nil, nil)
	now := time.Now()

	first, err := mgr.Create(context.Background(), CreateRequest{Type: "loitering", Source: domain.SourceCamera, Location: "lobby", OccurredAt: now})
	require.NoError(t, err)

	second, err := mgr.Create(context.Background(), CreateRequest{Type: "loitering", Source: domain.SourceCamera, Location: "lobby", OccurredAt: now})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.inserted, 1)
}

func TestCreateReplaysIdempotencyKey(t *testing.T) {
	repo := newFakeRepo()
	mgr := New(repo, nil, nil)

	first, err := mgr.Create(context.Background(), CreateRequest{Type: "tailgating", Source: domain.SourceSystem, IdempotencyKey: "req-1", OccurredAt: time.Now()})
	require.NoError(t, err)

	second, err := mgr.Create(context.Background(), CreateRequest{Type: "tailgating", Source: domain.SourceSystem, IdempotencyKey: "req-1", OccurredAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.inserted, 1)
}

func TestTransitionRejectsBackwardMove(t *testing.T) {
	repo := newFakeRepo()
	mgr := New(repo, nil, nil)
	inc := domain.Incident{ID: 1, Status: domain.StatusResolved}

	err := mgr.Transition(context.Background(), inc, domain.StatusOpen)
	assert.Error(t, err)
}

func TestTransitionAllowsForwardMove(t *testing.T) {
	repo := newFakeRepo()
	mgr := New(repo, nil, nil)
	inc := domain.Incident{ID: 1, Status: domain.StatusOpen}

	err := mgr.Transition(context.Background(), inc, domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, []domain.IncidentStatus{domain.StatusInProgress}, repo.transitions)
}

func TestInitialStatusOperatorWithAssigneeIsAssigned(t *testing.T) {
	assigneeID := "operator-1"
	status := initialStatus(domain.SourceOperator, assigneeID != "")
	assert.Equal(t, domain.StatusAssigned, status)
}

func TestInitialStatusAutomatedSourceIsOpen(t *testing.T) {
	status := initialStatus(domain.SourceCamera, false)
	assert.Equal(t, domain.StatusOpen, status)
}

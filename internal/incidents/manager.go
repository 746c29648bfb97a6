// Package incidents turns raw detections/operator reports into
// deduplicated, lifecycle-tracked incidents.
package incidents

import (
	"context"
	"fmt"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/metrics"
)

const idempotencyCacheSize = 8192

// dedupeBucket is the truncation window buildDedupeKey uses to collapse
// near-simultaneous duplicate detections into one incident.
const dedupeBucket = 60 * time.Second

// Repository is the persistence dependency.
type Repository interface {
	FindOpenByDedupeKey(ctx context.Context, dedupeKey string) (*domain.Incident, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Incident, error)
	InsertIncident(ctx context.Context, inc *domain.Incident) error
	UpdateIncidentStatus(ctx context.Context, id int64, status domain.IncidentStatus, resolvedAt *time.Time) error
}

// Publisher emits incident lifecycle events; implemented by internal/events.
type Publisher interface {
	PublishIncidentCreated(inc domain.Incident)
	PublishIncidentTransitioned(inc domain.Incident, from domain.IncidentStatus)
}

// SeverityTable maps incident type to severity; populated from config with
// a conservative built-in default.
type SeverityTable map[string]domain.IncidentSeverity

func DefaultSeverityTable() SeverityTable {
	return SeverityTable{
		"unauthorized_access": domain.SeverityCritical,
		"loitering":           domain.SeverityMedium,
		"tailgating":          domain.SeverityHigh,
		"camera_offline":      domain.SeverityLow,
		"unknown_face":        domain.SeverityMedium,
	}
}

// Manager implements incident creation and lifecycle transitions.
type Manager struct {
	repo      Repository
	publisher Publisher
	severity  SeverityTable

	// idempotencyCache serves replay directly for an incident this process
	// created, skipping the repository round trip. A miss falls back to the
	// repository, which remains the authoritative source of truth across
	// process restarts and other instances.
	idempotencyCache *lru.Cache[string, domain.Incident]
}

func New(repo Repository, publisher Publisher, severity SeverityTable) *Manager {
	cache, _ := lru.New[string, domain.Incident](idempotencyCacheSize)
	if severity == nil {
		severity = DefaultSeverityTable()
	}
	return &Manager{repo: repo, publisher: publisher, severity: severity, idempotencyCache: cache}
}

// resolveSeverity maps an incident type to severity using the configured
// table, defaulting to Medium for unrecognized types.
func (m *Manager) resolveSeverity(incidentType string) domain.IncidentSeverity {
	if sev, ok := m.severity[incidentType]; ok {
		return sev
	}
	return domain.SeverityMedium
}

// initialStatus is Open for automated sources, Assigned when an operator
// originates the incident with an assignee already known.
func initialStatus(source domain.IncidentSource, hasAssignee bool) domain.IncidentStatus {
	if source == domain.SourceOperator && hasAssignee {
		return domain.StatusAssigned
	}
	return domain.StatusOpen
}

// buildDedupeKey produces a deterministic string bucketed to a 60s window
// so near-simultaneous duplicate detections collapse to one incident.
func buildDedupeKey(incidentType string, source domain.IncidentSource, operatorID, location string, occurredAt time.Time) string {
	bucket := occurredAt.Truncate(dedupeBucket).Unix()
	return fmt.Sprintf("%s|%s|%s|%s|%d", incidentType, source, operatorID, location, bucket)
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Title          string
	Description    string
	Type           string
	Source         domain.IncidentSource
	OperatorID     *string
	Location       string
	AssigneeID     *string
	IdempotencyKey string
	OccurredAt     time.Time
}

// Create builds and persists a new incident, honoring dedupe-key rejection
// and idempotency-key replay.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*domain.Incident, error) {
	if req.IdempotencyKey != "" {
		if existing, err := m.replayIdempotent(ctx, req.IdempotencyKey); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}
	}

	operatorID := ""
	if req.OperatorID != nil {
		operatorID = *req.OperatorID
	}
	dedupeKey := buildDedupeKey(req.Type, req.Source, operatorID, req.Location, req.OccurredAt)

	if open, err := m.repo.FindOpenByDedupeKey(ctx, dedupeKey); err != nil {
		return nil, fmt.Errorf("check dedupe key: %w", err)
	} else if open != nil {
		metrics.IncidentDedupeRejectionsTotal.Inc()
		return open, nil
	}

	severity := m.resolveSeverity(req.Type)
	inc := &domain.Incident{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Source:         req.Source,
		Severity:       severity,
		Status:         initialStatus(req.Source, req.AssigneeID != nil),
		Location:       req.Location,
		DedupeKey:      dedupeKey,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      req.OccurredAt,
	}

	if err := m.repo.InsertIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("insert incident: %w", err)
	}

	if req.IdempotencyKey != "" {
		m.idempotencyCache.Add(req.IdempotencyKey, *inc)
	}

	metrics.IncidentsTotal.WithLabelValues(string(severity)).Inc()
	if m.publisher != nil {
		m.publisher.PublishIncidentCreated(*inc)
	}
	return inc, nil
}

// replayIdempotent consults the in-process LRU first — a repeat request for
// an incident this process just created is served without touching
// Postgres — and falls back to the repository on a miss.
func (m *Manager) replayIdempotent(ctx context.Context, key string) (*domain.Incident, error) {
	if inc, ok := m.idempotencyCache.Get(key); ok {
		cached := inc
		return &cached, nil
	}

	existing, err := m.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	if existing != nil {
		m.idempotencyCache.Add(key, *existing)
	}
	return existing, nil
}

// Transition moves an incident forward in its lifecycle. Backward or
// same-state transitions are rejected.
func (m *Manager) Transition(ctx context.Context, inc domain.Incident, to domain.IncidentStatus) error {
	if !domain.CanTransition(inc.Status, to) {
		return fmt.Errorf("invalid transition from %s to %s", inc.Status, to)
	}

	var resolvedAt *time.Time
	if to == domain.StatusResolved {
		now := time.Now()
		resolvedAt = &now
	}

	if err := m.repo.UpdateIncidentStatus(ctx, inc.ID, to, resolvedAt); err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}

	from := inc.Status
	inc.Status = to
	if resolvedAt != nil {
		inc.ResolvedAt = resolvedAt
	}
	if m.publisher != nil {
		m.publisher.PublishIncidentTransitioned(inc, from)
	}
	log.Printf("[incidents] incident %d transitioned %s -> %s", inc.ID, from, to)
	return nil
}

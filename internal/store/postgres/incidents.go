package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
)

// FindOpenByDedupeKey returns the non-Closed incident with the given dedupe
// key, if any.
func (s *Store) FindOpenByDedupeKey(ctx context.Context, dedupeKey string) (*domain.Incident, error) {
	const query = `
		SELECT id, title, description, type, source, severity, status,
		       operator_id, location, assignee_id, dedupe_key, idempotency_key,
		       created_at, resolved_at
		FROM incidents
		WHERE dedupe_key = $1 AND status <> 'closed'
		LIMIT 1`
	return s.scanIncidentRow(s.DB.QueryRowContext(ctx, query, dedupeKey))
}

// FindByIdempotencyKey returns a previously created incident for replay.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Incident, error) {
	if key == "" {
		return nil, nil
	}
	const query = `
		SELECT id, title, description, type, source, severity, status,
		       operator_id, location, assignee_id, dedupe_key, idempotency_key,
		       created_at, resolved_at
		FROM incidents
		WHERE idempotency_key = $1
		LIMIT 1`
	return s.scanIncidentRow(s.DB.QueryRowContext(ctx, query, key))
}

func (s *Store) scanIncidentRow(row *sql.Row) (*domain.Incident, error) {
	var (
		inc        domain.Incident
		source     string
		severity   string
		status     string
		operatorID uuid.NullUUID
		assigneeID uuid.NullUUID
		idemKey    sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &inc.Type, &source, &severity, &status,
		&operatorID, &inc.Location, &assigneeID, &inc.DedupeKey, &idemKey, &inc.CreatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	inc.Source = domain.IncidentSource(source)
	inc.Severity = domain.IncidentSeverity(severity)
	inc.Status = domain.IncidentStatus(status)
	if operatorID.Valid {
		inc.OperatorID = &operatorID.UUID
	}
	if assigneeID.Valid {
		inc.AssigneeID = &assigneeID.UUID
	}
	if idemKey.Valid {
		inc.IdempotencyKey = idemKey.String
	}
	if resolvedAt.Valid {
		inc.ResolvedAt = &resolvedAt.Time
	}
	return &inc, nil
}

// InsertIncident creates a new incident row and fills in the DB-assigned id.
func (s *Store) InsertIncident(ctx context.Context, inc *domain.Incident) error {
	const query = `
		INSERT INTO incidents (title, description, type, source, severity, status,
		                        operator_id, location, assignee_id, dedupe_key, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := s.DB.QueryRowContext(ctx, query, inc.Title, inc.Description, inc.Type, inc.Source, inc.Severity,
		inc.Status, inc.OperatorID, inc.Location, inc.AssigneeID, inc.DedupeKey, nullableString(inc.IdempotencyKey), inc.CreatedAt).
		Scan(&inc.ID)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// UpdateIncidentStatus moves an incident to a new status, stamping
// ResolvedAt when the caller supplies one (typically on transition into
// Resolved).
func (s *Store) UpdateIncidentStatus(ctx context.Context, id int64, status domain.IncidentStatus, resolvedAt *time.Time) error {
	const query = `UPDATE incidents SET status = $2, resolved_at = COALESCE($3, resolved_at) WHERE id = $1`
	var rt any
	if resolvedAt != nil {
		rt = *resolvedAt
	}
	_, err := s.DB.ExecContext(ctx, query, id, status, rt)
	if err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

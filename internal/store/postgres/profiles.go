package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/embedding"
)

// ListProfiles satisfies profiles.Repository. It loads every profile and
// its embeddings in one round trip via a join, then regroups rows into
// profiles in-process — cheaper than N+1 queries and, more importantly,
// gives the caller either a complete result or an error, never a partial
// list (the refresher treats any error here as a failed refresh).
func (s *Store) ListProfiles(ctx context.Context) ([]domain.FaceProfile, error) {
	const query = `
		SELECT p.id, p.user_id, p.description, p.is_primary, p.created_at,
		       e.id, e.vector, e.created_at
		FROM face_profiles p
		LEFT JOIN face_embeddings e ON e.profile_id = p.id
		ORDER BY p.created_at ASC, p.id ASC, e.created_at ASC`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	order := make([]uuid.UUID, 0, 64)
	byID := make(map[uuid.UUID]*domain.FaceProfile, 64)

	for rows.Next() {
		var (
			profileID  uuid.UUID
			userID     uuid.UUID
			desc       string
			isPrimary  bool
			createdAt  time.Time
			embID      uuid.NullUUID
			embBytes   []byte
			embCreated sql.NullTime
		)
		if err := rows.Scan(&profileID, &userID, &desc, &isPrimary, &createdAt, &embID, &embBytes, &embCreated); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}

		p, ok := byID[profileID]
		if !ok {
			p = &domain.FaceProfile{
				ID:          profileID,
				UserID:      userID,
				Description: desc,
				IsPrimary:   isPrimary,
				CreatedAt:   createdAt,
			}
			byID[profileID] = p
			order = append(order, profileID)
		}

		if embID.Valid {
			p.Embeddings = append(p.Embeddings, domain.FaceEmbedding{
				ID:        embID.UUID,
				ProfileID: profileID,
				Vector:    embedding.ToFloats(embBytes),
				CreatedAt: embCreated.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}

	out := make([]domain.FaceProfile, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// AppendEmbedding persists a new embedding onto an existing profile. Used by
// auto-enrollment.
func (s *Store) AppendEmbedding(ctx context.Context, profileID uuid.UUID, vector []float32) error {
	const query = `INSERT INTO face_embeddings (id, profile_id, vector, created_at) VALUES ($1, $2, $3, now())`
	_, err := s.DB.ExecContext(ctx, query, uuid.New(), profileID, embedding.ToBytes(vector))
	if err != nil {
		return fmt.Errorf("append embedding: %w", err)
	}
	return nil
}

// CountEmbeddings returns how many embeddings a profile currently has.
func (s *Store) CountEmbeddings(ctx context.Context, profileID uuid.UUID) (int, error) {
	const query = `SELECT count(*) FROM face_embeddings WHERE profile_id = $1`
	var n int
	if err := s.DB.QueryRowContext(ctx, query, profileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// GetLastAutoEnrollAt returns the last time auto-enrollment succeeded for a
// user, or the zero time if it never has.
func (s *Store) GetLastAutoEnrollAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	const query = `SELECT last_auto_enroll_at FROM user_auto_enroll_state WHERE user_id = $1`
	var t time.Time
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&t)
	if err != nil {
		return time.Time{}, nil //nolint:nilerr // absent row simply means "never enrolled"
	}
	return t, nil
}

// MarkAutoEnrolled upserts the per-user auto-enroll cooldown timestamp.
func (s *Store) MarkAutoEnrolled(ctx context.Context, userID uuid.UUID) error {
	const query = `
		INSERT INTO user_auto_enroll_state (user_id, last_auto_enroll_at)
		VALUES ($1, now())
		ON CONFLICT (user_id) DO UPDATE SET last_auto_enroll_at = now()`
	_, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("mark auto enrolled: %w", err)
	}
	return nil
}

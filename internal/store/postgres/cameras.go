package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentryvms/facecore/internal/domain"
)

// GetCamera loads one camera by id. Returns (nil, nil) if not found so
// callers (the policy resolver) can treat "unknown camera" as a distinct,
// non-error case.
func (s *Store) GetCamera(ctx context.Context, id int64) (*domain.Camera, error) {
	const query = `
		SELECT id, name, stream_url, is_active, capabilities, mode, threshold_override, zone_id
		FROM cameras WHERE id = $1`

	var (
		c            domain.Camera
		mode         string
		thresholdOv  sql.NullFloat64
		zoneID       sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.StreamURL, &c.IsActive, &c.Capabilities, &mode, &thresholdOv, &zoneID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get camera %d: %w", id, err)
	}
	c.Mode = domain.RecognitionMode(mode)
	if thresholdOv.Valid {
		c.ThresholdOverride = &thresholdOv.Float64
	}
	if zoneID.Valid {
		c.ZoneID = &zoneID.Int64
	}
	return &c, nil
}

// ListCameras returns every registered camera, used by TopologyService to
// rebuild its zone map.
func (s *Store) ListCameras(ctx context.Context) ([]domain.Camera, error) {
	const query = `SELECT id, name, stream_url, is_active, capabilities, mode, threshold_override, zone_id FROM cameras`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var out []domain.Camera
	for rows.Next() {
		var (
			c           domain.Camera
			mode        string
			thresholdOv sql.NullFloat64
			zoneID      sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.StreamURL, &c.IsActive, &c.Capabilities, &mode, &thresholdOv, &zoneID); err != nil {
			return nil, fmt.Errorf("scan camera row: %w", err)
		}
		c.Mode = domain.RecognitionMode(mode)
		if thresholdOv.Valid {
			c.ThresholdOverride = &thresholdOv.Float64
		}
		if zoneID.Valid {
			c.ZoneID = &zoneID.Int64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

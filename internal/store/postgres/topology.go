package postgres

import (
	"context"
	"fmt"

	"github.com/sentryvms/facecore/internal/domain"
)

// ListZoneEdges returns the configured travel-time adjacency entries, used
// by TopologyService alongside the camera->zone map it builds from
// ListCameras.
func (s *Store) ListZoneEdges(ctx context.Context) ([]domain.ZoneEdge, error) {
	const query = `SELECT from_zone_id, to_zone_id, travel_seconds FROM zone_edges`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list zone edges: %w", err)
	}
	defer rows.Close()

	var out []domain.ZoneEdge
	for rows.Next() {
		var e domain.ZoneEdge
		if err := rows.Scan(&e.From, &e.To, &e.TravelSeconds); err != nil {
			return nil, fmt.Errorf("scan zone edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

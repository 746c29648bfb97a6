// Package topology maintains the camera-to-zone map and the zone adjacency
// graph used to reason about travel time between cameras.
package topology

import (
	"context"
	"fmt"
	"sync"

	"github.com/sentryvms/facecore/internal/domain"
)

// Repository is the persistence dependency.
type Repository interface {
	ListCameras(ctx context.Context) ([]domain.Camera, error)
	ListZoneEdges(ctx context.Context) ([]domain.ZoneEdge, error)
}

type edgeKey struct {
	from int64
	to   int64
}

// snapshot is the immutable graph readers see; LoadFromDatabase replaces it
// wholesale under the lock so readers never observe a partially-built graph.
type snapshot struct {
	cameraZone map[int64]int64
	edges      map[edgeKey]int
}

// Service answers neighbor/travel-time queries. Readers share a read lock
// for each lookup; LoadFromDatabase builds the new graph outside the lock
// and holds the write lock only to swap it in.
type Service struct {
	repo               Repository
	sameZoneIsNeighbor bool

	mu   sync.RWMutex
	snap snapshot
}

func New(repo Repository, sameZoneIsNeighbor bool) *Service {
	return &Service{
		repo:               repo,
		sameZoneIsNeighbor: sameZoneIsNeighbor,
		snap:               snapshot{cameraZone: map[int64]int64{}, edges: map[edgeKey]int{}},
	}
}

// LoadFromDatabase rebuilds the snapshot from the repository and atomically
// replaces the held graph.
func (s *Service) LoadFromDatabase(ctx context.Context) error {
	cameras, err := s.repo.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}
	dbEdges, err := s.repo.ListZoneEdges(ctx)
	if err != nil {
		return fmt.Errorf("list zone edges: %w", err)
	}

	cameraZone := make(map[int64]int64, len(cameras))
	zoneCameras := map[int64][]int64{}
	for _, c := range cameras {
		if c.ZoneID == nil {
			continue
		}
		cameraZone[c.ID] = *c.ZoneID
		zoneCameras[*c.ZoneID] = append(zoneCameras[*c.ZoneID], c.ID)
	}

	// dbEdges is zone-to-zone; promote each to every camera-pair spanning
	// the two zones, since TravelSeconds is queried by camera id.
	edges := map[edgeKey]int{}
	for _, e := range dbEdges {
		for _, a := range zoneCameras[e.From] {
			for _, b := range zoneCameras[e.To] {
				edges[edgeKey{from: a, to: b}] = e.TravelSeconds
			}
		}
	}

	if s.sameZoneIsNeighbor {
		for zoneID := range zoneCameras {
			// same-zone edges merge with configured adjacency by set union;
			// a configured weight for the pair always wins.
			for _, a := range zoneCameras[zoneID] {
				for _, b := range zoneCameras[zoneID] {
					if a == b {
						continue
					}
					key := edgeKey{from: a, to: b}
					if _, exists := edges[key]; !exists {
						edges[key] = 0
					}
				}
			}
		}
	}

	s.mu.Lock()
	s.snap = snapshot{cameraZone: cameraZone, edges: edges}
	s.mu.Unlock()
	return nil
}

// TravelSeconds returns the configured weight between two cameras, or
// (0, false) if there is no edge.
func (s *Service) TravelSeconds(from, to int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seconds, ok := s.snap.edges[edgeKey{from: from, to: to}]
	return seconds, ok
}

// ZoneOf returns the zone a camera belongs to, if assigned.
func (s *Service) ZoneOf(cameraID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zoneID, ok := s.snap.cameraZone[cameraID]
	return zoneID, ok
}

// AreNeighbors reports whether two cameras have a direct edge between them.
func (s *Service) AreNeighbors(a, b int64) bool {
	_, ok := s.TravelSeconds(a, b)
	return ok
}

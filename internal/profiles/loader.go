// Package profiles turns persisted face profiles into the flat snapshot
// projection the matcher reads. It is the sole writer of
// domain.FaceProfileSnapshot values; the matcher and everything downstream of
// it only ever see what this package produces.
package profiles

import (
	"context"
	"fmt"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/embedding"
)

// Repository is the persistence dependency, satisfied by *postgres.Store.
type Repository interface {
	ListProfiles(ctx context.Context) ([]domain.FaceProfile, error)
}

// Loader builds snapshots from the repository. It holds no state of its own;
// the refresher is what caches the result.
type Loader struct {
	repo Repository
}

func New(repo Repository) *Loader {
	return &Loader{repo: repo}
}

// Load returns the current snapshot set or an error. It never returns a
// partial result: any repository failure discards whatever rows were read
// and reports the error, so a caller cannot mistake a half-built list for a
// complete one.
func (l *Loader) Load(ctx context.Context) ([]domain.FaceProfileSnapshot, error) {
	profiles, err := l.repo.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	out := make([]domain.FaceProfileSnapshot, 0, len(profiles))
	for _, p := range profiles {
		vectors := make([][]float32, 0, len(p.Embeddings))
		for _, e := range p.Embeddings {
			vectors = append(vectors, embedding.Normalize(e.Vector))
		}
		out = append(out, domain.FaceProfileSnapshot{
			ProfileID:   p.ID,
			UserID:      p.UserID,
			DisplayName: p.Description,
			IsPrimary:   p.IsPrimary,
			CreatedAt:   p.CreatedAt,
			Embeddings:  vectors,
		})
	}
	return out, nil
}

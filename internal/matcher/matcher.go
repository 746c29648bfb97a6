// Package matcher implements cosine-similarity face matching against the
// current profile snapshot. It never talks to Postgres, Redis or the AI
// service directly; it only reads what internal/snapshot hands it.
package matcher

import (
	"sort"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/embedding"
)

// candidate is one profile's best embedding score against the probe.
type candidate struct {
	snap       domain.FaceProfileSnapshot
	similarity float64
}

// Match finds the best-matching profile for a probe embedding among
// snapshots, applying threshold and deterministic tie-break.
//
// Tie-break order: primary profile wins over non-primary, then earliest
// CreatedAt, then lexically smallest ProfileID — a value-level
// sort.SliceStable with increasingly narrow criteria.
func Match(probe []float32, threshold float64, snapshots []domain.FaceProfileSnapshot) domain.FaceMatchResult {
	probe = embedding.Normalize(probe)

	var candidates []candidate
	for _, snap := range snapshots {
		best := bestSimilarity(probe, snap.Embeddings)
		if best <= 0 {
			continue
		}
		candidates = append(candidates, candidate{snap: snap, similarity: best})
	}

	if len(candidates) == 0 {
		return domain.FaceMatchResult{IsMatch: false}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		c1, c2 := candidates[i], candidates[j]
		if c1.similarity != c2.similarity {
			return c1.similarity > c2.similarity
		}
		if c1.snap.IsPrimary != c2.snap.IsPrimary {
			return c1.snap.IsPrimary
		}
		if !c1.snap.CreatedAt.Equal(c2.snap.CreatedAt) {
			return c1.snap.CreatedAt.Before(c2.snap.CreatedAt)
		}
		return c1.snap.ProfileID.String() < c2.snap.ProfileID.String()
	})

	winner := candidates[0]
	result := domain.FaceMatchResult{
		Similarity: clamp(winner.similarity),
	}
	if winner.similarity >= threshold {
		result.IsMatch = true
		userID := winner.snap.UserID
		profileID := winner.snap.ProfileID
		result.MatchedUserID = &userID
		result.MatchedProfile = &profileID
	}
	return result
}

func bestSimilarity(probe []float32, embeddings [][]float32) float64 {
	var best float64
	for _, e := range embeddings {
		if sim := embedding.Cosine(probe, e); sim > best {
			best = sim
		}
	}
	return best
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

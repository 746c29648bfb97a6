// Package autoenroll grows a user's embedding set from high-confidence
// verification matches, subject to a cooldown, a per-profile embedding cap,
// and a diversity gate so near-duplicate observations are rejected.
package autoenroll

import (
	"context"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/embedding"
	"github.com/sentryvms/facecore/internal/metrics"
)

const cooldownCacheSize = 4096

// Repository is the persistence dependency.
type Repository interface {
	AppendEmbedding(ctx context.Context, profileID uuid.UUID, vector []float32) error
	CountEmbeddings(ctx context.Context, profileID uuid.UUID) (int, error)
	GetLastAutoEnrollAt(ctx context.Context, userID uuid.UUID) (time.Time, error)
	MarkAutoEnrolled(ctx context.Context, userID uuid.UUID) error
}

// SnapshotRefresher is asked to re-load snapshots once a new embedding is
// durably persisted. Auto-enrolled embeddings become visible to the
// matcher only on the refresher's next cycle, never by mutating the live
// snapshot directly.
type SnapshotRefresher interface {
	RequestRefresh()
}

// Config holds the auto-enrollment tunables.
type Config struct {
	MinInterval             time.Duration
	MaxEmbeddingsPerProfile int
	MinVariationDistance    float64
}

func DefaultConfig() Config {
	return Config{
		MinInterval:             10 * time.Minute,
		MaxEmbeddingsPerProfile: domain.MaxEmbeddingsPerProfileDefault,
		MinVariationDistance:    0.08,
	}
}

// Service implements the auto-enrollment decision and write path.
type Service struct {
	repo     Repository
	refresh  SnapshotRefresher
	cfg      Config
	cooldown *lru.Cache[uuid.UUID, time.Time]
}

func New(repo Repository, refresh SnapshotRefresher, cfg Config) *Service {
	cache, _ := lru.New[uuid.UUID, time.Time](cooldownCacheSize)
	return &Service{repo: repo, refresh: refresh, cfg: cfg, cooldown: cache}
}

// Consider evaluates one candidate observation. Failures are logged and
// never surfaced to the verification caller.
func (s *Service) Consider(ctx context.Context, userID, profileID uuid.UUID, existing [][]float32, vec []float32) {
	if !s.cooldownElapsed(ctx, userID) {
		metrics.AutoEnrollTotal.WithLabelValues("cooldown").Inc()
		return
	}

	count, err := s.repo.CountEmbeddings(ctx, profileID)
	if err != nil {
		log.Printf("[autoenroll] count embeddings for profile %s: %v", profileID, err)
		metrics.AutoEnrollTotal.WithLabelValues("error").Inc()
		return
	}
	if count >= s.cfg.MaxEmbeddingsPerProfile {
		metrics.AutoEnrollTotal.WithLabelValues("profile_full").Inc()
		return
	}

	normalized := embedding.Normalize(vec)
	for _, e := range existing {
		distance := 1 - embedding.Cosine(normalized, e)
		if distance < s.cfg.MinVariationDistance {
			metrics.AutoEnrollTotal.WithLabelValues("too_similar").Inc()
			return
		}
	}

	if err := s.repo.AppendEmbedding(ctx, profileID, normalized); err != nil {
		log.Printf("[autoenroll] append embedding for profile %s: %v", profileID, err)
		metrics.AutoEnrollTotal.WithLabelValues("error").Inc()
		return
	}
	if err := s.repo.MarkAutoEnrolled(ctx, userID); err != nil {
		log.Printf("[autoenroll] mark auto-enrolled for user %s: %v", userID, err)
	}
	s.cooldown.Add(userID, time.Now())
	s.refresh.RequestRefresh()
	metrics.AutoEnrollTotal.WithLabelValues("accepted").Inc()
}

// cooldownElapsed checks the in-process LRU first (fast path for the common
// case of a repeatedly-observed user) and falls back to the durable
// per-user timestamp in Postgres, which survives process restarts.
func (s *Service) cooldownElapsed(ctx context.Context, userID uuid.UUID) bool {
	if last, ok := s.cooldown.Get(userID); ok {
		return time.Since(last) >= s.cfg.MinInterval
	}
	last, err := s.repo.GetLastAutoEnrollAt(ctx, userID)
	if err != nil {
		log.Printf("[autoenroll] load last auto-enroll for user %s: %v", userID, err)
		return false
	}
	if last.IsZero() {
		return true
	}
	s.cooldown.Add(userID, last)
	return time.Since(last) >= s.cfg.MinInterval
}

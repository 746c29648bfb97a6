// Package recognition orchestrates a single verification request: resolve
// policy, read the current snapshot, run the matcher, and (on a qualifying
// match) hand the observation to auto-enrollment without blocking the
// caller.
package recognition

import (
	"context"
	"log"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/matcher"
	"github.com/sentryvms/facecore/internal/metrics"
)

// defaultMinEmbeddingLength rejects embeddings too short to be a real face
// vector when the caller does not supply a configured minimum.
const defaultMinEmbeddingLength = 128

// autoEnrollQueueSize bounds the fire-and-forget auto-enroll work queue. A
// full queue drops the observation rather than blocking the caller.
const autoEnrollQueueSize = 256

// PolicyResolver resolves a camera's effective recognition policy.
type PolicyResolver interface {
	Resolve(ctx context.Context, cameraID int64) domain.CameraRecognitionPolicy
}

// SnapshotSource returns the profiles currently available for matching.
type SnapshotSource interface {
	Current() []domain.FaceProfileSnapshot
}

// Extractor turns raw image bytes into a face embedding, used by
// VerifyImage. Implemented by aiclient.Client.
type Extractor interface {
	ExtractEmbedding(ctx context.Context, image []byte) (domain.ExtractResult, error)
}

// AutoEnrollCandidate is handed to the auto-enroll worker after a qualifying
// match.
type AutoEnrollCandidate struct {
	CameraID  int64
	ProfileID domain.FaceProfileSnapshot
	Embedding []float32
}

// Service implements verifyImage/verifyEmbedding.
type Service struct {
	policy             PolicyResolver
	snapshots          SnapshotSource
	extractor          Extractor
	minEmbeddingLength int
	autoQueue          chan AutoEnrollCandidate
}

// New builds a Service. minEmbeddingLength is the configured floor below
// which a probe is rejected outright; a value <= 0 falls back to
// defaultMinEmbeddingLength.
func New(policy PolicyResolver, snapshots SnapshotSource, extractor Extractor, minEmbeddingLength int) *Service {
	if minEmbeddingLength <= 0 {
		minEmbeddingLength = defaultMinEmbeddingLength
	}
	return &Service{
		policy:             policy,
		snapshots:          snapshots,
		extractor:          extractor,
		minEmbeddingLength: minEmbeddingLength,
		autoQueue:          make(chan AutoEnrollCandidate, autoEnrollQueueSize),
	}
}

// VerifyImage extracts an embedding from raw image bytes via the AI service
// and runs it through the same pipeline as VerifyEmbedding.
func (s *Service) VerifyImage(ctx context.Context, cameraID int64, image []byte) (domain.FaceMatchResult, error) {
	extracted, err := s.extractor.ExtractEmbedding(ctx, image)
	if err != nil {
		return domain.FaceMatchResult{}, err
	}
	if !extracted.Success || !extracted.FaceDetected || len(extracted.Faces) == 0 {
		metrics.RecognitionTotal.WithLabelValues("no_match", "no_face_detected").Inc()
		return domain.FaceMatchResult{IsMatch: false}, nil
	}
	return s.VerifyEmbedding(ctx, cameraID, extracted.Faces[0].Embedding), nil
}

// AutoEnrollQueue exposes the read side for the worker that drains it.
func (s *Service) AutoEnrollQueue() <-chan AutoEnrollCandidate {
	return s.autoQueue
}

// VerifyEmbedding runs the full policy -> snapshot -> match pipeline for an
// already-extracted embedding.
func (s *Service) VerifyEmbedding(ctx context.Context, cameraID int64, probe []float32) domain.FaceMatchResult {
	if len(probe) < s.minEmbeddingLength {
		metrics.RecognitionTotal.WithLabelValues("no_match", "short_embedding").Inc()
		return domain.FaceMatchResult{IsMatch: false}
	}

	pol := s.policy.Resolve(ctx, cameraID)
	if pol.Mode == domain.ModeDisabled {
		metrics.RecognitionTotal.WithLabelValues("no_match", "mode_disabled").Inc()
		return domain.FaceMatchResult{IsMatch: false}
	}

	snaps := s.snapshots.Current()
	if len(snaps) == 0 {
		metrics.RecognitionTotal.WithLabelValues("no_match", "empty_snapshot").Inc()
		return domain.FaceMatchResult{IsMatch: false}
	}

	result := matcher.Match(probe, pol.Threshold, snaps)

	if pol.Mode == domain.ModeObserveOnly {
		metrics.RecognitionTotal.WithLabelValues("observe_only", string(domain.BucketFor(result.Similarity))).Inc()
		return domain.FaceMatchResult{IsMatch: false, Similarity: result.Similarity}
	}

	if result.IsMatch {
		metrics.RecognitionTotal.WithLabelValues("match", string(domain.BucketFor(result.Similarity))).Inc()
		s.scheduleAutoEnroll(cameraID, result, probe, snaps)
	} else {
		metrics.RecognitionTotal.WithLabelValues("no_match", string(domain.BucketFor(result.Similarity))).Inc()
	}

	return result
}

func (s *Service) scheduleAutoEnroll(cameraID int64, result domain.FaceMatchResult, probe []float32, snaps []domain.FaceProfileSnapshot) {
	if result.MatchedProfile == nil {
		return
	}
	var owner domain.FaceProfileSnapshot
	for _, snap := range snaps {
		if snap.ProfileID == *result.MatchedProfile {
			owner = snap
			break
		}
	}

	select {
	case s.autoQueue <- AutoEnrollCandidate{CameraID: cameraID, ProfileID: owner, Embedding: probe}:
	default:
		log.Printf("[recognition] auto-enroll queue full, dropping observation for profile %s", owner.ProfileID)
		metrics.AutoEnrollQueueDropsTotal.Inc()
	}
}

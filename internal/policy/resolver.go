// Package policy resolves the effective recognition policy for a camera:
// mode, threshold and whether face recognition is enabled at all.
package policy

import (
	"context"

	"github.com/sentryvms/facecore/internal/domain"
)

const (
	strictAdjustment  = 0.05
	relaxedAdjustment = 0.05
)

// CameraSource loads one camera, returning (nil, nil) for an unknown id.
type CameraSource interface {
	GetCamera(ctx context.Context, id int64) (*domain.Camera, error)
}

// Resolver computes CameraRecognitionPolicy from a camera's stored
// configuration plus a deployment-wide default threshold.
type Resolver struct {
	cameras          CameraSource
	defaultThreshold float64
}

func New(cameras CameraSource, defaultThreshold float64) *Resolver {
	return &Resolver{cameras: cameras, defaultThreshold: defaultThreshold}
}

// Resolve looks up a camera's recognition policy. A camera id that does not
// resolve to a known row (not found, or the lookup itself errors) resolves
// to the safe default: Normal mode at the deployment default threshold.
func (r *Resolver) Resolve(ctx context.Context, cameraID int64) domain.CameraRecognitionPolicy {
	camera, err := r.cameras.GetCamera(ctx, cameraID)
	if err != nil || camera == nil {
		return domain.CameraRecognitionPolicy{
			CameraID:  cameraID,
			Mode:      domain.ModeNormal,
			Threshold: r.defaultThreshold,
		}
	}

	threshold := r.defaultThreshold
	if camera.ThresholdOverride != nil {
		threshold = *camera.ThresholdOverride
	}

	mode := camera.Mode
	if !camera.Capabilities.Has(domain.CapabilityFace) {
		mode = domain.ModeDisabled
	}

	switch mode {
	case domain.ModeStrict:
		threshold = clamp01(threshold + strictAdjustment)
	case domain.ModeRelaxed:
		threshold = clamp01(threshold - relaxedAdjustment)
	}

	return domain.CameraRecognitionPolicy{
		CameraID:  cameraID,
		Mode:      mode,
		Threshold: threshold,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < 0:
		return 0
	default:
		return v
	}
}

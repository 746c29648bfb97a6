// Package domain holds the shared value types used across the recognition
// runtime: face profiles and embeddings, cameras, incidents, and the
// zone/topology graph. Ownership is expressed as a parent struct holding a
// slice of owned children; snapshot projections are flat value objects with
// no back-references, so the profile<->embedding<->user graph never cycles.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AICapability is a bitmask of the detection capabilities a camera's AI
// pipeline is configured for.
type AICapability uint8

const (
	CapabilityFace AICapability = 1 << iota
	CapabilityObject
	CapabilityBehavior
)

func (c AICapability) Has(bit AICapability) bool { return c&bit != 0 }

// RecognitionMode is the per-camera policy mode.
type RecognitionMode string

const (
	ModeDisabled    RecognitionMode = "disabled"
	ModeObserveOnly RecognitionMode = "observe_only"
	ModeNormal      RecognitionMode = "normal"
	ModeStrict      RecognitionMode = "strict"
	ModeRelaxed     RecognitionMode = "relaxed"
)

// FaceEmbedding is a dense, L2-normalizable float vector in decoded form.
// It is persisted as packed little-endian float32 bytes (embedding.ToBytes).
type FaceEmbedding struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Vector    []float32
	CreatedAt time.Time
}

// FaceProfile is owned by exactly one user and holds one or more embeddings.
// Invariant: at most one profile per user has IsPrimary == true.
type FaceProfile struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Description string
	IsPrimary   bool
	CreatedAt   time.Time
	Embeddings  []FaceEmbedding
}

// MaxEmbeddingsPerProfileDefault is the fallback cap when config omits one.
const MaxEmbeddingsPerProfileDefault = 10

// FaceProfileSnapshot is the immutable, flat projection used for matching.
// It carries no reference back to FaceProfile or User — only the fields
// matching needs.
type FaceProfileSnapshot struct {
	ProfileID   uuid.UUID
	UserID      uuid.UUID
	DisplayName string
	IsPrimary   bool
	CreatedAt   time.Time
	Embeddings  [][]float32
}

// Camera is a registered RTSP source and its recognition policy.
type Camera struct {
	ID                 int64
	Name               string
	StreamURL          string
	IsActive           bool
	Capabilities       AICapability
	Mode               RecognitionMode
	ThresholdOverride  *float64
	ZoneID             *int64
}

// CameraRecognitionPolicy is the ephemeral, resolved policy for one camera.
type CameraRecognitionPolicy struct {
	CameraID  int64
	Mode      RecognitionMode
	Threshold float64
}

// FaceMatchResult is the outcome of matching a probe embedding.
type FaceMatchResult struct {
	IsMatch        bool
	MatchedUserID  *uuid.UUID
	MatchedProfile *uuid.UUID
	Similarity     float64
}

// ConfidenceBucket classifies a similarity score for observability only.
type ConfidenceBucket string

const (
	ConfidenceHigh   ConfidenceBucket = "high"
	ConfidenceMedium ConfidenceBucket = "medium"
	ConfidenceLow    ConfidenceBucket = "low"
	ConfidenceNone   ConfidenceBucket = "none"
)

// BucketFor maps a similarity score to a coarse confidence bucket.
func BucketFor(similarity float64) ConfidenceBucket {
	switch {
	case similarity >= 0.85:
		return ConfidenceHigh
	case similarity >= 0.65:
		return ConfidenceMedium
	case similarity > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// IncidentSource identifies what raised an incident.
type IncidentSource string

const (
	SourceCamera   IncidentSource = "camera"
	SourceSensor   IncidentSource = "sensor"
	SourceOperator IncidentSource = "operator"
	SourceSystem   IncidentSource = "system"
)

// IncidentSeverity is the resolved severity of an incident.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// IncidentStatus is a position in the incident lifecycle state machine.
type IncidentStatus string

const (
	StatusOpen       IncidentStatus = "open"
	StatusAssigned   IncidentStatus = "assigned"
	StatusInProgress IncidentStatus = "in_progress"
	StatusResolved   IncidentStatus = "resolved"
	StatusClosed     IncidentStatus = "closed"
)

// statusRank gives the monotonic ordering the state machine enforces.
var statusRank = map[IncidentStatus]int{
	StatusOpen:       0,
	StatusAssigned:   1,
	StatusInProgress: 2,
	StatusResolved:   3,
	StatusClosed:     4,
}

// CanTransition reports whether moving from `from` to `to` is a forward (or
// same-step-skipping) move, never backward.
func CanTransition(from, to IncidentStatus) bool {
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	if !ok1 || !ok2 {
		return false
	}
	return tr > fr
}

// Incident is a deduplicated security event.
type Incident struct {
	ID             int64
	Title          string
	Description    string
	Type           string
	Source         IncidentSource
	Severity       IncidentSeverity
	Status         IncidentStatus
	OperatorID     *uuid.UUID
	Location       string
	AssigneeID     *uuid.UUID
	DedupeKey      string
	IdempotencyKey string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// Zone is a physical area cameras can be assigned to.
type Zone struct {
	ID   int64
	Name string
}

// ZoneEdge is a directed, weighted travel-time edge between two zones.
type ZoneEdge struct {
	From          int64
	To            int64
	TravelSeconds int
}

// DetectedFace is one face observation carried on an AI-service frame.
type DetectedFace struct {
	BBox      BBox
	Quality   FaceQuality
	Embedding []float32
}

type BBox struct{ X, Y, W, H float64 }

type FaceQuality struct {
	Overall    float64
	Sharpness  float64
	Brightness float64
	FacePx     int
}

// Frame is one message received on a camera's AI stream.
type Frame struct {
	CameraID int64
	FrameID  int64
	Faces    []DetectedFace
}

// ExtractResult is the response of a unary embedding-extraction call.
type ExtractResult struct {
	Success      bool
	ErrorCode    string
	ErrorMessage string
	FaceDetected bool
	Faces        []DetectedFace
}

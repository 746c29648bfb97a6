// Package supervisor runs one long-lived worker per active camera: connect
// to the AI stream, feed detected faces into recognition, and reconnect
// with bounded exponential backoff on failure.
package supervisor

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/sentryvms/facecore/internal/aiclient"
	"github.com/sentryvms/facecore/internal/domain"
	"github.com/sentryvms/facecore/internal/metrics"
)

const heartbeatEvery = 100

// Config tunes the reconnect backoff and shutdown behavior. Zero-value
// fields fall back to DefaultConfig's values at New.
type Config struct {
	MaxRetry    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	StopTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetry:    10,
		BaseDelay:   5 * time.Second,
		MaxDelay:    2 * time.Minute,
		StopTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetry == 0 {
		c.MaxRetry = d.MaxRetry
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = d.StopTimeout
	}
	return c
}

// StreamOpener opens the long-lived detection stream for one camera.
// Implemented by *aiclient.Client; tests supply a fake.
type StreamOpener interface {
	OpenCameraStream(ctx context.Context, cameraID int64, streamURL string) (aiclient.StreamConn, error)
}

// Verifier is the subset of recognition.Service the supervisor drives.
type Verifier interface {
	VerifyEmbedding(ctx context.Context, cameraID int64, probe []float32) domain.FaceMatchResult
}

// IncidentNotifier is the externalized hook invoked on a match. It is
// optional; a nil notifier simply skips notification.
type IncidentNotifier interface {
	NotifyMatch(cameraID int64, result domain.FaceMatchResult)
}

// session is the per-camera bookkeeping held in the session table.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor manages one goroutine per active camera: a dedicated,
// long-lived task that reconnects its own stream with backoff, rather than
// sharing a poll scheduler across cameras.
type Supervisor struct {
	ai       StreamOpener
	verifier Verifier
	notifier IncidentNotifier
	cfg      Config

	sessions sync.Map // camera id (int64) -> *session
}

func New(ai StreamOpener, verifier Verifier, notifier IncidentNotifier, cfg Config) *Supervisor {
	return &Supervisor{ai: ai, verifier: verifier, notifier: notifier, cfg: cfg.withDefaults()}
}

// Start registers and launches a camera session. Returns false if a
// session for this camera is already active.
func (s *Supervisor) Start(cameraID int64, streamURL string) bool {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{cancel: cancel, done: make(chan struct{})}

	if _, loaded := s.sessions.LoadOrStore(cameraID, sess); loaded {
		cancel()
		return false
	}

	go s.run(ctx, cameraID, streamURL, sess)
	metrics.SupervisorActiveSessions.Inc()
	return true
}

// Stop cancels and waits for a camera's session to exit, honoring a
// bounded timeout so a wedged worker never blocks the caller forever.
func (s *Supervisor) Stop(cameraID int64) bool {
	value, ok := s.sessions.LoadAndDelete(cameraID)
	if !ok {
		return false
	}
	sess := value.(*session)
	sess.cancel()
	metrics.SupervisorActiveSessions.Dec()

	select {
	case <-sess.done:
	case <-time.After(s.cfg.StopTimeout):
		log.Printf("[supervisor] camera %d did not stop within %s, leaking worker", cameraID, s.cfg.StopTimeout)
	}
	return true
}

// ActiveSessions returns the camera ids with a live session.
func (s *Supervisor) ActiveSessions() []int64 {
	var ids []int64
	s.sessions.Range(func(key, _ any) bool {
		ids = append(ids, key.(int64))
		return true
	})
	return ids
}

// Shutdown cancels every active session and waits for them to exit.
func (s *Supervisor) Shutdown() {
	var ids []int64
	s.sessions.Range(func(key, _ any) bool {
		ids = append(ids, key.(int64))
		return true
	})
	for _, id := range ids {
		s.Stop(id)
	}
}

func (s *Supervisor) run(ctx context.Context, cameraID int64, streamURL string, sess *session) {
	defer close(sess.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		attempt++
		err := s.runStreamOnce(ctx, cameraID, streamURL)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[supervisor] camera %d stream error: %v", cameraID, err)
			metrics.SupervisorReconnectsTotal.WithLabelValues("stream_error").Inc()
		}
		if attempt >= s.cfg.MaxRetry {
			log.Printf("[supervisor] camera %d exhausted retries, disabling until manual restart", cameraID)
			s.sessions.Delete(cameraID)
			metrics.SupervisorActiveSessions.Dec()
			return
		}

		delay := time.Duration(math.Min(float64(s.cfg.BaseDelay)*math.Pow(2, float64(attempt)), float64(s.cfg.MaxDelay)))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) runStreamOnce(ctx context.Context, cameraID int64, streamURL string) error {
	conn, err := s.ai.OpenCameraStream(ctx, cameraID, streamURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	return s.runStreamOnceWithConn(ctx, cameraID, conn)
}

func (s *Supervisor) runStreamOnceWithConn(ctx context.Context, cameraID int64, conn aiclient.StreamConn) error {
	framesSinceFace := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := conn.ReadFrame()
		if err != nil {
			return err
		}

		if len(frame.Faces) == 0 {
			framesSinceFace++
			if framesSinceFace%heartbeatEvery == 0 {
				log.Printf("[supervisor] camera %d heartbeat: %d frames without a face", cameraID, framesSinceFace)
			}
			continue
		}
		framesSinceFace = 0

		for _, face := range frame.Faces {
			result := s.verifier.VerifyEmbedding(ctx, cameraID, face.Embedding)
			if result.IsMatch {
				log.Printf("[supervisor] camera %d frame %d matched profile %s (similarity=%.3f)",
					cameraID, frame.FrameID, result.MatchedProfile, result.Similarity)
				if s.notifier != nil {
					s.notifier.NotifyMatch(cameraID, result)
				}
			}
		}
	}
}

// Package events publishes best-effort lifecycle notifications over NATS.
// A publish failure never errors out to the caller: these are
// observability/integration signals, not the system of record. Failed
// publishes are retried on the caller's goroutine, so a failing publish
// delays the caller by a few hundred milliseconds at most.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sentryvms/facecore/internal/domain"
)

const (
	subjectIncidentCreated      = "facecore.incident.created"
	subjectIncidentTransitioned = "facecore.incident.transitioned"
	subjectSnapshotRefreshed    = "facecore.snapshot.refreshed"

	maxPublishRetries = 2
)

// Publisher wraps a NATS connection and retries a publish with a short
// linear backoff before giving up.
type Publisher struct {
	conn *nats.Conn
}

func New(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

type incidentCreatedEvent struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type incidentTransitionedEvent struct {
	ID   int64  `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

type snapshotRefreshedEvent struct {
	Version    uint64 `json:"version"`
	ProfileCount int  `json:"profileCount"`
}

func (p *Publisher) PublishIncidentCreated(inc domain.Incident) {
	p.publish(subjectIncidentCreated, incidentCreatedEvent{
		ID:        inc.ID,
		Type:      inc.Type,
		Severity:  string(inc.Severity),
		Status:    string(inc.Status),
		CreatedAt: inc.CreatedAt,
	})
}

func (p *Publisher) PublishIncidentTransitioned(inc domain.Incident, from domain.IncidentStatus) {
	p.publish(subjectIncidentTransitioned, incidentTransitionedEvent{
		ID:   inc.ID,
		From: string(from),
		To:   string(inc.Status),
	})
}

func (p *Publisher) PublishSnapshotRefreshed(version uint64, profileCount int) {
	p.publish(subjectSnapshotRefreshed, snapshotRefreshedEvent{Version: version, ProfileCount: profileCount})
}

func (p *Publisher) publish(subject string, payload any) {
	if p.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[events] marshal %s: %v", subject, err)
		return
	}

	var publishErr error
	for i := 0; i <= maxPublishRetries; i++ {
		publishErr = p.conn.Publish(subject, data)
		if publishErr == nil {
			return
		}
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	log.Printf("[events] publish %s failed after retries: %v", subject, publishErr)
}

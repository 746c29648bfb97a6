package events

import (
	"testing"
	"time"

	"github.com/sentryvms/facecore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPublishWithNilConnectionIsNoopAndDoesNotPanic(t *testing.T) {
	p := New(nil)
	assert.NotPanics(t, func() {
		p.PublishIncidentCreated(domain.Incident{ID: 1, Type: "loitering", CreatedAt: time.Now()})
		p.PublishIncidentTransitioned(domain.Incident{ID: 1, Status: domain.StatusAssigned}, domain.StatusOpen)
		p.PublishSnapshotRefreshed(3, 10)
	})
}

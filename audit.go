package tss

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType identifies what the engine did.
type AuditEventType string

const (
	AuditEventKeyGeneration     AuditEventType = "key_generation"
	AuditEventShareRefresh      AuditEventType = "share_refresh"
	AuditEventShareDistribution AuditEventType = "share_distribution"
	AuditEventKeyReconstruction AuditEventType = "key_reconstruction"
)

// AuditEvent is one record of an engine operation. Events never contain
// secret material; shares and reconstructed keys are reported by count and
// key ID only.
type AuditEvent struct {
	EventID    string         `json:"event_id"`
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	KeyID      string         `json:"key_id,omitempty"`
	Curve      string         `json:"curve,omitempty"`
	Threshold  uint32         `json:"threshold,omitempty"`
	ShareCount int            `json:"share_count,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

// AuditEventHandler receives engine lifecycle events. Implementations must
// not block; the engine calls them inline.
type AuditEventHandler interface {
	OnAuditEvent(event *AuditEvent)
}

// NullAuditHandler discards all events.
type NullAuditHandler struct{}

func (NullAuditHandler) OnAuditEvent(event *AuditEvent) {}

func newAuditEvent(eventType AuditEventType) *AuditEvent {
	return &AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   true,
	}
}

func (e *AuditEvent) withError(err error) *AuditEvent {
	if err != nil {
		e.Success = false
		e.Error = err.Error()
	}
	return e
}

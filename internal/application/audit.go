package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// EventPublisher pushes JSON messages onto the audit queue.
// helpers.RabbitPublisher satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// AuditEvent records one successful mutation for the audit worker.
type AuditEvent struct {
	Action   string    `json:"action"`
	EntityID string    `json:"entity_id,omitempty"`
	ActorID  string    `json:"actor_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// publishAudit is best-effort: a broker outage must not fail the
// mutation that already committed.
func publishAudit(ctx context.Context, pub EventPublisher, logger *logrus.Logger, ev AuditEvent) {
	if pub == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := pub.PublishJSON(ctx, ev); err != nil && logger != nil {
		logger.WithError(err).WithField("action", ev.Action).Warn("audit publish failed")
	}
}

// Package outbox carries the eventing contract of the document core: every
// state change and every successful listing is emitted on a typed event bus.
// The core guarantees emission, durable delivery is the subscriber's job.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// EventType identifies what happened.
type EventType string

const (
	DefinitionDeployed    EventType = "definition.deployed"
	DefinitionUndeployed  EventType = "definition.undeployed"
	DocumentCreated       EventType = "document.created"
	DocumentModified      EventType = "document.modified"
	DocumentAssigned      EventType = "document.assigned"
	DocumentUnassigned    EventType = "document.unassigned"
	DocumentStatusChanged EventType = "document.status-changed"
	DocumentsListed       EventType = "documents.listed"
)

// CaseEvent is the payload emitted on the bus.
type CaseEvent struct {
	Type           EventType `json:"type"`
	DefinitionName string    `json:"definitionName,omitempty"`
	DocumentID     string    `json:"documentId,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
	Payload        any       `json:"payload,omitempty"`
}

// Outbox wraps the typed event bus.
type Outbox struct {
	bus    *events.TypedEventBus[CaseEvent]
	logger *zap.Logger
}

// New creates an outbox with its own bus.
func New(logger *zap.Logger) (*Outbox, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[CaseEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	return &Outbox{bus: bus, logger: logger}, nil
}

// Send stamps and emits an event. Emission never fails the calling
// operation.
func (o *Outbox) Send(ev CaseEvent) {
	if o == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	o.bus.Emit(string(ev.Type), ev)
	o.logger.Debug("event emitted",
		zap.String("type", string(ev.Type)),
		zap.String("definition", ev.DefinitionName),
		zap.String("document", ev.DocumentID),
	)
}

// Subscribe registers a callback for one event type and returns the
// unsubscribe function.
func (o *Outbox) Subscribe(t EventType, cb func(ctx context.Context, ev CaseEvent) error) func() {
	return o.bus.Subscribe(string(t), cb)
}

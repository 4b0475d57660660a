package events

import (
	"time"

	"github.com/spec-kit/protocol-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventProtocolCreated     EventType = "protocol_created"
	EventProtocolValidated   EventType = "protocol_validated"
	EventProtocolLaunched    EventType = "protocol_launched"
	EventItemsDelivered      EventType = "protocol_items_delivered"
	EventProtocolClosed      EventType = "protocol_closed"
	EventProtocolReopened    EventType = "protocol_reopened"
	EventProtocolHidden      EventType = "protocol_hidden"
	EventProtocolForceClosed EventType = "protocol_force_closed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Role domain.ActorRole `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	ProtocolID string      `json:"protocol_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// ProtocolCreatedPayload payload.
type ProtocolCreatedPayload struct {
	Number          string                 `json:"number"`
	Unit            string                 `json:"unit"`
	ReplacementType domain.ReplacementType `json:"replacement_type"`
	Cause           string                 `json:"cause"`
	ItemCount       int                    `json:"item_count"`
	Offline         bool                   `json:"offline"`
}

// GateChangedPayload covers validation and launch flag changes.
type GateChangedPayload struct {
	Value     bool                  `json:"value"`
	NewStatus domain.ProtocolStatus `json:"new_status"`
}

// ItemsDeliveredPayload marks a partial delivery; delivering the last
// item publishes ProtocolClosedPayload instead.
type ItemsDeliveredPayload struct {
	Indices        []int `json:"indices"`
	DeliveredCount int   `json:"delivered_count"`
	TotalCount     int   `json:"total_count"`
}

// ProtocolClosedPayload payload.
type ProtocolClosedPayload struct {
	Number  string `json:"number"`
	Forced  bool   `json:"forced"`
	Message string `json:"message,omitempty"`
}

// ProtocolReopenedPayload payload.
type ProtocolReopenedPayload struct {
	Reason    string                `json:"reason"`
	NewStatus domain.ProtocolStatus `json:"new_status"`
}

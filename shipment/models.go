package shipment

import "time"

// Status represents the lifecycle of a shipment.
type Status string

const (
	StatusBooked         Status = "booked"
	StatusReceived       Status = "received"
	StatusInTransit      Status = "in_transit"
	StatusCustoms        Status = "customs"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusOnHold         Status = "on_hold"
	StatusCancelled      Status = "cancelled"
)

// Shipment mirrors the shipments table columns touched by the services.
type Shipment struct {
	ID          string
	Reference   string
	CustomerID  string
	AgentID     *string
	Origin      string
	Destination string
	WeightKg    float64
	ServiceType string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeliveredAt *time.Time
}

// TimelineEvent captures an immutable business event for a shipment.
type TimelineEvent struct {
	ID         int64
	ShipmentID string
	Type       string
	ActorID    *string
	CreatedAt  time.Time
	Payload    []byte
}

// OutboxMessage represents a transactional outbox entry drained by the
// notification worker.
type OutboxMessage struct {
	ID        string
	Topic     string
	Payload   []byte
	Status    string
	Attempts  int
	CreatedAt time.Time
}

const (
	// OutboxTopicStatusChanged is published on every status transition.
	OutboxTopicStatusChanged = "shipment.status_changed"
	// OutboxTopicHandoff is published when a shipment moves to another agent.
	OutboxTopicHandoff = "shipment.handoff"
)

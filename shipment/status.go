package shipment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidTransition is returned when the requested status is not
// reachable from the shipment's current status.
var ErrInvalidTransition = errors.New("shipment: invalid transition")

// validTransitions enumerates the allowed status graph. on_hold is
// reachable from any active status and resumes to in_transit.
var validTransitions = map[Status][]Status{
	StatusBooked:         {StatusReceived, StatusOnHold, StatusCancelled},
	StatusReceived:       {StatusInTransit, StatusOnHold, StatusCancelled},
	StatusInTransit:      {StatusCustoms, StatusOutForDelivery, StatusOnHold},
	StatusCustoms:        {StatusInTransit, StatusOutForDelivery, StatusOnHold},
	StatusOutForDelivery: {StatusDelivered, StatusOnHold},
	StatusOnHold:         {StatusInTransit, StatusCancelled},
}

// CanTransition reports whether a shipment may move from one status to
// another. Delivered and cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusService handles status transitions on shipments ensuring timeline
// and outbox writes are captured in the same transaction.
type StatusService struct {
	pool *pgxpool.Pool
}

func NewStatusService(pool *pgxpool.Pool) *StatusService {
	return &StatusService{pool: pool}
}

type TransitionParams struct {
	ShipmentID string
	ActorID    string
	NextStatus Status
	Note       string
}

// Transition moves a shipment to the next status, appending a timeline
// event and enqueuing a notification in one transaction.
func (s *StatusService) Transition(ctx context.Context, params TransitionParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("shipment: begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		current    Status
		reference  string
		customerID string
	)
	if err := tx.QueryRow(ctx, `SELECT status, reference, customer_id::text FROM shipments WHERE id=$1 FOR UPDATE`, params.ShipmentID).
		Scan(&current, &reference, &customerID); err != nil {
		return fmt.Errorf("shipment: fetch current status: %w", err)
	}

	if !CanTransition(current, params.NextStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, params.NextStatus)
	}

	deliveredSQL := ""
	if params.NextStatus == StatusDelivered {
		deliveredSQL = ", delivered_at=now()"
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE shipments
        SET status=$1, updated_at=now()%s
        WHERE id=$2
    `, deliveredSQL), params.NextStatus, params.ShipmentID); err != nil {
		return fmt.Errorf("shipment: update status: %w", err)
	}

	var actorPtr *string
	if params.ActorID != "" {
		actorPtr = &params.ActorID
	}

	payload := map[string]any{
		"previous_status": current,
		"next_status":     params.NextStatus,
	}
	if params.Note != "" {
		payload["note"] = params.Note
	}
	if params.ActorID != "" {
		payload["actor_id"] = params.ActorID
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO shipment_timeline (shipment_id, type, payload, actor_id)
        VALUES ($1,'SHIPMENT_STATUS_CHANGED',$2::jsonb,$3::uuid)
    `, params.ShipmentID, toJSON(payload), actorPtr); err != nil {
		return fmt.Errorf("shipment: insert timeline: %w", err)
	}

	outboxPayload := map[string]any{
		"shipment_id": params.ShipmentID,
		"reference":   reference,
		"customer_id": customerID,
		"previous":    current,
		"next":        params.NextStatus,
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO outbox (topic, payload)
        VALUES ($1,$2::jsonb)
    `, OutboxTopicStatusChanged, toJSON(outboxPayload)); err != nil {
		return fmt.Errorf("shipment: enqueue outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("shipment: commit transition: %w", err)
	}

	return nil
}

type HandoffParams struct {
	ShipmentID  string
	ActorID     string
	FromAgentID *string
	ToAgentID   string
	Note        string
}

// Handoff reassigns a shipment to another agent, recording the handoff on
// the timeline and fanning out a notification through the outbox.
func (s *StatusService) Handoff(ctx context.Context, params HandoffParams) error {
	if params.ToAgentID == "" {
		return fmt.Errorf("shipment: missing receiving agent")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("shipment: begin handoff: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		reference  string
		customerID string
	)
	if err := tx.QueryRow(ctx, `SELECT reference, customer_id::text FROM shipments WHERE id=$1 FOR UPDATE`, params.ShipmentID).
		Scan(&reference, &customerID); err != nil {
		return fmt.Errorf("shipment: fetch for handoff: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE shipments SET agent_id=$1::uuid, updated_at=now() WHERE id=$2
    `, params.ToAgentID, params.ShipmentID); err != nil {
		return fmt.Errorf("shipment: reassign agent: %w", err)
	}

	var actorPtr *string
	if params.ActorID != "" {
		actorPtr = &params.ActorID
	}

	payload := map[string]any{
		"to_agent_id": params.ToAgentID,
	}
	if params.FromAgentID != nil {
		payload["from_agent_id"] = *params.FromAgentID
	}
	if params.Note != "" {
		payload["note"] = params.Note
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO shipment_timeline (shipment_id, type, payload, actor_id)
        VALUES ($1,'SHIPMENT_HANDOFF',$2::jsonb,$3::uuid)
    `, params.ShipmentID, toJSON(payload), actorPtr); err != nil {
		return fmt.Errorf("shipment: insert handoff timeline: %w", err)
	}

	outboxPayload := map[string]any{
		"shipment_id": params.ShipmentID,
		"reference":   reference,
		"customer_id": customerID,
		"to_agent_id": params.ToAgentID,
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO outbox (topic, payload)
        VALUES ($1,$2::jsonb)
    `, OutboxTopicHandoff, toJSON(outboxPayload)); err != nil {
		return fmt.Errorf("shipment: enqueue handoff outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("shipment: commit handoff: %w", err)
	}

	return nil
}

func toJSON(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return string(b)
}

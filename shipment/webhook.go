package shipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateEventID signals the carrier event was already applied.
	ErrDuplicateEventID = errors.New("shipment: duplicate carrier event id")
	// ErrUnknownReference is returned when no shipment matches the tracking reference.
	ErrUnknownReference = errors.New("shipment: unknown reference")
)

// CarrierEvent is a status update pushed by a carrier integration. Carriers
// redeliver webhooks on timeout, so EventID deduplicates replays.
type CarrierEvent struct {
	EventID    string
	Reference  string
	NextStatus Status
	Note       string
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CarrierRepository defines the data access required by the webhook service.
type CarrierRepository interface {
	InsertEventID(ctx context.Context, tx pgx.Tx, eventID string) error
	ApplyStatusTx(ctx context.Context, tx pgx.Tx, params ApplyStatusParams) error
}

// ApplyStatusParams carries the status change resolved from a carrier event.
type ApplyStatusParams struct {
	Reference  string
	NextStatus Status
	Note       string
}

// WebhookService applies carrier status events exactly once.
type WebhookService struct {
	pool TxBeginner
	repo CarrierRepository
}

func NewWebhookService(pool TxBeginner, repo CarrierRepository) *WebhookService {
	if repo == nil {
		repo = &carrierRepository{}
	}
	return &WebhookService{pool: pool, repo: repo}
}

// ApplyCarrierEvent runs the event-id reservation, status transition,
// timeline append, and outbox write in one transaction. A replayed event id
// rolls back and reports success without re-applying the change.
func (s *WebhookService) ApplyCarrierEvent(ctx context.Context, ev CarrierEvent) error {
	if ev.EventID == "" {
		return fmt.Errorf("shipment: missing carrier event id")
	}
	if ev.Reference == "" {
		return fmt.Errorf("shipment: missing reference")
	}
	if ev.NextStatus == "" {
		return fmt.Errorf("shipment: missing next status")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("shipment: begin carrier event: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.InsertEventID(ctx, tx, ev.EventID); err != nil {
		if errors.Is(err, ErrDuplicateEventID) {
			return nil
		}
		return err
	}

	if err := s.repo.ApplyStatusTx(ctx, tx, ApplyStatusParams{
		Reference:  ev.Reference,
		NextStatus: ev.NextStatus,
		Note:       ev.Note,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("shipment: commit carrier event: %w", err)
	}

	return nil
}

type carrierRepository struct{}

// InsertEventID attempts to reserve the carrier event id inside the active
// transaction.
func (r *carrierRepository) InsertEventID(ctx context.Context, tx pgx.Tx, eventID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO carrier_events (event_id) VALUES ($1)`, eventID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEventID
		}
		return fmt.Errorf("shipment: insert carrier event id: %w", err)
	}
	return nil
}

// ApplyStatusTx performs the status transition, timeline append, and outbox
// write for a carrier event.
func (r *carrierRepository) ApplyStatusTx(ctx context.Context, tx pgx.Tx, params ApplyStatusParams) error {
	var (
		shipmentID string
		current    Status
		customerID string
	)
	err := tx.QueryRow(ctx,
		`SELECT id::text, status, customer_id::text FROM shipments WHERE reference=$1 FOR UPDATE`,
		params.Reference).Scan(&shipmentID, &current, &customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownReference
		}
		return fmt.Errorf("shipment: fetch by reference: %w", err)
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
    `, deliveredSQL), params.NextStatus, shipmentID); err != nil {
		return fmt.Errorf("shipment: update status: %w", err)
	}

	payload := map[string]any{
		"previous_status": current,
		"next_status":     params.NextStatus,
		"source":          "carrier",
	}
	if params.Note != "" {
		payload["note"] = params.Note
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO shipment_timeline (shipment_id, type, payload)
        VALUES ($1,'SHIPMENT_STATUS_CHANGED',$2::jsonb)
    `, shipmentID, toJSON(payload)); err != nil {
		return fmt.Errorf("shipment: insert timeline: %w", err)
	}

	outboxPayload := map[string]any{
		"shipment_id": shipmentID,
		"reference":   params.Reference,
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

	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Row is one pending outbox entry.
type Row struct {
	ID      string
	Topic   string
	Payload []byte
}

// OutboxStore abstracts outbox persistence for the drainer.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]Row, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// PGOutbox implements enqueue and drain against the shared outbox table.
type PGOutbox struct {
	pool *pgxpool.Pool
}

func NewPGOutbox(pool *pgxpool.Pool) *PGOutbox {
	return &PGOutbox{pool: pool}
}

// Enqueue inserts a pending notification.
func (o *PGOutbox) Enqueue(ctx context.Context, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	if _, err := o.pool.Exec(ctx, `
        INSERT INTO outbox (topic, payload)
        VALUES ($1, $2::jsonb)
    `, topic, string(body)); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// staleClaimAfter bounds how long a row may sit in 'sending'. A drainer
// that crashes between claim and MarkSent/MarkFailed leaves its claim
// behind; older claims are returned to the pending pool.
const staleClaimAfter = 2 * time.Minute

// FetchPending claims up to limit pending rows by flipping them to
// 'sending' in one statement, so concurrent drainers never pick up the same
// row. MarkFailed returns a claimed row to 'pending' for retry.
func (o *PGOutbox) FetchPending(ctx context.Context, limit int) ([]Row, error) {
	if _, err := o.pool.Exec(ctx, `
        UPDATE outbox SET status = 'pending'
        WHERE status = 'sending' AND updated_at < now() - make_interval(secs => $1)
    `, staleClaimAfter.Seconds()); err != nil {
		return nil, fmt.Errorf("notify: reclaim stale claims: %w", err)
	}

	rows, err := o.pool.Query(ctx, `
        UPDATE outbox SET status = 'sending', updated_at = now()
        WHERE id IN (
            SELECT id FROM outbox
            WHERE status = 'pending' AND attempts < 5
            ORDER BY created_at
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id::text, topic, payload
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: fetch pending: %w", err)
	}
	defer rows.Close()

	var pending []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.Topic, &row.Payload); err != nil {
			return nil, fmt.Errorf("notify: scan outbox row: %w", err)
		}
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate pending: %w", err)
	}
	return pending, nil
}

func (o *PGOutbox) MarkSent(ctx context.Context, id string) error {
	if _, err := o.pool.Exec(ctx, `UPDATE outbox SET status='sent', updated_at=now() WHERE id=$1`, id); err != nil {
		return fmt.Errorf("notify: mark sent: %w", err)
	}
	return nil
}

func (o *PGOutbox) MarkFailed(ctx context.Context, id string) error {
	if _, err := o.pool.Exec(ctx, `UPDATE outbox SET status='pending', attempts=attempts+1, updated_at=now() WHERE id=$1`, id); err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	return nil
}

// RecipientLookup resolves the email address for a user id.
type RecipientLookup func(ctx context.Context, userID string) (string, error)

// Drainer polls the outbox and delivers each entry as an email. Delivery
// failures leave the row pending with an incremented attempts counter.
type Drainer struct {
	store     OutboxStore
	mailer    Mailer
	recipient RecipientLookup
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

func NewDrainer(store OutboxStore, mailer Mailer, recipient RecipientLookup, logger *zap.Logger, interval time.Duration) *Drainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drainer{
		store:     store,
		mailer:    mailer,
		recipient: recipient,
		logger:    logger,
		interval:  interval,
		batchSize: 20,
	}
}

// Run drains until the context is cancelled.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DrainOnce(ctx); err != nil {
				d.logger.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce processes one batch of pending notifications.
func (d *Drainer) DrainOnce(ctx context.Context) error {
	pending, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, row := range pending {
		msg, err := d.render(ctx, row)
		if err != nil {
			d.logger.Warn("unrenderable outbox row", zap.String("id", row.ID), zap.String("topic", row.Topic), zap.Error(err))
			if err := d.store.MarkFailed(ctx, row.ID); err != nil {
				return err
			}
			continue
		}

		if err := d.mailer.Send(ctx, msg); err != nil {
			d.logger.Warn("mail delivery failed", zap.String("id", row.ID), zap.Error(err))
			if err := d.store.MarkFailed(ctx, row.ID); err != nil {
				return err
			}
			continue
		}

		if err := d.store.MarkSent(ctx, row.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Drainer) render(ctx context.Context, row Row) (Message, error) {
	var payload map[string]any
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return Message{}, fmt.Errorf("notify: decode payload: %w", err)
	}

	customerID, _ := payload["customer_id"].(string)
	if customerID == "" {
		return Message{}, fmt.Errorf("notify: payload missing customer_id")
	}
	to, err := d.recipient(ctx, customerID)
	if err != nil {
		return Message{}, fmt.Errorf("notify: resolve recipient: %w", err)
	}

	switch row.Topic {
	case "shipment.status_changed":
		reference, _ := payload["reference"].(string)
		next, _ := payload["next"].(string)
		return Message{
			To:      to,
			Subject: fmt.Sprintf("Shipment %s update", reference),
			Body:    fmt.Sprintf("Your shipment %s is now %s.", reference, next),
		}, nil
	case "shipment.handoff":
		reference, _ := payload["reference"].(string)
		return Message{
			To:      to,
			Subject: fmt.Sprintf("Shipment %s reassigned", reference),
			Body:    fmt.Sprintf("Your shipment %s has been assigned to a new agent.", reference),
		}, nil
	case "booking.confirmed":
		from, _ := payload["from"].(string)
		toAirport, _ := payload["to"].(string)
		return Message{
			To:      to,
			Subject: "Your flight booking is confirmed",
			Body:    fmt.Sprintf("Your booking %s to %s has been confirmed. Ticketing is in progress.", from, toAirport),
		}, nil
	default:
		return Message{}, fmt.Errorf("notify: unknown topic %q", row.Topic)
	}
}

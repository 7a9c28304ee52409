package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("booking: not found")

// Filters narrows List results.
type Filters struct {
	CustomerID string
	AgentID    string
	Status     Status
	Page       int
	PageSize   int
}

type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	GetByID(ctx context.Context, id string) (Request, error)
	List(ctx context.Context, filters Filters) ([]Request, int, error)
	UpdateStatus(ctx context.Context, id string, status Status, agentID *string, quoteCents *int64) (Request, error)
	Confirm(ctx context.Context, id string) (Request, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const bookingColumns = `id, customer_id::text, agent_id::text, from_airport, to_airport, travel_date, return_date, passengers, cabin, contact_phone, status, quote_cents, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, req Request) (Request, error) {
	query := fmt.Sprintf(`
        INSERT INTO ticket_bookings (id, customer_id, from_airport, to_airport, travel_date, return_date, passengers, cabin, contact_phone, status)
        VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING %s
    `, bookingColumns)

	row := r.pool.QueryRow(ctx, query,
		req.ID,
		req.CustomerID,
		req.FromAirport,
		req.ToAirport,
		req.TravelDate,
		req.ReturnDate,
		req.Passengers,
		req.Cabin,
		req.ContactPhone,
		req.Status,
	)

	created, err := scanRequest(row)
	if err != nil {
		return Request{}, fmt.Errorf("booking: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Request, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM ticket_bookings WHERE id = $1`, bookingColumns), id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("booking: get by id: %w", err)
	}
	return req, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Request, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	base := fmt.Sprintf(`SELECT %s FROM ticket_bookings`, bookingColumns)
	where := []string{"1=1"}
	args := []any{}

	if filters.CustomerID != "" {
		where = append(where, fmt.Sprintf("customer_id=$%d::uuid", len(args)+1))
		args = append(args, filters.CustomerID)
	}
	if filters.AgentID != "" {
		where = append(where, fmt.Sprintf("agent_id=$%d::uuid", len(args)+1))
		args = append(args, filters.AgentID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d", len(args)+1))
		args = append(args, filters.Status)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")
	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`%s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("booking: query list: %w", err)
	}
	defer rows.Close()

	list := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("booking: scan list row: %w", err)
		}
		list = append(list, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("booking: iterate list: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ticket_bookings%s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("booking: count list: %w", err)
	}

	return list, total, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status Status, agentID *string, quoteCents *int64) (Request, error) {
	query := fmt.Sprintf(`
        UPDATE ticket_bookings
        SET status=$2,
            agent_id=COALESCE($3::uuid, agent_id),
            quote_cents=COALESCE($4, quote_cents),
            updated_at=now()
        WHERE id=$1
        RETURNING %s
    `, bookingColumns)

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id, status, agentID, quoteCents))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("booking: update status: %w", err)
	}
	return req, nil
}

// Confirm flips a quoted booking to confirmed and enqueues the customer
// notification in the same transaction; a failed enqueue rolls the status
// change back instead of confirming silently.
func (r *PGRepository) Confirm(ctx context.Context, id string) (Request, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("booking: begin confirm: %w", err)
	}
	defer tx.Rollback(ctx)

	var status Status
	if err := tx.QueryRow(ctx,
		`SELECT status FROM ticket_bookings WHERE id=$1 FOR UPDATE`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("booking: fetch for confirm: %w", err)
	}
	if status != StatusQuoted {
		return Request{}, fmt.Errorf("booking: cannot confirm in status %s", status)
	}

	query := fmt.Sprintf(`
        UPDATE ticket_bookings
        SET status=$2, updated_at=now()
        WHERE id=$1
        RETURNING %s
    `, bookingColumns)
	req, err := scanRequest(tx.QueryRow(ctx, query, id, StatusConfirmed))
	if err != nil {
		return Request{}, fmt.Errorf("booking: confirm update: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":  req.ID,
		"customer_id": req.CustomerID,
		"from":        req.FromAirport,
		"to":          req.ToAirport,
	})
	if err != nil {
		return Request{}, fmt.Errorf("booking: marshal confirmation payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO outbox (topic, payload)
        VALUES ($1, $2::jsonb)
    `, OutboxTopicConfirmed, string(payload)); err != nil {
		return Request{}, fmt.Errorf("booking: enqueue confirmation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("booking: commit confirm: %w", err)
	}
	return req, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID,
		&req.CustomerID,
		&req.AgentID,
		&req.FromAirport,
		&req.ToAirport,
		&req.TravelDate,
		&req.ReturnDate,
		&req.Passengers,
		&req.Cabin,
		&req.ContactPhone,
		&req.Status,
		&req.QuoteCents,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

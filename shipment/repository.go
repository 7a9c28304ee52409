package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals that the shipment does not exist.
var ErrNotFound = errors.New("shipment: not found")

// Repository handles data access for shipments.
type Repository interface {
	Create(ctx context.Context, params CreateShipmentParams) (Shipment, error)
	GetByID(ctx context.Context, id string) (Shipment, error)
	GetByReference(ctx context.Context, reference string) (Shipment, error)
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Shipment, error)
	ListForAgent(ctx context.Context, agentID string, limit, offset int) ([]Shipment, error)
	Timeline(ctx context.Context, shipmentID string) ([]TimelineEvent, error)
}

// CreateShipmentParams contains write parameters for creating shipments.
type CreateShipmentParams struct {
	ID          string
	Reference   string
	CustomerID  string
	Origin      string
	Destination string
	WeightKg    float64
	ServiceType string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const shipmentColumns = `id, reference, customer_id::text, agent_id::text, origin, destination, weight_kg, service_type, status, created_at, updated_at, delivered_at`

func (r *PGRepository) Create(ctx context.Context, params CreateShipmentParams) (Shipment, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO shipments (id, reference, customer_id, origin, destination, weight_kg, service_type, status)
		VALUES ($1, $2, $3::uuid, $4, $5, $6, $7, 'booked')
		RETURNING %s
	`, shipmentColumns)

	sh, err := scanShipment(r.pool.QueryRow(ctx, insertSQL,
		params.ID, params.Reference, params.CustomerID, params.Origin, params.Destination, params.WeightKg, params.ServiceType))
	if err != nil {
		return Shipment{}, fmt.Errorf("shipment: create: %w", err)
	}
	return sh, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Shipment, error) {
	sh, err := scanShipment(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM shipments WHERE id = $1`, shipmentColumns), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, fmt.Errorf("shipment: get by id: %w", err)
	}
	return sh, nil
}

func (r *PGRepository) GetByReference(ctx context.Context, reference string) (Shipment, error) {
	sh, err := scanShipment(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM shipments WHERE reference = $1`, shipmentColumns), reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, ErrNotFound
		}
		return Shipment{}, fmt.Errorf("shipment: get by reference: %w", err)
	}
	return sh, nil
}

func (r *PGRepository) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Shipment, error) {
	return r.list(ctx, `customer_id = $1::uuid`, customerID, limit, offset)
}

func (r *PGRepository) ListForAgent(ctx context.Context, agentID string, limit, offset int) ([]Shipment, error) {
	return r.list(ctx, `agent_id = $1::uuid`, agentID, limit, offset)
}

func (r *PGRepository) list(ctx context.Context, where string, key string, limit, offset int) ([]Shipment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM shipments
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, shipmentColumns, where)

	rows, err := r.pool.Query(ctx, query, key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("shipment: list: %w", err)
	}
	defer rows.Close()

	var items []Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("shipment: scan list row: %w", err)
		}
		items = append(items, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shipment: iterate list: %w", err)
	}
	return items, nil
}

func (r *PGRepository) Timeline(ctx context.Context, shipmentID string) ([]TimelineEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shipment_id, type, actor_id::text, created_at, payload
		FROM shipment_timeline
		WHERE shipment_id = $1
		ORDER BY id
	`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("shipment: timeline: %w", err)
	}
	defer rows.Close()

	var events []TimelineEvent
	for rows.Next() {
		var ev TimelineEvent
		if err := rows.Scan(&ev.ID, &ev.ShipmentID, &ev.Type, &ev.ActorID, &ev.CreatedAt, &ev.Payload); err != nil {
			return nil, fmt.Errorf("shipment: scan timeline: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shipment: iterate timeline: %w", err)
	}
	return events, nil
}

func scanShipment(row pgx.Row) (Shipment, error) {
	var (
		sh          Shipment
		agentID     *string
		deliveredAt *time.Time
	)
	err := row.Scan(
		&sh.ID,
		&sh.Reference,
		&sh.CustomerID,
		&agentID,
		&sh.Origin,
		&sh.Destination,
		&sh.WeightKg,
		&sh.ServiceType,
		&sh.Status,
		&sh.CreatedAt,
		&sh.UpdatedAt,
		&deliveredAt,
	)
	if err != nil {
		return Shipment{}, err
	}
	sh.AgentID = agentID
	sh.DeliveredAt = deliveredAt
	return sh, nil
}

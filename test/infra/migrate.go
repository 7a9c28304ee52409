package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the full DDL used by tests. Production deployments run the
// same statements through the migrations pipeline.
const Schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS users (
    id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    email         text NOT NULL UNIQUE,
    full_name     text NOT NULL,
    password_hash text NOT NULL DEFAULT '',
    phone         text,
    country       text,
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admins (
    id      uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id uuid NOT NULL UNIQUE REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS agents (
    id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id     uuid NOT NULL UNIQUE REFERENCES users(id),
    is_approved boolean
);

CREATE TABLE IF NOT EXISTS user_roles (
    id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id     uuid NOT NULL REFERENCES users(id),
    role        text NOT NULL,
    is_approved boolean
);

CREATE TABLE IF NOT EXISTS profiles (
    id   uuid PRIMARY KEY REFERENCES users(id),
    role text
);

CREATE TABLE IF NOT EXISTS shipments (
    id           uuid PRIMARY KEY,
    reference    text NOT NULL UNIQUE,
    customer_id  uuid NOT NULL REFERENCES users(id),
    agent_id     uuid REFERENCES users(id),
    origin       text NOT NULL,
    destination  text NOT NULL,
    weight_kg    double precision NOT NULL,
    service_type text NOT NULL,
    status       text NOT NULL DEFAULT 'booked',
    created_at   timestamptz NOT NULL DEFAULT now(),
    updated_at   timestamptz NOT NULL DEFAULT now(),
    delivered_at timestamptz
);

CREATE TABLE IF NOT EXISTS shipment_timeline (
    id          bigserial PRIMARY KEY,
    shipment_id uuid NOT NULL REFERENCES shipments(id),
    type        text NOT NULL,
    payload     jsonb NOT NULL DEFAULT '{}',
    actor_id    uuid,
    created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ticket_bookings (
    id            uuid PRIMARY KEY,
    customer_id   uuid NOT NULL REFERENCES users(id),
    agent_id      uuid REFERENCES users(id),
    from_airport  text NOT NULL,
    to_airport    text NOT NULL,
    travel_date   timestamptz NOT NULL,
    return_date   timestamptz,
    passengers    int NOT NULL,
    cabin         text NOT NULL,
    contact_phone text NOT NULL DEFAULT '',
    status        text NOT NULL DEFAULT 'open',
    quote_cents   bigint,
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS carrier_events (
    event_id   text PRIMARY KEY,
    created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox (
    id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    topic      text NOT NULL,
    payload    jsonb NOT NULL,
    status     text NOT NULL DEFAULT 'pending',
    attempts   int NOT NULL DEFAULT 0,
    created_at timestamptz NOT NULL DEFAULT now(),
    updated_at timestamptz NOT NULL DEFAULT now()
);
`

// ApplySchema creates all tables on the target database and returns a pool.
func ApplySchema(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("infra: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("infra: apply schema: %w", err)
	}
	return pool, nil
}

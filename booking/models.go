package booking

import "time"

// Status represents the lifecycle of a ticket booking request.
type Status string

const (
	StatusOpen      Status = "open"
	StatusQuoted    Status = "quoted"
	StatusConfirmed Status = "confirmed"
	StatusTicketed  Status = "ticketed"
	StatusCancelled Status = "cancelled"
)

// CabinClass is the requested service class.
type CabinClass string

const (
	CabinEconomy  CabinClass = "economy"
	CabinPremium  CabinClass = "premium_economy"
	CabinBusiness CabinClass = "business"
)

// Request mirrors the ticket_bookings table.
type Request struct {
	ID           string
	CustomerID   string
	AgentID      *string
	FromAirport  string
	ToAirport    string
	TravelDate   time.Time
	ReturnDate   *time.Time
	Passengers   int
	Cabin        CabinClass
	ContactPhone string
	Status       Status
	QuoteCents   *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OutboxTopicConfirmed is published when a booking is confirmed so the
// customer gets a confirmation email.
const OutboxTopicConfirmed = "booking.confirmed"

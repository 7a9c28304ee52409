package booking

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Service handles ticket booking business logic.
type Service struct {
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

type CreateParams struct {
	CustomerID   string
	FromAirport  string
	ToAirport    string
	TravelDate   time.Time
	ReturnDate   *time.Time
	Passengers   int
	Cabin        CabinClass
	ContactPhone string
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

var airportPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Create opens a booking request for an agent to quote.
func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if params.CustomerID == "" {
		return Request{}, fmt.Errorf("booking: missing customer id")
	}
	if !airportPattern.MatchString(params.FromAirport) || !airportPattern.MatchString(params.ToAirport) {
		return Request{}, fmt.Errorf("booking: airports must be IATA codes")
	}
	if params.FromAirport == params.ToAirport {
		return Request{}, fmt.Errorf("booking: origin and destination must differ")
	}
	// Handlers parse date-only travel dates, so a booking for today arrives
	// as midnight; compare against the start of the current day.
	if params.TravelDate.Before(s.now().UTC().Truncate(24 * time.Hour)) {
		return Request{}, fmt.Errorf("booking: travel date must not be in the past")
	}
	if params.ReturnDate != nil && params.ReturnDate.Before(params.TravelDate) {
		return Request{}, fmt.Errorf("booking: return date before travel date")
	}
	if params.Passengers < 1 || params.Passengers > 9 {
		return Request{}, fmt.Errorf("booking: passengers must be between 1 and 9")
	}
	switch params.Cabin {
	case CabinEconomy, CabinPremium, CabinBusiness:
	default:
		return Request{}, fmt.Errorf("booking: unknown cabin class %q", params.Cabin)
	}

	return s.repo.Create(ctx, Request{
		ID:           s.idGenerator(),
		CustomerID:   params.CustomerID,
		FromAirport:  params.FromAirport,
		ToAirport:    params.ToAirport,
		TravelDate:   params.TravelDate,
		ReturnDate:   params.ReturnDate,
		Passengers:   params.Passengers,
		Cabin:        params.Cabin,
		ContactPhone: params.ContactPhone,
		Status:       StatusOpen,
	})
}

// Quote records an agent's fare quote on an open request.
func (s *Service) Quote(ctx context.Context, bookingID, agentID string, quoteCents int64) (Request, error) {
	if quoteCents <= 0 {
		return Request{}, fmt.Errorf("booking: quote must be positive")
	}
	req, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusOpen && req.Status != StatusQuoted {
		return Request{}, fmt.Errorf("booking: cannot quote in status %s", req.Status)
	}
	return s.repo.UpdateStatus(ctx, bookingID, StatusQuoted, &agentID, &quoteCents)
}

// Confirm accepts the quote on behalf of the customer. The status change
// and the customer notification commit together in the repository.
func (s *Service) Confirm(ctx context.Context, bookingID string) (Request, error) {
	return s.repo.Confirm(ctx, bookingID)
}

// Ticket marks a confirmed booking as ticketed.
func (s *Service) Ticket(ctx context.Context, bookingID string) (Request, error) {
	req, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusConfirmed {
		return Request{}, fmt.Errorf("booking: cannot ticket in status %s", req.Status)
	}
	return s.repo.UpdateStatus(ctx, bookingID, StatusTicketed, nil, nil)
}

// Cancel cancels a booking that has not been ticketed.
func (s *Service) Cancel(ctx context.Context, bookingID string) (Request, error) {
	req, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return Request{}, err
	}
	if req.Status == StatusTicketed || req.Status == StatusCancelled {
		return Request{}, fmt.Errorf("booking: cannot cancel in status %s", req.Status)
	}
	return s.repo.UpdateStatus(ctx, bookingID, StatusCancelled, nil, nil)
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, bookingID string) (Request, error) {
	return s.repo.GetByID(ctx, bookingID)
}

// List pages through bookings matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Request, int, error) {
	return s.repo.List(ctx, filters)
}

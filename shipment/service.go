package shipment

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

var serviceTypes = map[string]bool{
	"air_cargo":    true,
	"sea_cargo":    true,
	"door_to_door": true,
	"documents":    true,
}

var supportedCountries = map[string]bool{
	"CA": true,
	"BD": true,
}

// Service handles shipment creation and tracking.
type Service struct {
	repo        Repository
	idGenerator func() string
	now         func() time.Time
	refSuffix   func() string
}

type CreateParams struct {
	CustomerID  string
	Origin      string
	Destination string
	WeightKg    float64
	ServiceType string
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
		refSuffix:   randomRefSuffix,
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

func (s *Service) WithRefSuffix(fn func() string) *Service {
	s.refSuffix = fn
	return s
}

// Create books a new shipment. The human-facing reference encodes the
// lane and booking date, e.g. CL-CABD-20260831-X7K2.
func (s *Service) Create(ctx context.Context, params CreateParams) (Shipment, error) {
	if params.CustomerID == "" {
		return Shipment{}, fmt.Errorf("shipment: missing customer id")
	}
	origin := strings.ToUpper(strings.TrimSpace(params.Origin))
	destination := strings.ToUpper(strings.TrimSpace(params.Destination))
	if !supportedCountries[origin] || !supportedCountries[destination] {
		return Shipment{}, fmt.Errorf("shipment: unsupported lane %s -> %s", origin, destination)
	}
	if origin == destination {
		return Shipment{}, fmt.Errorf("shipment: origin and destination must differ")
	}
	if params.WeightKg <= 0 {
		return Shipment{}, fmt.Errorf("shipment: weight must be positive")
	}
	if !serviceTypes[params.ServiceType] {
		return Shipment{}, fmt.Errorf("shipment: unknown service type %q", params.ServiceType)
	}

	reference := fmt.Sprintf("CL-%s%s-%s-%s",
		origin, destination, s.now().UTC().Format("20060102"), s.refSuffix())

	return s.repo.Create(ctx, CreateShipmentParams{
		ID:          s.idGenerator(),
		Reference:   reference,
		CustomerID:  params.CustomerID,
		Origin:      origin,
		Destination: destination,
		WeightKg:    params.WeightKg,
		ServiceType: params.ServiceType,
	})
}

// Track returns a shipment and its timeline by public reference.
func (s *Service) Track(ctx context.Context, reference string) (Shipment, []TimelineEvent, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	if reference == "" {
		return Shipment{}, nil, fmt.Errorf("shipment: missing reference")
	}

	sh, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return Shipment{}, nil, err
	}

	events, err := s.repo.Timeline(ctx, sh.ID)
	if err != nil {
		return Shipment{}, nil, err
	}
	return sh, events, nil
}

// ListForCustomer pages through a customer's shipments.
func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Shipment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForCustomer(ctx, customerID, limit, offset)
}

// ListForAgent pages through shipments assigned to an agent.
func (s *Service) ListForAgent(ctx context.Context, agentID string, limit, offset int) ([]Shipment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForAgent(ctx, agentID, limit, offset)
}

const refAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func randomRefSuffix() string {
	b := make([]byte, 4)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(refAlphabet))))
		if err != nil {
			panic(err)
		}
		b[i] = refAlphabet[n.Int64()]
	}
	return string(b)
}

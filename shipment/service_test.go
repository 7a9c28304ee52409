package shipment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusBooked, StatusReceived, true},
		{StatusReceived, StatusInTransit, true},
		{StatusInTransit, StatusCustoms, true},
		{StatusCustoms, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusBooked, StatusDelivered, false},
		{StatusDelivered, StatusInTransit, false},
		{StatusCancelled, StatusBooked, false},
		{StatusInTransit, StatusOnHold, true},
		{StatusOnHold, StatusInTransit, true},
		{StatusOnHold, StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestService_Create(t *testing.T) {
	repo := newFakeShipmentRepo()
	svc := NewService(repo).
		WithIDGenerator(func() string { return "ship-1" }).
		WithClock(func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }).
		WithRefSuffix(func() string { return "X7K2" })

	sh, err := svc.Create(context.Background(), CreateParams{
		CustomerID:  "cust-1",
		Origin:      "ca",
		Destination: "bd",
		WeightKg:    12.5,
		ServiceType: "air_cargo",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sh.Reference != "CL-CABD-20260831-X7K2" {
		t.Fatalf("unexpected reference %q", sh.Reference)
	}
	if sh.Status != StatusBooked {
		t.Fatalf("expected booked status, got %s", sh.Status)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(newFakeShipmentRepo())
	ctx := context.Background()

	cases := []CreateParams{
		{Origin: "CA", Destination: "BD", WeightKg: 1, ServiceType: "air_cargo"},                      // missing customer
		{CustomerID: "c", Origin: "US", Destination: "BD", WeightKg: 1, ServiceType: "air_cargo"},     // unsupported lane
		{CustomerID: "c", Origin: "CA", Destination: "CA", WeightKg: 1, ServiceType: "air_cargo"},     // same country
		{CustomerID: "c", Origin: "CA", Destination: "BD", WeightKg: 0, ServiceType: "air_cargo"},     // zero weight
		{CustomerID: "c", Origin: "CA", Destination: "BD", WeightKg: 1, ServiceType: "teleportation"}, // bad service
	}
	for i, params := range cases {
		if _, err := svc.Create(ctx, params); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestService_Track(t *testing.T) {
	repo := newFakeShipmentRepo()
	svc := NewService(repo).WithIDGenerator(func() string { return "ship-1" })

	created, err := svc.Create(context.Background(), CreateParams{
		CustomerID:  "cust-1",
		Origin:      "BD",
		Destination: "CA",
		WeightKg:    3,
		ServiceType: "documents",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.timeline["ship-1"] = []TimelineEvent{{ID: 1, ShipmentID: "ship-1", Type: "SHIPMENT_STATUS_CHANGED"}}

	sh, events, err := svc.Track(context.Background(), strings.ToLower(created.Reference))
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if sh.ID != "ship-1" {
		t.Fatalf("expected ship-1, got %q", sh.ID)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(events))
	}

	if _, _, err := svc.Track(context.Background(), "CL-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeShipmentRepo struct {
	byID     map[string]Shipment
	byRef    map[string]Shipment
	timeline map[string][]TimelineEvent
}

func newFakeShipmentRepo() *fakeShipmentRepo {
	return &fakeShipmentRepo{
		byID:     make(map[string]Shipment),
		byRef:    make(map[string]Shipment),
		timeline: make(map[string][]TimelineEvent),
	}
}

func (f *fakeShipmentRepo) Create(ctx context.Context, params CreateShipmentParams) (Shipment, error) {
	sh := Shipment{
		ID:          params.ID,
		Reference:   params.Reference,
		CustomerID:  params.CustomerID,
		Origin:      params.Origin,
		Destination: params.Destination,
		WeightKg:    params.WeightKg,
		ServiceType: params.ServiceType,
		Status:      StatusBooked,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	f.byID[sh.ID] = sh
	f.byRef[sh.Reference] = sh
	return sh, nil
}

func (f *fakeShipmentRepo) GetByID(ctx context.Context, id string) (Shipment, error) {
	sh, ok := f.byID[id]
	if !ok {
		return Shipment{}, ErrNotFound
	}
	return sh, nil
}

func (f *fakeShipmentRepo) GetByReference(ctx context.Context, reference string) (Shipment, error) {
	sh, ok := f.byRef[reference]
	if !ok {
		return Shipment{}, ErrNotFound
	}
	return sh, nil
}

func (f *fakeShipmentRepo) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Shipment, error) {
	var items []Shipment
	for _, sh := range f.byID {
		if sh.CustomerID == customerID {
			items = append(items, sh)
		}
	}
	return items, nil
}

func (f *fakeShipmentRepo) ListForAgent(ctx context.Context, agentID string, limit, offset int) ([]Shipment, error) {
	var items []Shipment
	for _, sh := range f.byID {
		if sh.AgentID != nil && *sh.AgentID == agentID {
			items = append(items, sh)
		}
	}
	return items, nil
}

func (f *fakeShipmentRepo) Timeline(ctx context.Context, shipmentID string) ([]TimelineEvent, error) {
	return f.timeline[shipmentID], nil
}

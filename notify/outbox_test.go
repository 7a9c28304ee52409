package notify

import (
	"context"
	"errors"
	"testing"
)

type fakeOutboxStore struct {
	pending []Row
	sent    []string
	failed  []string
}

func (f *fakeOutboxStore) FetchPending(ctx context.Context, limit int) ([]Row, error) {
	return f.pending, nil
}

func (f *fakeOutboxStore) MarkSent(ctx context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutboxStore) MarkFailed(ctx context.Context, id string) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func lookupFixed(email string) RecipientLookup {
	return func(ctx context.Context, userID string) (string, error) {
		return email, nil
	}
}

func TestDrainer_DeliversStatusChange(t *testing.T) {
	store := &fakeOutboxStore{pending: []Row{{
		ID:      "msg-1",
		Topic:   "shipment.status_changed",
		Payload: []byte(`{"customer_id":"cust-1","reference":"CL-CABD-20260831-X7K2","next":"in_transit"}`),
	}}}
	mailer := &fakeMailer{}

	d := NewDrainer(store, mailer, lookupFixed("alice@example.com"), nil, 0)
	if err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "alice@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "Shipment CL-CABD-20260831-X7K2 update" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if len(store.sent) != 1 || store.sent[0] != "msg-1" {
		t.Fatalf("expected msg-1 marked sent, got %v", store.sent)
	}
}

func TestDrainer_DeliveryFailureMarksFailed(t *testing.T) {
	store := &fakeOutboxStore{pending: []Row{{
		ID:      "msg-1",
		Topic:   "booking.confirmed",
		Payload: []byte(`{"customer_id":"cust-1","from":"YYZ","to":"DAC"}`),
	}}}
	mailer := &fakeMailer{err: errors.New("provider down")}

	d := NewDrainer(store, mailer, lookupFixed("alice@example.com"), nil, 0)
	if err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(store.failed) != 1 {
		t.Fatalf("expected 1 failed row, got %v", store.failed)
	}
	if len(store.sent) != 0 {
		t.Fatalf("expected no sent rows, got %v", store.sent)
	}
}

func TestDrainer_BadRowsFailWithoutStoppingBatch(t *testing.T) {
	store := &fakeOutboxStore{pending: []Row{
		{ID: "bad-json", Topic: "shipment.handoff", Payload: []byte(`{`)},
		{ID: "no-customer", Topic: "shipment.handoff", Payload: []byte(`{"reference":"CL-1"}`)},
		{ID: "unknown-topic", Topic: "shipment.exploded", Payload: []byte(`{"customer_id":"cust-1"}`)},
		{ID: "good", Topic: "shipment.handoff", Payload: []byte(`{"customer_id":"cust-1","reference":"CL-1"}`)},
	}}
	mailer := &fakeMailer{}

	d := NewDrainer(store, mailer, lookupFixed("alice@example.com"), nil, 0)
	if err := d.DrainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(store.failed) != 3 {
		t.Fatalf("expected 3 failed rows, got %v", store.failed)
	}
	if len(store.sent) != 1 || store.sent[0] != "good" {
		t.Fatalf("expected only the good row sent, got %v", store.sent)
	}
}

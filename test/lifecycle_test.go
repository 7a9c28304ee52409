package test

import (
	"context"
	"testing"
	"time"

	"cargolink/auth"
	"cargolink/booking"
	"cargolink/notify"
	"cargolink/shipment"
	"cargolink/test/infra"
)

// TestShipmentLifecycle_Integration boots a disposable Postgres, applies the
// schema, and walks a shipment from booking to delivery, checking the
// timeline and outbox side effects along the way.
func TestShipmentLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test; skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Skipf("cannot start postgres container: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, err := infra.ApplySchema(ctx, dsn)
	if err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, "integration-secret")

	customer, err := authSvc.Register(ctx, auth.RegisterRequest{
		Email:    "customer@example.com",
		Password: "strongpassword",
		FullName: "Customer One",
	})
	if err != nil {
		t.Fatalf("register customer: %v", err)
	}

	agentReg, err := authSvc.Register(ctx, auth.RegisterRequest{
		Email:    "agent@example.com",
		Password: "strongpassword",
		FullName: "Agent One",
	})
	if err != nil {
		t.Fatalf("register agent: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO agents (user_id, is_approved) VALUES ($1, true)`, agentReg.User.ID); err != nil {
		t.Fatalf("seed agent row: %v", err)
	}

	resolver := auth.NewResolver(authRepo, "")
	role, err := resolver.Resolve(ctx, agentReg.User.ID, agentReg.User.Email)
	if err != nil {
		t.Fatalf("resolve agent role: %v", err)
	}
	if role != auth.RoleAgent {
		t.Fatalf("expected agent role, got %s", role)
	}

	shipmentRepo := shipment.NewRepository(pool)
	shipmentSvc := shipment.NewService(shipmentRepo)
	statusSvc := shipment.NewStatusService(pool)

	sh, err := shipmentSvc.Create(ctx, shipment.CreateParams{
		CustomerID:  customer.User.ID,
		Origin:      "CA",
		Destination: "BD",
		WeightKg:    8.5,
		ServiceType: "air_cargo",
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	// The first leg arrives through the carrier webhook; a redelivered event
	// must not produce a second timeline row.
	webhookSvc := shipment.NewWebhookService(pool, nil)
	carrierEv := shipment.CarrierEvent{
		EventID:    "evt-origin-scan",
		Reference:  sh.Reference,
		NextStatus: shipment.StatusReceived,
	}
	if err := webhookSvc.ApplyCarrierEvent(ctx, carrierEv); err != nil {
		t.Fatalf("apply carrier event: %v", err)
	}
	if err := webhookSvc.ApplyCarrierEvent(ctx, carrierEv); err != nil {
		t.Fatalf("replay carrier event: %v", err)
	}

	steps := []shipment.Status{
		shipment.StatusInTransit,
		shipment.StatusCustoms,
		shipment.StatusOutForDelivery,
		shipment.StatusDelivered,
	}
	for _, next := range steps {
		if err := statusSvc.Transition(ctx, shipment.TransitionParams{
			ShipmentID: sh.ID,
			ActorID:    agentReg.User.ID,
			NextStatus: next,
		}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	// Skipping a step must be rejected.
	if err := statusSvc.Transition(ctx, shipment.TransitionParams{
		ShipmentID: sh.ID,
		ActorID:    agentReg.User.ID,
		NextStatus: shipment.StatusInTransit,
	}); err == nil {
		t.Fatal("expected transition out of delivered to fail")
	}

	tracked, events, err := shipmentSvc.Track(ctx, sh.Reference)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if tracked.Status != shipment.StatusDelivered {
		t.Fatalf("expected delivered, got %s", tracked.Status)
	}
	wantEvents := len(steps) + 1 // carrier scan plus manual transitions
	if len(events) != wantEvents {
		t.Fatalf("expected %d timeline events, got %d", wantEvents, len(events))
	}

	var pendingOutbox int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE status='pending' AND topic=$1`,
		shipment.OutboxTopicStatusChanged).Scan(&pendingOutbox); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if pendingOutbox != wantEvents {
		t.Fatalf("expected %d pending notifications, got %d", wantEvents, pendingOutbox)
	}

	// Drain the outbox through a fake mailer and confirm rows flip to sent.
	outbox := notify.NewPGOutbox(pool)
	mailer := &captureMailer{}
	recipient := func(ctx context.Context, userID string) (string, error) {
		user, err := authSvc.GetUserByID(ctx, userID)
		if err != nil {
			return "", err
		}
		return user.Email, nil
	}
	drainer := notify.NewDrainer(outbox, mailer, recipient, nil, time.Second)
	if err := drainer.DrainOnce(ctx); err != nil {
		t.Fatalf("drain outbox: %v", err)
	}
	if len(mailer.sent) != wantEvents {
		t.Fatalf("expected %d mails, got %d", wantEvents, len(mailer.sent))
	}
	if mailer.sent[0].To != "customer@example.com" {
		t.Fatalf("unexpected recipient %q", mailer.sent[0].To)
	}

	var sent int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status='sent'`).Scan(&sent); err != nil {
		t.Fatalf("count sent: %v", err)
	}
	if sent != wantEvents {
		t.Fatalf("expected %d sent rows, got %d", wantEvents, sent)
	}

	// A claim abandoned mid-send is reclaimed and delivered on a later pass.
	if err := outbox.Enqueue(ctx, shipment.OutboxTopicStatusChanged, map[string]any{
		"shipment_id": sh.ID,
		"reference":   sh.Reference,
		"customer_id": customer.User.ID,
		"previous":    shipment.StatusOutForDelivery,
		"next":        shipment.StatusDelivered,
	}); err != nil {
		t.Fatalf("enqueue stranded row: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`UPDATE outbox SET status='sending', updated_at=now() - interval '10 minutes' WHERE status='pending'`); err != nil {
		t.Fatalf("age stranded claim: %v", err)
	}
	if err := drainer.DrainOnce(ctx); err != nil {
		t.Fatalf("drain reclaimed row: %v", err)
	}
	if len(mailer.sent) != wantEvents+1 {
		t.Fatalf("expected stranded row to be reclaimed and delivered, got %d mails", len(mailer.sent))
	}

	// Booking flow against the same database.
	bookingSvc := booking.NewService(booking.NewRepository(pool))
	req, err := bookingSvc.Create(ctx, booking.CreateParams{
		CustomerID:  customer.User.ID,
		FromAirport: "YYZ",
		ToAirport:   "DAC",
		TravelDate:  time.Now().Add(30 * 24 * time.Hour),
		Passengers:  2,
		Cabin:       booking.CabinEconomy,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := bookingSvc.Quote(ctx, req.ID, agentReg.User.ID, 185000); err != nil {
		t.Fatalf("quote booking: %v", err)
	}
	confirmed, err := bookingSvc.Confirm(ctx, req.ID)
	if err != nil {
		t.Fatalf("confirm booking: %v", err)
	}
	if confirmed.Status != booking.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	// The confirmation notification commits with the status change.
	var confirmRows int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE topic=$1`, booking.OutboxTopicConfirmed).Scan(&confirmRows); err != nil {
		t.Fatalf("count confirmation rows: %v", err)
	}
	if confirmRows != 1 {
		t.Fatalf("expected one confirmation outbox row, got %d", confirmRows)
	}
}

type captureMailer struct {
	sent []notify.Message
}

func (m *captureMailer) Send(ctx context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

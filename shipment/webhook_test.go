package shipment

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestApplyCarrierEvent_Idempotent(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeCarrierRepo{insertErr: ErrDuplicateEventID}
	svc := NewWebhookService(pool, repo)

	ev := CarrierEvent{
		EventID:    "evt-abc",
		Reference:  "CL-CABD-20260801-AAAA",
		NextStatus: StatusInTransit,
	}

	if err := svc.ApplyCarrierEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected nil error on replay, got %v", err)
	}
	if pool.tx == nil {
		t.Fatal("expected Begin to provide transaction")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback on replay")
	}
	if pool.tx.committed {
		t.Error("expected commit to be skipped on replay")
	}
	if repo.applied {
		t.Error("expected status apply to be skipped when event id duplicates")
	}
}

func TestApplyCarrierEvent_Success(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeCarrierRepo{}
	svc := NewWebhookService(pool, repo)

	ev := CarrierEvent{
		EventID:    "evt-123",
		Reference:  "CL-CABD-20260801-AAAA",
		NextStatus: StatusReceived,
		Note:       "scanned at origin depot",
	}

	if err := svc.ApplyCarrierEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !pool.tx.committed {
		t.Error("expected commit to be called")
	}
	if !repo.applied {
		t.Error("expected status apply to run")
	}
	if repo.gotParams.Reference != ev.Reference || repo.gotParams.NextStatus != ev.NextStatus {
		t.Errorf("unexpected apply params: %+v", repo.gotParams)
	}
}

func TestApplyCarrierEvent_Validation(t *testing.T) {
	svc := NewWebhookService(&fakePool{}, &fakeCarrierRepo{})

	cases := []CarrierEvent{
		{Reference: "CL-X", NextStatus: StatusReceived},
		{EventID: "evt-1", NextStatus: StatusReceived},
		{EventID: "evt-1", Reference: "CL-X"},
	}
	for _, ev := range cases {
		if err := svc.ApplyCarrierEvent(context.Background(), ev); err == nil {
			t.Errorf("expected validation error for %+v", ev)
		}
	}
}

func TestApplyCarrierEvent_ApplyErrorRollsBack(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeCarrierRepo{applyErr: ErrUnknownReference}
	svc := NewWebhookService(pool, repo)

	err := svc.ApplyCarrierEvent(context.Background(), CarrierEvent{
		EventID:    "evt-9",
		Reference:  "CL-NOPE",
		NextStatus: StatusReceived,
	})
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	if pool.tx.committed {
		t.Error("expected commit to be skipped on apply failure")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback on apply failure")
	}
}

type fakeCarrierRepo struct {
	insertErr error
	applyErr  error
	applied   bool
	gotParams ApplyStatusParams
}

func (f *fakeCarrierRepo) InsertEventID(ctx context.Context, tx pgx.Tx, eventID string) error {
	return f.insertErr
}

func (f *fakeCarrierRepo) ApplyStatusTx(ctx context.Context, tx pgx.Tx, params ApplyStatusParams) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = true
	f.gotParams = params
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}

package seva

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sevaatlas/auth"
)

var (
	admin     = auth.Identity{Email: "admin@sevaatlas.org", Role: auth.RoleAdmin}
	volunteer = auth.Identity{Email: "volunteer@sevaatlas.org", Role: auth.RoleCoordinator, PrimaryBlock: "Tihidi"}
)

func newTestService(repo Repository) (*Service, *fakePool) {
	pool := &fakePool{}
	return NewService(pool, repo, nil, nil), pool
}

func TestCreate_OpensRequest(t *testing.T) {
	repo := newFakeRepo()
	svc, pool := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateParams{VillageID: 7, Description: " well repair "}, volunteer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusOpen {
		t.Fatalf("expected open, got %s", created.Status)
	}
	if created.Description != "well repair" {
		t.Fatalf("expected trimmed description, got %q", created.Description)
	}
	if created.RequestedBy != volunteer.Email {
		t.Fatalf("expected requester recorded, got %q", created.RequestedBy)
	}
	if !pool.tx.committed {
		t.Fatal("expected transaction committed")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(newFakeRepo())

	cases := []struct {
		name     string
		params   CreateParams
		identity auth.Identity
	}{
		{"anonymous", CreateParams{VillageID: 7, Description: "x"}, auth.Identity{}},
		{"no description", CreateParams{VillageID: 7, Description: "  "}, volunteer},
		{"no village", CreateParams{Description: "x"}, volunteer},
	}
	for _, c := range cases {
		if _, err := svc.Create(context.Background(), c.params, c.identity); err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}

func TestLifecycle_FullPath(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateParams{VillageID: 7, Description: "well repair"}, volunteer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	assigned, err := svc.Assign(context.Background(), created.ID, "sevak@sevaatlas.org", admin)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Status != StatusAssigned || assigned.AssignedTo == nil || *assigned.AssignedTo != "sevak@sevaatlas.org" {
		t.Fatalf("unexpected assigned state: %+v", assigned)
	}

	started, err := svc.Start(context.Background(), created.ID, admin)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", started.Status)
	}

	fulfilled, err := svc.Fulfill(context.Background(), created.ID, admin)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != StatusFulfilled {
		t.Fatalf("expected fulfilled, got %s", fulfilled.Status)
	}

	// terminal
	if _, err := svc.Assign(context.Background(), created.ID, "other@sevaatlas.org", admin); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after fulfilment, got %v", err)
	}
}

func TestStart_RequiresAssignment(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateParams{VillageID: 7, Description: "well repair"}, volunteer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Start(context.Background(), created.ID, admin); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for open -> in_progress, got %v", err)
	}
}

func TestCancel_RequesterOrAdmin(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateParams{VillageID: 7, Description: "well repair"}, volunteer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stranger := auth.Identity{Email: "other@sevaatlas.org", Role: auth.RoleCoordinator, PrimaryBlock: "Bonth"}
	if _, err := svc.Cancel(context.Background(), created.ID, "", stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), created.ID, " no longer needed ", volunteer)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "no longer needed" {
		t.Fatalf("expected trimmed cancel reason, got %v", cancelled.CancelReason)
	}
}

func TestCancel_InProgressImmutable(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateParams{VillageID: 7, Description: "well repair"}, volunteer)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Assign(context.Background(), created.ID, "sevak@sevaatlas.org", admin); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.Start(context.Background(), created.ID, admin); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), created.ID, "", admin); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState cancelling in_progress, got %v", err)
	}
}

// --- fakes ---

type fakeRepo struct {
	requests map[int64]Request
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: make(map[int64]Request), nextID: 1}
}

func (f *fakeRepo) CreateTx(_ context.Context, _ pgx.Tx, req Request) (Request, error) {
	req.ID = f.nextID
	f.nextID++
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeRepo) GetForUpdateTx(_ context.Context, _ pgx.Tx, id int64) (Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (f *fakeRepo) UpdateStatusTx(_ context.Context, _ pgx.Tx, id int64, status Status, assignedTo, cancelReason *string) (Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	req.Status = status
	if assignedTo != nil {
		req.AssignedTo = assignedTo
	}
	req.CancelReason = cancelReason
	f.requests[id] = req
	return req, nil
}

func (f *fakeRepo) List(_ context.Context, filters Filters) ([]Request, error) {
	out := []Request{}
	for _, req := range f.requests {
		if filters.VillageID != 0 && req.VillageID != filters.VillageID {
			continue
		}
		if filters.Status != "" && req.Status != filters.Status {
			continue
		}
		out = append(out, req)
	}
	return out, nil
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

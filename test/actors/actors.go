package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sevaatlas/auth"
	"sevaatlas/fieldworker"
	"sevaatlas/stats"
	"sevaatlas/village"
)

// Submitter hammers the same phone number from a coordinator account. Only the
// first submission may land; the rest must come back as duplicate conflicts.
func Submitter(ctx context.Context, svc *fieldworker.Service, coordinator auth.Identity, phone, villageName, block string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Submit(ctx, fieldworker.SubmitRequest{
			FullName:    fmt.Sprintf("Worker %d", rand.Int63()),
			Phone:       phone,
			VillageName: villageName,
			Block:       block,
		}, coordinator)
		if err != nil && !errors.Is(err, fieldworker.ErrDuplicatePhone) {
			// chaos terminates backends mid-flight, so transport errors are
			// expected noise here; the oracles judge the resulting state
			time.Sleep(50 * time.Millisecond)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Settler approves or rejects whatever pending record it finds. Losing the
// race to another settler must surface as an invalid-transition error, never
// as a double settle.
func Settler(ctx context.Context, pool *pgxpool.Pool, svc *fieldworker.Service, admin auth.Identity, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var id int64
		if err := pool.QueryRow(ctx, `SELECT id FROM field_workers WHERE status = 'pending' ORDER BY random() LIMIT 1`).Scan(&id); err == nil {
			if rand.Intn(2) == 0 {
				_, _ = svc.Approve(ctx, id, admin)
			} else {
				_, _ = svc.Reject(ctx, id, "could not verify details", admin)
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Withdrawer removes its own pending submissions while settlers race to
// approve them.
func Withdrawer(ctx context.Context, pool *pgxpool.Pool, svc *fieldworker.Service, coordinator auth.Identity, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var id int64
		err := pool.QueryRow(ctx, `SELECT id FROM field_workers WHERE status = 'pending' AND submitted_by = $1 ORDER BY random() LIMIT 1`, coordinator.Email).Scan(&id)
		if err == nil {
			_ = svc.Withdraw(ctx, id, coordinator)
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// VillageCreator resolves the same village name concurrently; the unique
// index on (name, block) must collapse the racers onto one row.
func VillageCreator(ctx context.Context, resolver *village.Resolver, name, block string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = resolver.Resolve(ctx, name, block, nil)
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// StatsRefresher recomputes block statistics in a loop. Concurrent refreshers
// contend on the advisory lock; losing is expected.
func StatsRefresher(ctx context.Context, agg *stats.Aggregator, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := agg.Refresh(ctx); err != nil && !errors.Is(err, stats.ErrRefreshInProgress) {
			time.Sleep(100 * time.Millisecond)
		}
		time.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond)
	}
}

package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sevaatlas/geo"
)

// ErrRefreshInProgress signals that another process holds the refresh lock.
var ErrRefreshInProgress = errors.New("stats: refresh already in progress")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Aggregator recomputes per-block statistics as a full batch pass. Concurrent
// in-process calls collapse onto one run via singleflight; an advisory
// transaction lock serializes runs across processes.
type Aggregator struct {
	pool TxBeginner
	repo Repository
	log  *zap.Logger
	now  func() time.Time

	group singleflight.Group
}

func NewAggregator(pool TxBeginner, repo Repository, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		pool: pool,
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// WithClock overrides the timestamp source, for deterministic tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Refresh recomputes every block's row inside one transaction. Running it
// twice over unchanged data yields identical rows apart from computed_at.
func (a *Aggregator) Refresh(ctx context.Context) error {
	_, err, _ := a.group.Do("refresh", func() (any, error) {
		return nil, a.refresh(ctx)
	})
	return err
}

func (a *Aggregator) refresh(ctx context.Context) error {
	started := a.now()

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stats: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := a.repo.TryRefreshLockTx(ctx, tx)
	if err != nil {
		return err
	}
	if !locked {
		return ErrRefreshInProgress
	}

	blocks, err := a.repo.KnownBlocksTx(ctx, tx)
	if err != nil {
		return err
	}

	computedAt := a.now().UTC()
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stats: refresh cancelled: %w", err)
		}

		facts, err := a.repo.BlockFactsTx(ctx, tx, block)
		if err != nil {
			return err
		}
		if err := a.repo.UpsertTx(ctx, tx, Compute(block, facts, computedAt)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stats: commit refresh: %w", err)
	}

	a.log.Info("block statistics refreshed",
		zap.Int("blocks", len(blocks)),
		zap.Duration("took", a.now().Sub(started)))
	return nil
}

// Snapshot returns the stored rows ordered by block name.
func (a *Aggregator) Snapshot(ctx context.Context) ([]BlockStatistics, error) {
	return a.repo.Snapshot(ctx)
}

// Compute derives one block's statistics row from its raw counts.
func Compute(block string, facts BlockFacts, computedAt time.Time) BlockStatistics {
	level, color := ClassifyActivity(facts.ActiveSevaRequests)

	density := 0.0
	if facts.Population > 0 {
		density = float64(facts.TotalSevaRequests) / float64(facts.Population) * 1000
	}

	return BlockStatistics{
		BlockName:             block,
		BlockCode:             geo.NormalizeBlock(block),
		TotalVillages:         facts.TotalVillages,
		Population:            facts.Population,
		ActiveSevaRequests:    facts.ActiveSevaRequests,
		TotalSevaRequests:     facts.TotalSevaRequests,
		FulfilledSevaRequests: facts.FulfilledSevaRequests,
		VolunteerCount:        facts.VolunteerCount,
		ActivityLevel:         level,
		ActivityColor:         color,
		SevaDensity:           density,
		ComputedAt:            computedAt,
	}
}

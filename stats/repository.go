package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// refreshLockID keys the advisory transaction lock serializing refresh runs
// across processes sharing the store.
const refreshLockID = 810264017

// Repository handles data access for block statistics.
type Repository interface {
	TryRefreshLockTx(ctx context.Context, tx pgx.Tx) (bool, error)
	KnownBlocksTx(ctx context.Context, tx pgx.Tx) ([]string, error)
	BlockFactsTx(ctx context.Context, tx pgx.Tx, block string) (BlockFacts, error)
	UpsertTx(ctx context.Context, tx pgx.Tx, stat BlockStatistics) error
	Snapshot(ctx context.Context) ([]BlockStatistics, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed statistics repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TryRefreshLockTx takes the advisory lock for the duration of the
// transaction. A false return means another refresh holds it.
func (r *PGRepository) TryRefreshLockTx(ctx context.Context, tx pgx.Tx) (bool, error) {
	var got bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, refreshLockID).Scan(&got); err != nil {
		return false, fmt.Errorf("stats: acquire refresh lock: %w", err)
	}
	return got, nil
}

// KnownBlocksTx lists every block that has villages or an existing stats row,
// so stale rows keep being recomputed even after their villages move.
func (r *PGRepository) KnownBlocksTx(ctx context.Context, tx pgx.Tx) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT trim(block) FROM villages WHERE trim(block) <> ''
		UNION
		SELECT block_name FROM block_statistics
	`)
	if err != nil {
		return nil, fmt.Errorf("stats: list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("stats: scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *PGRepository) BlockFactsTx(ctx context.Context, tx pgx.Tx, block string) (BlockFacts, error) {
	var facts BlockFacts

	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(population), 0)
		FROM villages
		WHERE lower(trim(block)) = lower(trim($1))
	`, block).Scan(&facts.TotalVillages, &facts.Population); err != nil {
		return BlockFacts{}, fmt.Errorf("stats: village facts for %s: %w", block, err)
	}

	if err := tx.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE sr.status IN ('open', 'assigned', 'in_progress')),
			COUNT(*),
			COUNT(*) FILTER (WHERE sr.status = 'fulfilled')
		FROM seva_requests sr
		JOIN villages v ON v.id = sr.village_id
		WHERE lower(trim(v.block)) = lower(trim($1))
	`, block).Scan(&facts.ActiveSevaRequests, &facts.TotalSevaRequests, &facts.FulfilledSevaRequests); err != nil {
		return BlockFacts{}, fmt.Errorf("stats: seva facts for %s: %w", block, err)
	}

	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM members m
		JOIN villages v ON v.id = m.village_id
		WHERE m.verified AND lower(trim(v.block)) = lower(trim($1))
	`, block).Scan(&facts.VolunteerCount); err != nil {
		return BlockFacts{}, fmt.Errorf("stats: volunteer facts for %s: %w", block, err)
	}

	return facts, nil
}

// UpsertTx overwrites the block's row in full; there is no incremental merge.
func (r *PGRepository) UpsertTx(ctx context.Context, tx pgx.Tx, stat BlockStatistics) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO block_statistics (block_name, block_code, total_villages, population,
			active_seva_requests, total_seva_requests, fulfilled_seva_requests,
			volunteer_count, activity_level, activity_color, seva_density, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (block_name) DO UPDATE SET
			block_code = EXCLUDED.block_code,
			total_villages = EXCLUDED.total_villages,
			population = EXCLUDED.population,
			active_seva_requests = EXCLUDED.active_seva_requests,
			total_seva_requests = EXCLUDED.total_seva_requests,
			fulfilled_seva_requests = EXCLUDED.fulfilled_seva_requests,
			volunteer_count = EXCLUDED.volunteer_count,
			activity_level = EXCLUDED.activity_level,
			activity_color = EXCLUDED.activity_color,
			seva_density = EXCLUDED.seva_density,
			computed_at = EXCLUDED.computed_at
	`,
		stat.BlockName, stat.BlockCode, stat.TotalVillages, stat.Population,
		stat.ActiveSevaRequests, stat.TotalSevaRequests, stat.FulfilledSevaRequests,
		stat.VolunteerCount, stat.ActivityLevel, stat.ActivityColor,
		stat.SevaDensity, stat.ComputedAt,
	); err != nil {
		return fmt.Errorf("stats: upsert %s: %w", stat.BlockName, err)
	}
	return nil
}

func (r *PGRepository) Snapshot(ctx context.Context) ([]BlockStatistics, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT block_name, block_code, total_villages, population,
			active_seva_requests, total_seva_requests, fulfilled_seva_requests,
			volunteer_count, activity_level, activity_color, seva_density, computed_at
		FROM block_statistics
		ORDER BY block_name
	`)
	if err != nil {
		return nil, fmt.Errorf("stats: query snapshot: %w", err)
	}
	defer rows.Close()

	list := []BlockStatistics{}
	for rows.Next() {
		var s BlockStatistics
		if err := rows.Scan(
			&s.BlockName, &s.BlockCode, &s.TotalVillages, &s.Population,
			&s.ActiveSevaRequests, &s.TotalSevaRequests, &s.FulfilledSevaRequests,
			&s.VolunteerCount, &s.ActivityLevel, &s.ActivityColor,
			&s.SevaDensity, &s.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("stats: scan snapshot row: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

package village

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the referenced village does not exist.
	ErrNotFound = errors.New("village: not found")
	// ErrAlreadyExists signals an insert that lost the (name, block) race.
	ErrAlreadyExists = errors.New("village: already exists")
)

// Repository handles data access for villages.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Village, error)
	GetByNameBlock(ctx context.Context, name, block string) (Village, error)
	ListByBlock(ctx context.Context, block string) ([]Village, error)
	Insert(ctx context.Context, v Village) (Village, error)
	UpdateGeometry(ctx context.Context, id int64, geom Geometry, geoPending bool) (Village, error)
}

const villageColumns = `id, name, block, district, state, lat, lng, south, west, north, east, population, show_pin, geo_pending, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed village repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetByID(ctx context.Context, id int64) (Village, error) {
	query := fmt.Sprintf(`SELECT %s FROM villages WHERE id = $1`, villageColumns)

	v, err := scanVillage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Village{}, ErrNotFound
		}
		return Village{}, fmt.Errorf("village: get by id: %w", err)
	}
	return v, nil
}

// GetByNameBlock looks a village up by normalized-equal (name, block).
func (r *PGRepository) GetByNameBlock(ctx context.Context, name, block string) (Village, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM villages
		WHERE lower(trim(name)) = lower(trim($1)) AND lower(trim(block)) = lower(trim($2))
	`, villageColumns)

	v, err := scanVillage(r.pool.QueryRow(ctx, query, name, block))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Village{}, ErrNotFound
		}
		return Village{}, fmt.Errorf("village: get by name/block: %w", err)
	}
	return v, nil
}

func (r *PGRepository) ListByBlock(ctx context.Context, block string) ([]Village, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM villages
		WHERE lower(trim(block)) = lower(trim($1))
		ORDER BY name
	`, villageColumns)

	rows, err := r.pool.Query(ctx, query, block)
	if err != nil {
		return nil, fmt.Errorf("village: list by block: %w", err)
	}
	defer rows.Close()

	list := []Village{}
	for rows.Next() {
		v, err := scanVillage(rows)
		if err != nil {
			return nil, fmt.Errorf("village: scan list row: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// Insert creates a village row. The unique index on (lower(name),
// lower(block)) closes the concurrent-creation race: losing an insert maps to
// ErrAlreadyExists so the caller can re-fetch the winner's row.
func (r *PGRepository) Insert(ctx context.Context, v Village) (Village, error) {
	query := fmt.Sprintf(`
		INSERT INTO villages (name, block, district, state, lat, lng, south, west, north, east, population, show_pin, geo_pending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING %s
	`, villageColumns)

	created, err := scanVillage(r.pool.QueryRow(ctx, query,
		v.Name, v.Block, v.District, v.State,
		v.Lat, v.Lng, v.South, v.West, v.North, v.East,
		v.Population, v.ShowPin, v.GeoPending,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Village{}, ErrAlreadyExists
		}
		return Village{}, fmt.Errorf("village: insert: %w", err)
	}
	return created, nil
}

// UpdateGeometry back-fills coordinates once stronger data is available.
func (r *PGRepository) UpdateGeometry(ctx context.Context, id int64, geom Geometry, geoPending bool) (Village, error) {
	query := fmt.Sprintf(`
		UPDATE villages
		SET lat = $2, lng = $3, south = $4, west = $5, north = $6, east = $7,
		    geo_pending = $8,
		    show_pin = NOT $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, villageColumns)

	v, err := scanVillage(r.pool.QueryRow(ctx, query, id,
		geom.Lat, geom.Lng, geom.South, geom.West, geom.North, geom.East, geoPending,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Village{}, ErrNotFound
		}
		return Village{}, fmt.Errorf("village: update geometry: %w", err)
	}
	return v, nil
}

func scanVillage(row pgx.Row) (Village, error) {
	var v Village
	return v, row.Scan(
		&v.ID,
		&v.Name,
		&v.Block,
		&v.District,
		&v.State,
		&v.Lat,
		&v.Lng,
		&v.South,
		&v.West,
		&v.North,
		&v.East,
		&v.Population,
		&v.ShowPin,
		&v.GeoPending,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
}

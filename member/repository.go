package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested member does not exist.
var ErrNotFound = errors.New("member: not found")

// Repository provides access to member rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a member by its primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Member, error) {
	const query = `
		SELECT id, full_name, phone, village_id, verified, created_at
		FROM members
		WHERE id = $1
	`

	var m Member
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.FullName,
		&m.Phone,
		&m.VillageID,
		&m.Verified,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("member: query by id: %w", err)
	}

	return m, nil
}

// ListByVillage fetches up to limit members of a village ordered by name.
func (r *Repository) ListByVillage(ctx context.Context, villageID int64, limit int) ([]Member, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, full_name, phone, village_id, verified, created_at
		FROM members
		WHERE village_id = $1
		ORDER BY full_name ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, villageID, limit)
	if err != nil {
		return nil, fmt.Errorf("member: list: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0, limit)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.FullName, &m.Phone, &m.VillageID, &m.Verified, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("member: scan row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("member: iterate rows: %w", err)
	}

	return members, nil
}

// Insert registers a new, unverified member.
func (r *Repository) Insert(ctx context.Context, m Member) (Member, error) {
	const query = `
		INSERT INTO members (full_name, phone, village_id, verified)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, full_name, phone, village_id, verified, created_at
	`

	var created Member
	err := r.pool.QueryRow(ctx, query, m.FullName, m.Phone, m.VillageID).Scan(
		&created.ID,
		&created.FullName,
		&created.Phone,
		&created.VillageID,
		&created.Verified,
		&created.CreatedAt,
	)
	if err != nil {
		return Member{}, fmt.Errorf("member: insert: %w", err)
	}

	return created, nil
}

// SetVerified flips a member's verified flag.
func (r *Repository) SetVerified(ctx context.Context, id int64, verified bool) (Member, error) {
	const query = `
		UPDATE members SET verified = $2
		WHERE id = $1
		RETURNING id, full_name, phone, village_id, verified, created_at
	`

	var m Member
	err := r.pool.QueryRow(ctx, query, id, verified).Scan(
		&m.ID,
		&m.FullName,
		&m.Phone,
		&m.VillageID,
		&m.Verified,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("member: set verified: %w", err)
	}

	return m, nil
}

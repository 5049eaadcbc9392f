package seva

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested seva request does not exist.
var ErrNotFound = errors.New("seva: not found")

// Repository persists seva requests. Mutations run inside the caller's
// transaction.
type Repository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req Request) (Request, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Request, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status Status, assignedTo, cancelReason *string) (Request, error)
	List(ctx context.Context, filters Filters) ([]Request, error)
}

const requestColumns = `id, village_id, description, status, requested_by, assigned_to, cancel_reason, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed seva repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateTx(ctx context.Context, tx pgx.Tx, req Request) (Request, error) {
	query := fmt.Sprintf(`
		INSERT INTO seva_requests (village_id, description, status, requested_by)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, requestColumns)

	created, err := scanRequest(tx.QueryRow(ctx, query, req.VillageID, req.Description, req.Status, req.RequestedBy))
	if err != nil {
		return Request{}, fmt.Errorf("seva: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM seva_requests WHERE id = $1 FOR UPDATE`, requestColumns)

	req, err := scanRequest(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("seva: lock row: %w", err)
	}
	return req, nil
}

func (r *PGRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status Status, assignedTo, cancelReason *string) (Request, error) {
	query := fmt.Sprintf(`
		UPDATE seva_requests
		SET status = $2,
			assigned_to = COALESCE($3, assigned_to),
			cancel_reason = $4,
			updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, requestColumns)

	req, err := scanRequest(tx.QueryRow(ctx, query, id, status, assignedTo, cancelReason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("seva: update status: %w", err)
	}
	return req, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Request, error) {
	base := fmt.Sprintf(`SELECT %s FROM seva_requests`, requestColumns)

	clauses := []string{}
	args := []any{}
	if filters.VillageID != 0 {
		args = append(args, filters.VillageID)
		clauses = append(clauses, fmt.Sprintf("village_id = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(clauses) > 0 {
		base += " WHERE " + strings.Join(clauses, " AND ")
	}
	base += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("seva: list: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("seva: scan row: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID,
		&req.VillageID,
		&req.Description,
		&req.Status,
		&req.RequestedBy,
		&req.AssignedTo,
		&req.CancelReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	return req, err
}

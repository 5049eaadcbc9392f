package fieldworker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the referenced field worker does not exist.
	ErrNotFound = errors.New("fieldworker: not found")
	// ErrDuplicatePhone signals an active record already carrying the phone
	// without a duplicate-exception reason.
	ErrDuplicatePhone = errors.New("fieldworker: phone already registered")
)

// Repository handles data access for field workers. Mutations take the
// caller's transaction so the workflow commits atomically.
type Repository interface {
	InsertTx(ctx context.Context, tx pgx.Tx, fw FieldWorker) (FieldWorker, error)
	ActivePhoneExistsTx(ctx context.Context, tx pgx.Tx, phone string) (bool, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (FieldWorker, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status Status, approvedBy string, rejectReason *string) (FieldWorker, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error
	List(ctx context.Context, filter ListFilter) ([]FieldWorker, error)
}

const fieldWorkerColumns = `id, full_name, phone, whatsapp_phone, address, designation, village_id, block, status,
	submitted_by, approved_by, approved_at, reject_reason, duplicate_reason, duplicate_of_phone, active, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed field-worker repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertTx creates a pending record. The partial unique index on (phone)
// WHERE active AND duplicate_reason IS NULL backs the duplicate invariant, so
// a lost check-then-insert race still surfaces as ErrDuplicatePhone.
func (r *PGRepository) InsertTx(ctx context.Context, tx pgx.Tx, fw FieldWorker) (FieldWorker, error) {
	query := fmt.Sprintf(`
		INSERT INTO field_workers (full_name, phone, whatsapp_phone, address, designation, village_id, block, status,
			submitted_by, duplicate_reason, duplicate_of_phone, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s
	`, fieldWorkerColumns)

	created, err := scanFieldWorker(tx.QueryRow(ctx, query,
		fw.FullName, fw.Phone, fw.WhatsappPhone, fw.Address, fw.Designation,
		fw.VillageID, fw.Block, fw.Status, fw.SubmittedBy,
		fw.DuplicateReason, fw.DuplicateOfPhone, fw.Active,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return FieldWorker{}, fmt.Errorf("%w: %s", ErrDuplicatePhone, fw.Phone)
		}
		return FieldWorker{}, fmt.Errorf("fieldworker: insert: %w", err)
	}
	return created, nil
}

// ActivePhoneExistsTx reports whether an active record with the phone exists.
func (r *PGRepository) ActivePhoneExistsTx(ctx context.Context, tx pgx.Tx, phone string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM field_workers WHERE phone = $1 AND active)
	`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("fieldworker: check phone: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (FieldWorker, error) {
	query := fmt.Sprintf(`SELECT %s FROM field_workers WHERE id = $1 FOR UPDATE`, fieldWorkerColumns)

	fw, err := scanFieldWorker(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FieldWorker{}, ErrNotFound
		}
		return FieldWorker{}, fmt.Errorf("fieldworker: get for update: %w", err)
	}
	return fw, nil
}

func (r *PGRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int64, status Status, approvedBy string, rejectReason *string) (FieldWorker, error) {
	query := fmt.Sprintf(`
		UPDATE field_workers
		SET status = $2,
		    approved_by = $3,
		    approved_at = now(),
		    reject_reason = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, fieldWorkerColumns)

	fw, err := scanFieldWorker(tx.QueryRow(ctx, query, id, status, approvedBy, rejectReason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FieldWorker{}, ErrNotFound
		}
		return FieldWorker{}, fmt.Errorf("fieldworker: update status: %w", err)
	}
	return fw, nil
}

func (r *PGRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM field_workers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("fieldworker: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]FieldWorker, error) {
	base := fmt.Sprintf(`SELECT %s FROM field_workers`, fieldWorkerColumns)
	where := []string{"1=1"}
	args := []any{}

	if filter.SubmittedBy != "" {
		where = append(where, fmt.Sprintf("submitted_by=$%d", len(args)+1))
		args = append(args, filter.SubmittedBy)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Block != "" {
		where = append(where, fmt.Sprintf("lower(trim(block))=lower(trim($%d))", len(args)+1))
		args = append(args, filter.Block)
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC", base, strings.Join(where, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fieldworker: query list: %w", err)
	}
	defer rows.Close()

	list := []FieldWorker{}
	for rows.Next() {
		fw, err := scanFieldWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("fieldworker: scan list row: %w", err)
		}
		list = append(list, fw)
	}
	return list, rows.Err()
}

func scanFieldWorker(row pgx.Row) (FieldWorker, error) {
	var fw FieldWorker
	return fw, row.Scan(
		&fw.ID,
		&fw.FullName,
		&fw.Phone,
		&fw.WhatsappPhone,
		&fw.Address,
		&fw.Designation,
		&fw.VillageID,
		&fw.Block,
		&fw.Status,
		&fw.SubmittedBy,
		&fw.ApprovedBy,
		&fw.ApprovedAt,
		&fw.RejectReason,
		&fw.DuplicateReason,
		&fw.DuplicateOfPhone,
		&fw.Active,
		&fw.CreatedAt,
		&fw.UpdatedAt,
	)
}

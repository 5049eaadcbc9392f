package fieldworker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"sevaatlas/audit"
	"sevaatlas/auth"
	"sevaatlas/village"
)

var (
	// ErrInvalidState signals a transition requested from a non-pending status.
	ErrInvalidState = errors.New("fieldworker: invalid status transition")
	// ErrReasonRequired signals a rejection without a reason.
	ErrReasonRequired = errors.New("fieldworker: rejection reason required")
	// ErrForbidden signals an actor without rights over the record.
	ErrForbidden = errors.New("fieldworker: forbidden")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// VillageResolver finds or creates the village a submission references.
type VillageResolver interface {
	Resolve(ctx context.Context, name, blockHint string, explicitID *int64) (village.Village, error)
}

// BlockGuard decides block-scoped authorization.
type BlockGuard interface {
	Authorize(identity auth.Identity, blockName string) error
}

// Service owns the field-worker lifecycle: submission with duplicate-phone
// detection, administrative approval and rejection, and submitter withdrawal.
type Service struct {
	pool     TxBeginner
	repo     Repository
	villages VillageResolver
	guard    BlockGuard
	audit    audit.Writer
	log      *zap.Logger
}

func NewService(pool TxBeginner, repo Repository, villages VillageResolver, guard BlockGuard, auditWriter audit.Writer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		villages: villages,
		guard:    guard,
		audit:    auditWriter,
		log:      log,
	}
}

// Submit validates block access, resolves the village, performs the
// duplicate-phone check, and persists a pending record. Nothing is written
// when any step fails.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, identity auth.Identity) (FieldWorker, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return FieldWorker{}, fmt.Errorf("fieldworker: full name required")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return FieldWorker{}, fmt.Errorf("fieldworker: phone required")
	}
	if strings.TrimSpace(req.VillageName) == "" {
		return FieldWorker{}, fmt.Errorf("fieldworker: village name required")
	}

	v, err := s.villages.Resolve(ctx, req.VillageName, req.Block, req.VillageID)
	if err != nil {
		return FieldWorker{}, err
	}

	// The resolved village's block is the effective block, not the hint.
	if err := s.guard.Authorize(identity, v.Block); err != nil {
		return FieldWorker{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return FieldWorker{}, fmt.Errorf("fieldworker: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	duplicateReason := nullable(req.DuplicateReason)
	if duplicateReason == nil {
		exists, err := s.repo.ActivePhoneExistsTx(ctx, tx, phone)
		if err != nil {
			return FieldWorker{}, err
		}
		if exists {
			return FieldWorker{}, fmt.Errorf("%w: %s", ErrDuplicatePhone, phone)
		}
	}

	created, err := s.repo.InsertTx(ctx, tx, FieldWorker{
		FullName:         strings.TrimSpace(req.FullName),
		Phone:            phone,
		WhatsappPhone:    strings.TrimSpace(req.WhatsappPhone),
		Address:          strings.TrimSpace(req.Address),
		Designation:      strings.TrimSpace(req.Designation),
		VillageID:        v.ID,
		Block:            v.Block,
		Status:           StatusPending,
		SubmittedBy:      identity.Email,
		DuplicateReason:  duplicateReason,
		DuplicateOfPhone: nullable(req.DuplicateOfPhone),
		Active:           true,
	})
	if err != nil {
		return FieldWorker{}, err
	}

	if err := s.appendAudit(ctx, tx, created.ID, "submit", identity.Email, map[string]any{
		"phone":   created.Phone,
		"village": v.Name,
		"block":   created.Block,
	}); err != nil {
		return FieldWorker{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FieldWorker{}, fmt.Errorf("fieldworker: commit submit: %w", err)
	}

	s.log.Info("field worker submitted",
		zap.Int64("field_worker_id", created.ID),
		zap.String("block", created.Block),
		zap.String("submitted_by", identity.Email))
	return created, nil
}

// Approve settles a pending record. Admin only.
func (s *Service) Approve(ctx context.Context, id int64, approver auth.Identity) (FieldWorker, error) {
	return s.settle(ctx, id, StatusApproved, nil, approver)
}

// Reject settles a pending record with a mandatory reason. Admin only.
func (s *Service) Reject(ctx context.Context, id int64, reason string, approver auth.Identity) (FieldWorker, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return FieldWorker{}, ErrReasonRequired
	}
	return s.settle(ctx, id, StatusRejected, &trimmed, approver)
}

func (s *Service) settle(ctx context.Context, id int64, next Status, reason *string, approver auth.Identity) (FieldWorker, error) {
	if !approver.IsAdmin() {
		return FieldWorker{}, fmt.Errorf("%w: %s requires admin", ErrForbidden, next)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return FieldWorker{}, fmt.Errorf("fieldworker: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return FieldWorker{}, err
	}
	if !current.Status.CanTransition(next) {
		return FieldWorker{}, fmt.Errorf("%w: %s -> %s", ErrInvalidState, current.Status, next)
	}

	updated, err := s.repo.UpdateStatusTx(ctx, tx, id, next, approver.Email, reason)
	if err != nil {
		return FieldWorker{}, err
	}

	diff := map[string]any{"previous_status": string(current.Status), "next_status": string(next)}
	if reason != nil {
		diff["reason"] = *reason
	}
	if err := s.appendAudit(ctx, tx, id, string(next), approver.Email, diff); err != nil {
		return FieldWorker{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FieldWorker{}, fmt.Errorf("fieldworker: commit %s: %w", next, err)
	}

	s.log.Info("field worker settled",
		zap.Int64("field_worker_id", id),
		zap.String("status", string(next)),
		zap.String("approved_by", approver.Email))
	return updated, nil
}

// Withdraw deletes a still-pending record. Only the original submitter or an
// admin may withdraw; settled records are immutable.
func (s *Service) Withdraw(ctx context.Context, id int64, requester auth.Identity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("fieldworker: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if !requester.IsAdmin() && current.SubmittedBy != requester.Email {
		return fmt.Errorf("%w: only the submitter or an admin may withdraw", ErrForbidden)
	}
	if current.Status != StatusPending {
		return fmt.Errorf("%w: cannot withdraw %s record", ErrInvalidState, current.Status)
	}

	if err := s.repo.DeleteTx(ctx, tx, id); err != nil {
		return err
	}
	if err := s.appendAudit(ctx, tx, id, "withdraw", requester.Email, map[string]any{
		"phone": current.Phone,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("fieldworker: commit withdraw: %w", err)
	}

	s.log.Info("field worker withdrawn",
		zap.Int64("field_worker_id", id),
		zap.String("requested_by", requester.Email))
	return nil
}

// List returns field workers visible to the identity: everything for admins,
// otherwise only the caller's own submissions.
func (s *Service) List(ctx context.Context, filter ListFilter, identity auth.Identity) ([]FieldWorker, error) {
	if identity.Email == "" {
		return nil, auth.ErrNotAuthenticated
	}
	if !identity.IsAdmin() {
		filter.SubmittedBy = identity.Email
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) appendAudit(ctx context.Context, tx pgx.Tx, id int64, action, actor string, diff map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Append(ctx, tx, "field_workers", id, action, actor, diff)
}

func nullable(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

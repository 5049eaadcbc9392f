package seva

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"sevaatlas/audit"
	"sevaatlas/auth"
)

var (
	// ErrInvalidState signals a transition the lifecycle does not allow.
	ErrInvalidState = errors.New("seva: invalid status transition")
	// ErrForbidden signals an actor without rights over the request.
	ErrForbidden = errors.New("seva: forbidden")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service owns the seva-request lifecycle. Open, assigned and in-progress
// requests drive the block activity classification.
type Service struct {
	pool  TxBeginner
	repo  Repository
	audit audit.Writer
	log   *zap.Logger
}

func NewService(pool TxBeginner, repo Repository, auditWriter audit.Writer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		pool:  pool,
		repo:  repo,
		audit: auditWriter,
		log:   log,
	}
}

// Create opens a new seva request for a village.
func (s *Service) Create(ctx context.Context, params CreateParams, identity auth.Identity) (Request, error) {
	if identity.Email == "" {
		return Request{}, auth.ErrNotAuthenticated
	}
	description := strings.TrimSpace(params.Description)
	if description == "" {
		return Request{}, fmt.Errorf("seva: description required")
	}
	if params.VillageID == 0 {
		return Request{}, fmt.Errorf("seva: village id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("seva: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.CreateTx(ctx, tx, Request{
		VillageID:   params.VillageID,
		Description: description,
		Status:      StatusOpen,
		RequestedBy: identity.Email,
	})
	if err != nil {
		return Request{}, err
	}

	if err := s.appendAudit(ctx, tx, created.ID, "create", identity.Email, map[string]any{
		"village_id": created.VillageID,
	}); err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("seva: commit create: %w", err)
	}

	s.log.Info("seva request opened",
		zap.Int64("seva_request_id", created.ID),
		zap.Int64("village_id", created.VillageID),
		zap.String("requested_by", identity.Email))
	return created, nil
}

// Assign moves an open request to assigned and records the assignee.
func (s *Service) Assign(ctx context.Context, id int64, assignee string, identity auth.Identity) (Request, error) {
	trimmed := strings.TrimSpace(assignee)
	if trimmed == "" {
		return Request{}, fmt.Errorf("seva: assignee required")
	}
	return s.transition(ctx, id, StatusAssigned, &trimmed, nil, identity)
}

// Start moves an assigned request to in progress.
func (s *Service) Start(ctx context.Context, id int64, identity auth.Identity) (Request, error) {
	return s.transition(ctx, id, StatusInProgress, nil, nil, identity)
}

// Fulfill completes an in-progress request.
func (s *Service) Fulfill(ctx context.Context, id int64, identity auth.Identity) (Request, error) {
	return s.transition(ctx, id, StatusFulfilled, nil, nil, identity)
}

// Cancel closes an open or assigned request. Only the requester or an admin
// may cancel.
func (s *Service) Cancel(ctx context.Context, id int64, reason string, identity auth.Identity) (Request, error) {
	var cancelReason *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		cancelReason = &trimmed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("seva: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return Request{}, err
	}
	if !identity.IsAdmin() && current.RequestedBy != identity.Email {
		return Request{}, fmt.Errorf("%w: only the requester or an admin may cancel", ErrForbidden)
	}
	if !current.Status.CanTransition(StatusCancelled) {
		return Request{}, fmt.Errorf("%w: %s -> %s", ErrInvalidState, current.Status, StatusCancelled)
	}

	updated, err := s.repo.UpdateStatusTx(ctx, tx, id, StatusCancelled, nil, cancelReason)
	if err != nil {
		return Request{}, err
	}

	diff := map[string]any{"previous_status": string(current.Status)}
	if cancelReason != nil {
		diff["reason"] = *cancelReason
	}
	if err := s.appendAudit(ctx, tx, id, "cancel", identity.Email, diff); err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("seva: commit cancel: %w", err)
	}
	return updated, nil
}

// List returns seva requests matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Request, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) transition(ctx context.Context, id int64, next Status, assignedTo, cancelReason *string, identity auth.Identity) (Request, error) {
	if identity.Email == "" {
		return Request{}, auth.ErrNotAuthenticated
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("seva: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return Request{}, err
	}
	if !current.Status.CanTransition(next) {
		return Request{}, fmt.Errorf("%w: %s -> %s", ErrInvalidState, current.Status, next)
	}

	updated, err := s.repo.UpdateStatusTx(ctx, tx, id, next, assignedTo, cancelReason)
	if err != nil {
		return Request{}, err
	}

	diff := map[string]any{"previous_status": string(current.Status), "next_status": string(next)}
	if assignedTo != nil {
		diff["assigned_to"] = *assignedTo
	}
	if err := s.appendAudit(ctx, tx, id, string(next), identity.Email, diff); err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("seva: commit %s: %w", next, err)
	}

	s.log.Info("seva request transitioned",
		zap.Int64("seva_request_id", id),
		zap.String("status", string(next)))
	return updated, nil
}

func (s *Service) appendAudit(ctx context.Context, tx pgx.Tx, id int64, action, actor string, diff map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Append(ctx, tx, "seva_requests", id, action, actor, diff)
}

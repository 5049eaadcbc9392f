package member

import (
	"context"
	"errors"
	"strings"

	"sevaatlas/auth"
)

var (
	// ErrNameRequired signals a registration without a member name.
	ErrNameRequired = errors.New("member: name is required")
	// ErrForbidden signals the caller may not verify members.
	ErrForbidden = errors.New("member: operation not permitted")
)

// Store abstracts repository operations for the service.
type Store interface {
	GetByID(ctx context.Context, id int64) (Member, error)
	ListByVillage(ctx context.Context, villageID int64, limit int) ([]Member, error)
	Insert(ctx context.Context, m Member) (Member, error)
	SetVerified(ctx context.Context, id int64, verified bool) (Member, error)
}

// Service exposes business-level member operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Register records a new member. Members start unverified and do not count
// toward block statistics until an admin verifies them.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Member, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return Member{}, ErrNameRequired
	}
	return s.repo.Insert(ctx, Member{
		FullName:  name,
		Phone:     strings.TrimSpace(req.Phone),
		VillageID: req.VillageID,
	})
}

// Verify marks a member as verified. Admin only.
func (s *Service) Verify(ctx context.Context, id int64, identity auth.Identity) (Member, error) {
	if !identity.IsAdmin() {
		return Member{}, ErrForbidden
	}
	return s.repo.SetVerified(ctx, id, true)
}

// GetByID returns the member for the given identifier.
func (s *Service) GetByID(ctx context.Context, id int64) (Member, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByVillage returns up to limit members of a village.
func (s *Service) ListByVillage(ctx context.Context, villageID int64, limit int) ([]Member, error) {
	return s.repo.ListByVillage(ctx, villageID, limit)
}

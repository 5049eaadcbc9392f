package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated signals a missing or invalid identity.
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	// ErrBlockAccessDenied signals an authenticated identity acting outside
	// its assigned blocks.
	ErrBlockAccessDenied = errors.New("auth: block access denied")
)

// Guard decides whether an identity may act on a given block. Admins are
// unrestricted; coordinators are limited to their primary block plus the
// comma-separated assigned list, with the session block list as a fallback
// when the richer user record was not loaded.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// Authorize returns nil when identity may act on blockName, and an error
// wrapping ErrBlockAccessDenied otherwise. It never silently grants access:
// any role/block combination not explicitly allowed is denied.
func (g *Guard) Authorize(identity Identity, blockName string) error {
	if identity.Email == "" || identity.Role == "" {
		return ErrNotAuthenticated
	}
	if identity.IsAdmin() {
		return nil
	}
	if identity.Role != RoleCoordinator {
		return fmt.Errorf("%w: role %q cannot act on blocks", ErrBlockAccessDenied, identity.Role)
	}

	target := normalizeBlock(blockName)
	if target == "" {
		return fmt.Errorf("%w: empty block name", ErrBlockAccessDenied)
	}
	for _, b := range identity.Blocks() {
		if b == target {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no access to %s block", ErrBlockAccessDenied, identity.Email, blockName)
}

package auth

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordinator"
)

// User is the domain representation of a registered user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID             string
	Email          string
	FullName       string
	PasswordHash   string
	Role           Role
	PrimaryBlock   string
	AssignedBlocks string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity is the authenticated caller passed by value into the core
// services. PrimaryBlock and AssignedBlocks come from the users table when it
// was consulted; SessionBlocks carries the lightweight block list embedded in
// the session token and is only used as a fallback.
type Identity struct {
	Email          string
	Role           Role
	PrimaryBlock   string
	AssignedBlocks string
	SessionBlocks  string
}

// Identity projects the persisted user into the request-scoped identity.
func (u User) Identity() Identity {
	return Identity{
		Email:          u.Email,
		Role:           u.Role,
		PrimaryBlock:   u.PrimaryBlock,
		AssignedBlocks: u.AssignedBlocks,
	}
}

// IsAdmin reports whether the identity carries unrestricted access.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Blocks returns the normalized block names this identity is scoped to.
// Admin identities are not block-scoped and return nil.
func (i Identity) Blocks() []string {
	if i.IsAdmin() {
		return nil
	}
	blocks := parseBlockList(i.AssignedBlocks)
	if b := normalizeBlock(i.PrimaryBlock); b != "" {
		blocks = append(blocks, b)
	}
	if len(blocks) == 0 {
		blocks = parseBlockList(i.SessionBlocks)
	}
	return blocks
}

// parseBlockList splits a comma-separated block list, trimming whitespace and
// discarding empty segments.
func parseBlockList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if b := normalizeBlock(part); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func normalizeBlock(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	Role           Role   `json:"role"`
	PrimaryBlock   string `json:"primary_block"`
	AssignedBlocks string `json:"assigned_blocks"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

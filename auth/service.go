package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
)

const sessionTTL = 7 * 24 * time.Hour

// Service handles authentication business logic and identity resolution.
type Service struct {
	repo          Repository
	sessionSecret []byte
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new authentication service.
func NewService(repo Repository, sessionSecret string) *Service {
	return &Service{
		repo:          repo,
		sessionSecret: []byte(sessionSecret),
	}
}

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" {
		return nil, fmt.Errorf("auth: email and full_name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleCoordinator
	}
	if !isValidRole(role) {
		return nil, fmt.Errorf("auth: invalid role %q", role)
	}
	if role == RoleCoordinator && strings.TrimSpace(req.PrimaryBlock) == "" {
		return nil, fmt.Errorf("auth: coordinators require a primary block")
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:          req.Email,
		FullName:       req.FullName,
		PasswordHash:   string(passwordHash),
		Role:           role,
		PrimaryBlock:   strings.TrimSpace(req.PrimaryBlock),
		AssignedBlocks: strings.TrimSpace(req.AssignedBlocks),
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates a user and returns a signed session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// IdentityFor loads the richer user record for an email so the guard can see
// the assigned blocks, not just the session payload.
func (s *Service) IdentityFor(ctx context.Context, email string) (Identity, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrNotAuthenticated
		}
		return Identity{}, err
	}
	return user.Identity(), nil
}

// VerifyToken validates a session token and returns the identity it carries.
// The returned identity only holds the lightweight session block list; use
// IdentityFor when the assigned-blocks record is needed.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.sessionSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: parse token: %v", ErrNotAuthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrNotAuthenticated
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return Identity{}, fmt.Errorf("%w: invalid email claim", ErrNotAuthenticated)
	}
	roleStr, ok := claims["role"].(string)
	if !ok || !isValidRole(Role(roleStr)) {
		return Identity{}, fmt.Errorf("%w: invalid role claim", ErrNotAuthenticated)
	}
	blocks, _ := claims["blocks"].(string)

	return Identity{
		Email:         email,
		Role:          Role(roleStr),
		SessionBlocks: blocks,
	}, nil
}

// generateToken creates a session token for the user. The blocks claim is the
// lightweight fallback consumed by Guard when the user record is unavailable.
func (s *Service) generateToken(user User) (string, error) {
	blocks := user.AssignedBlocks
	if user.PrimaryBlock != "" {
		if blocks != "" {
			blocks += ","
		}
		blocks += user.PrimaryBlock
	}

	claims := jwt.MapClaims{
		"email":  user.Email,
		"role":   user.Role,
		"blocks": blocks,
		"exp":    time.Now().Add(sessionTTL).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.sessionSecret)
}

func isValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleCoordinator:
		return true
	default:
		return false
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:        "asha@example.com",
		Password:     "supersafe",
		FullName:     "Asha Coordinator",
		PrimaryBlock: "Tihidi",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleCoordinator {
		t.Fatalf("register: expected default role %s got %s", RoleCoordinator, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	identity, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if identity.Email != user.Email {
		t.Fatalf("verify token: expected %q got %q", user.Email, identity.Email)
	}
	if identity.Role != RoleCoordinator {
		t.Fatalf("verify token: expected role %s got %s", RoleCoordinator, identity.Role)
	}
	if identity.SessionBlocks != "Tihidi" {
		t.Fatalf("verify token: expected session blocks %q got %q", "Tihidi", identity.SessionBlocks)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:        "asha@example.com",
		Password:     "short",
		FullName:     "Asha Coordinator",
		PrimaryBlock: "Tihidi",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		FullName: "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "noblock@example.com",
		Password: "strongpassword",
		FullName: "No Block",
		Role:     RoleCoordinator,
	}); err == nil {
		t.Fatal("expected validation error for coordinator without primary block")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:        "asha@example.com",
		Password:     "strongpassword",
		FullName:     "Asha Coordinator",
		PrimaryBlock: "Tihidi",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_IdentityFor(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:          "bhadrak@example.com",
		Password:       "strongpassword",
		FullName:       "Bhadrak Coordinator",
		PrimaryBlock:   "Bhadrak",
		AssignedBlocks: "Tihidi, Basudevpur",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	identity, err := svc.IdentityFor(context.Background(), "bhadrak@example.com")
	if err != nil {
		t.Fatalf("identity for: %v", err)
	}
	if identity.PrimaryBlock != "Bhadrak" {
		t.Fatalf("expected primary block Bhadrak, got %q", identity.PrimaryBlock)
	}
	if identity.AssignedBlocks != "Tihidi, Basudevpur" {
		t.Fatalf("expected assigned blocks preserved, got %q", identity.AssignedBlocks)
	}

	if _, err := svc.IdentityFor(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for unknown email, got %v", err)
	}
}

type fakeRepository struct {
	usersByEmail map[string]User
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByEmail[strings.ToLower(params.Email)]; exists {
		return User{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++

	user := User{
		ID:             id,
		Email:          params.Email,
		FullName:       params.FullName,
		PasswordHash:   params.PasswordHash,
		Role:           params.Role,
		PrimaryBlock:   params.PrimaryBlock,
		AssignedBlocks: params.AssignedBlocks,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	f.usersByEmail[strings.ToLower(user.Email)] = user
	return user, nil
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

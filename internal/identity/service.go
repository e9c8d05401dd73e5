// Package identity provides the email/password identity provider used when
// no external provider is configured. It resolves every request to an opaque
// user id; the proxy never sees credentials past this boundary.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crmlite/api/internal/util"
	"golang.org/x/crypto/bcrypt"
)

// User is an authenticated principal. ID is the owner_identity stamped onto
// every opportunity the user creates.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
}

// UserStore defines the storage interface for identity accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, user User) error
}

// ErrNotFound is returned by UserStore implementations for unknown accounts.
var ErrNotFound = errors.New("identity: user not found")

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

type SignUpRequest struct {
	Email    string
	Password string
	FullName string
}

// SignUp creates a new account with a bcrypt password hash.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return User{}, errors.New("email and password are required")
	}
	if len(req.Password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = "New User"
	}

	user := User{
		ID:           util.NewID("usr"),
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignIn verifies credentials and returns the account. Unknown email and bad
// password produce the same error.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.store.GetUserByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Package authpw provides email/password authentication for the site owner.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"portfolio/api/internal/store"
	"portfolio/api/internal/util"
)

var (
	// ErrUserNotFound means no account exists for the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword means the account exists but the password does not match.
	ErrWrongPassword = errors.New("wrong password")
)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CountUsers(ctx context.Context) (int, error)
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// SignIn authenticates the owner. It distinguishes an unknown email from a
// bad password so the login form can report each case.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return store.User{}, ErrUserNotFound
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrUserNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrWrongPassword
	}
	return user, nil
}

// EnsureOwner seeds the single admin account on first boot. A blank password
// leaves the instance without a sign-in path, which is valid for a read-only
// deployment, so it only logs.
func (s *Service) EnsureOwner(ctx context.Context, email, password, displayName string) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if strings.TrimSpace(password) == "" {
		log.Printf("authpw: no admin password configured, skipping owner account seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.CreateUser(ctx, store.User{
		ID:           util.NewID("usr"),
		DisplayName:  displayName,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
	})
}

// ChangePassword updates the signed-in owner's password after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash))
}

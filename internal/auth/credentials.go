package auth

import (
	"context"
	"fmt"
	"strings"

	"todoTracker/repository"
)

// Credentials registers and authenticates users against the user store.
type Credentials struct {
	users repository.UserRepositoryI
}

func NewCredentials(users repository.UserRepositoryI) *Credentials {
	return &Credentials{users: users}
}

// Register stores username with the digest of password and returns the new user id.
func (c *Credentials) Register(ctx context.Context, username, password string) (int64, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return 0, fmt.Errorf("username and password are required: %w", repository.ErrInvalidInput)
	}
	existing, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	if existing != nil {
		return 0, fmt.Errorf("username %q: %w", username, repository.ErrConflict)
	}
	// The unique index still guards against a concurrent registration.
	u, err := c.users.Create(ctx, username, Digest(password))
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// Authenticate returns the id of the user owning username when password matches.
// Unknown users and wrong passwords both yield ErrUnauthorized.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (int64, error) {
	if username == "" {
		return 0, ErrUnauthorized
	}
	u, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	if u == nil || !VerifyDigest(password, u.PasswordDigest) {
		return 0, ErrUnauthorized
	}
	return u.ID, nil
}

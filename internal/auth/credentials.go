// Package auth registers users and checks credentials. Passwords are stored
// as bcrypt hashes; the salt lives inside the hash and the comparison runs in
// constant time.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashStore is the slice of storage the credential store needs.
type HashStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	GetPasswordHash(ctx context.Context, username string) (string, error)
}

type CredentialStore struct {
	store HashStore
	cost  int
}

func NewCredentialStore(store HashStore) *CredentialStore {
	return &CredentialStore{store: store, cost: bcrypt.DefaultCost}
}

// Register stores a new user with a bcrypt hash of the password. A taken
// username surfaces as core.ErrUserExists from the store; the raw password is
// never persisted.
func (c *CredentialStore) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := c.store.CreateUser(ctx, username, string(hash)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "User registered", "username", username, "operation", "register")
	return nil
}

// Verify reports whether the credentials match. Absent usernames and wrong
// passwords are indistinguishable: both return false.
func (c *CredentialStore) Verify(ctx context.Context, username, password string) bool {
	hash, err := c.store.GetPasswordHash(ctx, strings.TrimSpace(username))
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

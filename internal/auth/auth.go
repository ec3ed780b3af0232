// Package auth is the authentication collaborator used by the CLI. It hashes
// credentials before registration and turns a user ID or an email and secret
// into the actor the coordinator runs requests as.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong secret
var ErrInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "invalid credentials")

const minSecretLength = 8

// HashCredential hashes a secret for storage as the user's credential hash
func HashCredential(secret string) (string, error) {
	if len(secret) < minSecretLength {
		return "", apperr.Newf(apperr.CodeInvalidValue, "password must be at least %d characters", minSecretLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyCredential checks secret against a stored hash
func VerifyCredential(hash, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Resolver looks identities up in storage
type Resolver struct {
	store db.Store
}

func NewResolver(store db.Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveUser returns the actor for a user ID. The role comes from storage;
// the coordinator checks it again inside each request's transaction.
func (r *Resolver) ResolveUser(ctx context.Context, userID string) (model.Actor, error) {
	return r.lookup(ctx, func(ctx context.Context, tx db.Tx) (*db.User, error) {
		user, err := tx.GetUser(ctx, strings.TrimSpace(userID))
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeUnauthorized, "unknown user %s", userID)
		}
		return user, err
	})
}

// Authenticate returns the actor for an email and secret
func (r *Resolver) Authenticate(ctx context.Context, email, secret string) (model.Actor, error) {
	return r.lookup(ctx, func(ctx context.Context, tx db.Tx) (*db.User, error) {
		user, err := tx.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		if err != nil {
			return nil, err
		}
		if err := VerifyCredential(user.PasswordHash, secret); err != nil {
			return nil, err
		}
		return user, nil
	})
}

func (r *Resolver) lookup(ctx context.Context, find func(ctx context.Context, tx db.Tx) (*db.User, error)) (model.Actor, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return model.Actor{}, apperr.FromStorage(err)
	}
	defer tx.Rollback(ctx)

	user, err := find(ctx, tx)
	if err != nil {
		return model.Actor{}, apperr.FromStorage(err)
	}
	if !user.IsActive {
		return model.Actor{}, apperr.Newf(apperr.CodeUnauthorized, "user %s is deactivated", user.ID)
	}
	return model.Actor{UserID: user.ID, Role: user.Role}, nil
}

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/db"
	"github.com/jakechorley/charity-hub/pkg/sqlite/sqlitetest"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashCredential("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, VerifyCredential(hash, "correct horse"))
	assert.ErrorIs(t, VerifyCredential(hash, "battery staple"), apperr.ErrUnauthorized)
}

func TestHashCredential_TooShort(t *testing.T) {
	_, err := HashCredential("short")
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)
}

func TestResolver(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)
	resolver := NewResolver(store)
	ctx := context.Background()

	hash, err := HashCredential("s3cret-pass")
	require.NoError(t, err)

	charity := seed.Charity("Shelter")
	seed.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertUser(ctx, &db.User{
			ID: "alice", Email: "alice@example.org", PasswordHash: hash, FullName: "Alice", Role: db.RoleVolunteer, IsActive: true,
		})
	})

	actor, err := resolver.ResolveUser(ctx, charity)
	require.NoError(t, err)
	assert.Equal(t, db.RoleCharity, actor.Role)

	_, err = resolver.ResolveUser(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	actor, err = resolver.Authenticate(ctx, " Alice@Example.org ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", actor.UserID)
	assert.Equal(t, db.RoleVolunteer, actor.Role)

	_, err = resolver.Authenticate(ctx, "alice@example.org", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = resolver.Authenticate(ctx, "nobody@example.org", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	seed.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.SetUserActive(ctx, "alice", false)
	})
	_, err = resolver.ResolveUser(ctx, "alice")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

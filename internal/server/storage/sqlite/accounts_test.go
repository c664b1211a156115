package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/storage"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	at := time.Date(2026, 3, 2, 10, 0, 0, 123, time.UTC)
	alice := &models.User{
		ID:           uuid.NewString(),
		Username:     "alice",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	require.NoError(t, s.CreateUser(ctx, alice))

	t.Run("lookup by id and username", func(t *testing.T) {
		byID, err := s.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		byName, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)

		for _, got := range []*models.User{byID, byName} {
			assert.Equal(t, alice.ID, got.ID)
			assert.Equal(t, alice.PasswordHash, got.PasswordHash)
			assert.True(t, at.Equal(got.CreatedAt), "timestamps keep nanoseconds")
		}
	})

	t.Run("username is unique", func(t *testing.T) {
		dup := &models.User{ID: uuid.NewString(), Username: "alice", PasswordHash: "other", CreatedAt: at}
		assert.ErrorIs(t, s.CreateUser(ctx, dup), storage.ErrUserAlreadyExists)
	})

	t.Run("usernames are case sensitive", func(t *testing.T) {
		_, err := s.GetUserByUsername(ctx, "Alice")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		got, err := s.GetUserByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		assert.Nil(t, got)
	})
}

func refreshToken(userID, hash string, expiresAt time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: expiresAt.Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestRefreshTokens_Lookup(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRefreshToken(ctx, refreshToken(userID, "findme", expires)))

	got, err := s.GetRefreshToken(ctx, "findme")
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, expires.Equal(got.ExpiresAt))

	got, err = s.GetRefreshToken(ctx, "notfound")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
	assert.Nil(t, got)
}

func TestRefreshTokens_Constraints(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	later := time.Now().Add(time.Hour)

	require.NoError(t, s.SaveRefreshToken(ctx, refreshToken(userID, "same", later)))
	assert.Error(t, s.SaveRefreshToken(ctx, refreshToken(userID, "same", later)), "hash is unique")
	assert.Error(t, s.SaveRefreshToken(ctx, refreshToken("no-such-user", "orphan", later)), "foreign key on user")
}

func TestRefreshTokens_Delete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	alice := createTestUser(t, ctx, s)
	bob := createTestUser(t, ctx, s)

	seed := map[string]struct {
		user    string
		expires time.Time
	}{
		"a1":      {alice, now.Add(time.Hour)},
		"a2":      {alice, now.Add(time.Hour)},
		"a3":      {alice, now.Add(-time.Minute)},
		"b1":      {bob, now.Add(time.Hour)},
		"b-stale": {bob, now.Add(-time.Hour)},
	}
	for hash, tok := range seed {
		require.NoError(t, s.SaveRefreshToken(ctx, refreshToken(tok.user, hash, tok.expires)))
	}

	require.NoError(t, s.DeleteRefreshToken(ctx, "a1"))
	assert.ErrorIs(t, s.DeleteRefreshToken(ctx, "a1"), storage.ErrTokenNotFound)

	n, err := s.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteUserTokens(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetRefreshToken(ctx, "b1")
	assert.NoError(t, err)
	for _, gone := range []string{"a1", "a2", "a3", "b-stale"} {
		_, err = s.GetRefreshToken(ctx, gone)
		assert.ErrorIs(t, err, storage.ErrTokenNotFound, gone)
	}
}

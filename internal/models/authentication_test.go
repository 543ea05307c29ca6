package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/taskauth/internal/apperrors"
)

func TestAuthentication(t *testing.T) {
	userID := uuid.New()
	pair := newTestPair(t)

	t.Run("new pending", func(t *testing.T) {
		auth, err := NewAuthentication(userID, pair)

		require.NoError(t, err)
		require.Equal(t, userID, auth.UserID())
		require.Equal(t, pair, auth.Pair())
	})

	t.Run("new pending fails", func(t *testing.T) {
		_, err := NewAuthentication(uuid.Nil, pair)
		require.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewAuthentication(userID, JWTPair{})
		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("restore fails on not positive id", func(t *testing.T) {
		_, err := RestoreAuthentication(0, userID, pair)

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("persist keeps user and pair", func(t *testing.T) {
		pending, err := NewAuthentication(userID, pair)
		require.NoError(t, err)

		persisted, err := pending.Persist(42)

		require.NoError(t, err)
		require.Equal(t, int64(42), persisted.ID())
		require.Equal(t, userID, persisted.UserID())
		require.Equal(t, pair, persisted.Pair())
	})

	t.Run("equality", func(t *testing.T) {
		pending1, err := NewAuthentication(userID, pair)
		require.NoError(t, err)
		pending2, err := NewAuthentication(userID, pair)
		require.NoError(t, err)
		persisted1, err := RestoreAuthentication(1, userID, pair)
		require.NoError(t, err)
		persisted1Again, err := RestoreAuthentication(1, uuid.New(), pair)
		require.NoError(t, err)
		persisted2, err := RestoreAuthentication(2, userID, pair)
		require.NoError(t, err)

		require.False(t, pending1.Equal(pending1), "pending is not equal even to itself")
		require.False(t, pending1.Equal(pending2))
		require.False(t, pending1.Equal(persisted1))
		require.False(t, persisted1.Equal(pending1))

		require.True(t, persisted1.Equal(persisted1Again), "persisted are compared by id only")
		require.False(t, persisted1.Equal(persisted2))
	})

	t.Run("refresh tokens", func(t *testing.T) {
		auth, err := RestoreAuthentication(1, userID, pair)
		require.NoError(t, err)
		newPair, err := NewJWTPair(newTestJWT(t, AccessToken, "access-2"), newTestJWT(t, RefreshToken, "refresh-2"))
		require.NoError(t, err)

		err = auth.RefreshTokens(newPair)

		require.NoError(t, err)
		require.Equal(t, newPair, auth.Pair())
		require.Equal(t, int64(1), auth.ID(), "id never changes")
	})

	t.Run("refresh tokens with empty pair fails", func(t *testing.T) {
		auth, err := RestoreAuthentication(1, userID, pair)
		require.NoError(t, err)

		err = auth.RefreshTokens(JWTPair{})

		require.ErrorIs(t, err, apperrors.ErrValidation)
		require.Equal(t, pair, auth.Pair(), "pair must stay untouched")
	})
}

package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/taskauth/internal/apperrors"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

var (
	testIssued     = must(NewIssued(mustParseTime("2024-01-01 19:00:00Z")))
	testExpiration = must(NewExpiration(mustParseTime("2024-01-01 19:15:00Z")))
	testSubject    = must(NewSubject("5d1f5c88-6a57-4b5e-8d1c-6f8bb1b0b8a1"))
)

func newTestJWT(t *testing.T, typ JWTType, encoded string) JWT {
	t.Helper()

	claims, err := NewJWTClaims(typ.TokenUse(), RoleUser, nil)
	require.NoError(t, err)

	token, err := NewJWT(must(NewEncodedToken(encoded)), typ, testSubject, claims, testIssued, testExpiration)
	require.NoError(t, err)

	return token
}

func newTestPair(t *testing.T) JWTPair {
	t.Helper()

	pair, err := NewJWTPair(newTestJWT(t, AccessToken, "access"), newTestJWT(t, RefreshToken, "refresh"))
	require.NoError(t, err)

	return pair
}

func TestValues(t *testing.T) {
	t.Run("blank values rejected", func(t *testing.T) {
		_, err := NewSubject("  ")
		require.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewEncodedToken("")
		require.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewIssued(time.Time{})
		require.ErrorIs(t, err, apperrors.ErrValidation)

		_, err = NewExpiration(time.Time{})
		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("expired", func(t *testing.T) {
		exp := must(NewExpiration(mustParseTime("2024-01-01 19:15:00Z")))

		assert.False(t, exp.Expired(mustParseTime("2024-01-01 19:14:59Z")))
		assert.True(t, exp.Expired(mustParseTime("2024-01-01 19:15:00Z")), "expiration moment is already expired")
	})
}

func TestJWTClaims(t *testing.T) {
	t.Run("new ok", func(t *testing.T) {
		claims, err := NewJWTClaims(TokenUseAccess, "admin", map[string]any{"jti": "123"})

		require.NoError(t, err)
		require.Equal(t, TokenUseAccess, claims.TokenUse())
		require.Equal(t, "admin", claims.Role())
		require.Equal(t, map[string]any{"token_use": "access", "role": "admin", "jti": "123"}, claims.Map())
	})

	t.Run("invalid token use", func(t *testing.T) {
		tests := []struct {
			name     string
			tokenUse TokenUse
			contains string
		}{
			{"missing", "", `mandatory "token_use"`},
			{"unknown literal", "id", `must be either "access" or "refresh", got "id"`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewJWTClaims(tt.tokenUse, RoleUser, nil)

				require.ErrorIs(t, err, apperrors.ErrValidation)
				require.ErrorContains(t, err, tt.contains)
			})
		}
	})

	t.Run("reserved extension claim rejected", func(t *testing.T) {
		_, err := NewJWTClaims(TokenUseAccess, RoleUser, map[string]any{"sub": "someone"})

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("extra is a copy", func(t *testing.T) {
		extra := map[string]any{"jti": "1"}
		claims, err := NewJWTClaims(TokenUseAccess, RoleUser, extra)
		require.NoError(t, err)

		extra["jti"] = "2"
		claims.Extra()["jti"] = "3"

		require.Equal(t, "1", claims.Extra()["jti"])
	})

	t.Run("from map", func(t *testing.T) {
		claims, err := ClaimsFromMap(map[string]any{
			"sub":       "subject",
			"iat":       float64(1),
			"exp":       float64(2),
			"token_use": "refresh",
			"role":      "user",
			"jti":       "abc",
		})

		require.NoError(t, err)
		require.Equal(t, TokenUseRefresh, claims.TokenUse())
		require.Equal(t, "user", claims.Role())
		require.Equal(t, map[string]any{"jti": "abc"}, claims.Extra(), "registered claims must not leak into extension claims")
	})

	t.Run("from map fails", func(t *testing.T) {
		tests := []struct {
			name    string
			payload map[string]any
		}{
			{"empty", map[string]any{}},
			{"no token use", map[string]any{"role": "user"}},
			{"token use not a string", map[string]any{"token_use": 1}},
			{"role not a string", map[string]any{"token_use": "access", "role": true}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ClaimsFromMap(tt.payload)

				require.ErrorIs(t, err, apperrors.ErrValidation)
			})
		}
	})
}

func TestJWTType(t *testing.T) {
	tests := []struct {
		typ      JWTType
		header   string
		tokenUse TokenUse
	}{
		{AccessToken, "at+jwt", TokenUseAccess},
		{RefreshToken, "rt+jwt", TokenUseRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.header, tt.typ.Header())
			assert.Equal(t, tt.tokenUse, tt.typ.TokenUse())

			parsed, err := ParseJWTType(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, parsed)
		})
	}

	t.Run("parse unknown", func(t *testing.T) {
		_, err := ParseJWTType("JWT")

		require.ErrorIs(t, err, apperrors.ErrValidation)
		require.ErrorContains(t, err, `"at+jwt"`)
		require.ErrorContains(t, err, `"rt+jwt"`)
	})
}

func TestNewJWT(t *testing.T) {
	accessClaims := must(NewJWTClaims(TokenUseAccess, RoleUser, nil))
	encoded := must(NewEncodedToken("encoded"))

	t.Run("ok", func(t *testing.T) {
		token, err := NewJWT(encoded, AccessToken, testSubject, accessClaims, testIssued, testExpiration)

		require.NoError(t, err)
		assert.Equal(t, "encoded", token.Encoded())
		assert.Equal(t, AccessToken, token.Type())
		assert.Equal(t, testSubject, token.Subject())
		assert.Equal(t, accessClaims, token.Claims())
		assert.Equal(t, testIssued.Time(), token.IssuedAt())
		assert.Equal(t, testExpiration.Time(), token.ExpiresAt())
	})

	t.Run("fails", func(t *testing.T) {
		refreshClaims := must(NewJWTClaims(TokenUseRefresh, RoleUser, nil))
		sameAsIssued := must(NewExpiration(testIssued.Time()))
		beforeIssued := must(NewExpiration(testIssued.Time().Add(-time.Second)))

		tests := []struct {
			name       string
			encoded    EncodedToken
			typ        JWTType
			subject    Subject
			claims     JWTClaims
			expiration Expiration
			contains   string
		}{
			{"empty encoded", EncodedToken{}, AccessToken, testSubject, accessClaims, testExpiration, "encoded token must not be empty"},
			{"empty type", encoded, 0, testSubject, accessClaims, testExpiration, "type must not be empty"},
			{"empty subject", encoded, AccessToken, Subject{}, accessClaims, testExpiration, "subject must not be empty"},
			{"empty expiration", encoded, AccessToken, testSubject, accessClaims, Expiration{}, "expiration must not be empty"},
			{"empty claims", encoded, AccessToken, testSubject, JWTClaims{}, testExpiration, `mandatory "token_use"`},
			{"access type with refresh claim", encoded, AccessToken, testSubject, refreshClaims, testExpiration, `ACCESS_TOKEN does not match "token_use" claim "refresh"`},
			{"refresh type with access claim", encoded, RefreshToken, testSubject, accessClaims, testExpiration, `REFRESH_TOKEN does not match "token_use" claim "access"`},
			{"expiration equals issued", encoded, AccessToken, testSubject, accessClaims, sameAsIssued, "must be after issued"},
			{"expiration before issued", encoded, AccessToken, testSubject, accessClaims, beforeIssued, "must be after issued"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewJWT(tt.encoded, tt.typ, tt.subject, tt.claims, testIssued, tt.expiration)

				require.ErrorIs(t, err, apperrors.ErrValidation)
				require.ErrorContains(t, err, tt.contains)
			})
		}
	})
}

func TestNewJWTPair(t *testing.T) {
	access := newTestJWT(t, AccessToken, "access")
	refresh := newTestJWT(t, RefreshToken, "refresh")

	t.Run("ok", func(t *testing.T) {
		pair, err := NewJWTPair(access, refresh)

		require.NoError(t, err)
		require.Equal(t, access, pair.Access())
		require.Equal(t, refresh, pair.Refresh())
	})

	t.Run("swapped tokens", func(t *testing.T) {
		_, err := NewJWTPair(refresh, access)

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("different subjects", func(t *testing.T) {
		other := must(NewSubject(uuid.NewString()))
		otherRefresh := must(NewJWT(
			must(NewEncodedToken("other")), RefreshToken, other,
			must(NewJWTClaims(TokenUseRefresh, RoleUser, nil)), testIssued, testExpiration,
		))

		_, err := NewJWTPair(access, otherRefresh)

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

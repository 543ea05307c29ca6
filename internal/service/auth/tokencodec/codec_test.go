package tokencodec

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/models"
)

const testKey = "test-secret-key-at-least-32-bytes"

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := New(Config{SecretKey: testKey})

		require.NoError(t, err)
		require.Equal(t, defaultSigningMethod, c.method.Alg())
		require.NotNil(t, c.now)
	})

	t.Run("key length depends on algorithm", func(t *testing.T) {
		tests := []struct {
			alg   string
			keyOk string
		}{
			{"HS256", strings.Repeat("k", 32)},
			{"HS384", strings.Repeat("k", 48)},
			{"HS512", strings.Repeat("k", 64)},
		}

		for _, tt := range tests {
			t.Run(tt.alg, func(t *testing.T) {
				_, err := New(Config{SecretKey: tt.keyOk, Alg: tt.alg})
				require.NoError(t, err)

				_, err = New(Config{SecretKey: tt.keyOk[1:], Alg: tt.alg})
				require.Error(t, err, "one byte shorter key must be rejected")
			})
		}
	})

	t.Run("not hmac algorithm", func(t *testing.T) {
		for _, alg := range []string{"none", "RS256", "ES256", "unknown"} {
			_, err := New(Config{SecretKey: strings.Repeat("k", 64), Alg: alg})

			require.Error(t, err, "algorithm %s must be rejected", alg)
		}
	})
}

func TestCodec(t *testing.T) {
	issuedAt := mustParseTime("2024-01-01 19:00:00Z")
	subject, err := models.NewSubject("2f1b8f4e-2b47-4a53-9a0c-0c2b8c1f3e11")
	require.NoError(t, err)

	// Codec that decodes one minute after tokens were issued
	newCodec := func(t *testing.T, key string) *Codec {
		c, err := New(Config{
			SecretKey: key,
			Now:       func() time.Time { return issuedAt.Add(time.Minute) },
		})
		require.NoError(t, err)
		return c
	}

	encode := func(t *testing.T, c *Codec, typ models.JWTType, ttl time.Duration) models.JWT {
		claims, err := models.NewJWTClaims(typ.TokenUse(), models.RoleUser, map[string]any{"jti": "token-id"})
		require.NoError(t, err)

		token, err := c.Encode(EncodeParams{
			Subject:  subject,
			Type:     typ,
			Claims:   claims,
			IssuedAt: issuedAt,
			TTL:      ttl,
		})
		require.NoError(t, err)
		return token
	}

	// Sign arbitrary payload; nil header value removes the header
	sign := func(t *testing.T, method jwt.SigningMethod, key any, header map[string]any, claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(method, claims)
		for name, value := range header {
			if value == nil {
				delete(token.Header, name)
				continue
			}
			token.Header[name] = value
		}

		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}

	validClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":       subject.String(),
			"iat":       issuedAt.Unix(),
			"exp":       issuedAt.Add(15 * time.Minute).Unix(),
			"token_use": "access",
			"role":      "user",
		}
	}

	t.Run("Encode", func(t *testing.T) {
		t.Run("token fields", func(t *testing.T) {
			c := newCodec(t, testKey)

			token := encode(t, c, models.AccessToken, 15*time.Minute)

			assert.Equal(t, models.AccessToken, token.Type())
			assert.Equal(t, subject, token.Subject())
			assert.True(t, issuedAt.Equal(token.IssuedAt()))
			assert.True(t, issuedAt.Add(15*time.Minute).Equal(token.ExpiresAt()))
			assert.NotEmpty(t, token.Encoded())
		})

		t.Run("wire format", func(t *testing.T) {
			c := newCodec(t, testKey)
			token := encode(t, c, models.RefreshToken, 24*time.Hour)

			claims := jwt.MapClaims{}
			parsed, _, err := jwt.NewParser().ParseUnverified(token.Encoded(), claims)
			require.NoError(t, err)

			assert.Equal(t, "rt+jwt", parsed.Header["typ"])
			assert.Equal(t, "HS256", parsed.Header["alg"])
			assert.Equal(t, subject.String(), claims["sub"])
			assert.Equal(t, "refresh", claims["token_use"])
			assert.Equal(t, "user", claims["role"])
			assert.Equal(t, "token-id", claims["jti"])
			assert.InDelta(t, issuedAt.Unix(), claims["iat"], 0)
			assert.InDelta(t, issuedAt.Add(24*time.Hour).Unix(), claims["exp"], 0)
		})

		t.Run("truncates to seconds", func(t *testing.T) {
			c := newCodec(t, testKey)
			claims, err := models.NewJWTClaims(models.TokenUseAccess, "", nil)
			require.NoError(t, err)

			token, err := c.Encode(EncodeParams{
				Subject:  subject,
				Type:     models.AccessToken,
				Claims:   claims,
				IssuedAt: issuedAt.Add(700 * time.Millisecond),
				TTL:      time.Minute,
			})

			require.NoError(t, err)
			assert.True(t, issuedAt.Equal(token.IssuedAt()))
		})

		t.Run("type and claim mismatch", func(t *testing.T) {
			c := newCodec(t, testKey)
			claims, err := models.NewJWTClaims(models.TokenUseRefresh, models.RoleUser, nil)
			require.NoError(t, err)

			_, err = c.Encode(EncodeParams{
				Subject:  subject,
				Type:     models.AccessToken,
				Claims:   claims,
				IssuedAt: issuedAt,
				TTL:      time.Minute,
			})

			require.ErrorIs(t, err, apperrors.ErrValidation)
		})

		t.Run("not positive ttl", func(t *testing.T) {
			c := newCodec(t, testKey)
			claims, err := models.NewJWTClaims(models.TokenUseAccess, models.RoleUser, nil)
			require.NoError(t, err)

			_, err = c.Encode(EncodeParams{Subject: subject, Type: models.AccessToken, Claims: claims, IssuedAt: issuedAt})

			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	})

	t.Run("Decode round trip", func(t *testing.T) {
		for _, typ := range []models.JWTType{models.AccessToken, models.RefreshToken} {
			t.Run(typ.String(), func(t *testing.T) {
				c := newCodec(t, testKey)
				encoded := encode(t, c, typ, 15*time.Minute)

				decoded, err := c.Decode(encoded.Encoded())

				require.NoError(t, err)
				assert.Equal(t, encoded.Encoded(), decoded.Encoded())
				assert.Equal(t, encoded.Type(), decoded.Type())
				assert.Equal(t, encoded.Subject(), decoded.Subject())
				assert.Equal(t, encoded.Claims(), decoded.Claims())
				assert.True(t, encoded.IssuedAt().Equal(decoded.IssuedAt()))
				assert.True(t, encoded.ExpiresAt().Equal(decoded.ExpiresAt()))
			})
		}
	})

	t.Run("Decode fails", func(t *testing.T) {
		c := newCodec(t, testKey)

		tests := []struct {
			name     string
			raw      func(t *testing.T) string
			kind     error
			contains string
		}{
			{
				name: "empty",
				raw:  func(t *testing.T) string { return "" },
				kind: apperrors.ErrJWTClaimsEmpty,
			},
			{
				name: "blank",
				raw:  func(t *testing.T) string { return "   " },
				kind: apperrors.ErrJWTClaimsEmpty,
			},
			{
				name: "not a token",
				raw:  func(t *testing.T) string { return "not-a-token" },
				kind: apperrors.ErrJWTMalformed,
			},
			{
				name: "broken segments",
				raw:  func(t *testing.T) string { return "a.b.c" },
				kind: apperrors.ErrJWTMalformed,
			},
			{
				name: "signed with other key",
				raw: func(t *testing.T) string {
					other := newCodec(t, "other-secret-key-at-least-32-bytes")
					return encode(t, other, models.AccessToken, 15*time.Minute).Encoded()
				},
				kind: apperrors.ErrJWTSignatureInvalid,
			},
			{
				name: "expired",
				raw: func(t *testing.T) string {
					return encode(t, c, models.AccessToken, 30*time.Second).Encoded()
				},
				kind: apperrors.ErrJWTExpired,
			},
			{
				name: "unsigned",
				raw: func(t *testing.T) string {
					return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, map[string]any{"typ": "at+jwt"}, validClaims())
				},
				kind: apperrors.ErrJWTNotSupported,
			},
			{
				name: "other hmac algorithm",
				raw: func(t *testing.T) string {
					return sign(t, jwt.SigningMethodHS512, []byte(testKey), map[string]any{"typ": "at+jwt"}, validClaims())
				},
				kind: apperrors.ErrJWTNotSupported,
			},
			{
				name: "missing type header",
				raw: func(t *testing.T) string {
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), map[string]any{"typ": nil}, validClaims())
				},
				kind:     apperrors.ErrJWTVerification,
				contains: `expected "at+jwt" or "rt+jwt"`,
			},
			{
				name: "unknown type header",
				raw: func(t *testing.T) string {
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), nil, validClaims())
				},
				kind:     apperrors.ErrJWTVerification,
				contains: `invalid token type "JWT"`,
			},
			{
				name: "missing subject",
				raw: func(t *testing.T) string {
					claims := validClaims()
					delete(claims, "sub")
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), map[string]any{"typ": "at+jwt"}, claims)
				},
				kind:     apperrors.ErrJWTVerification,
				contains: "does not contain the mandatory claims",
			},
			{
				name: "missing token use",
				raw: func(t *testing.T) string {
					claims := validClaims()
					delete(claims, "token_use")
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), map[string]any{"typ": "at+jwt"}, claims)
				},
				kind:     apperrors.ErrJWTVerification,
				contains: "does not contain the mandatory claims",
			},
			{
				name: "missing expiration",
				raw: func(t *testing.T) string {
					claims := validClaims()
					delete(claims, "exp")
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), map[string]any{"typ": "at+jwt"}, claims)
				},
				kind:     apperrors.ErrJWTVerification,
				contains: "does not contain the mandatory claims",
			},
			{
				name: "access type with refresh claim",
				raw: func(t *testing.T) string {
					claims := validClaims()
					claims["token_use"] = "refresh"
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), map[string]any{"typ": "at+jwt"}, claims)
				},
				kind:     apperrors.ErrJWTVerification,
				contains: "does not match",
			},
			{
				name: "unknown token use",
				raw: func(t *testing.T) string {
					claims := validClaims()
					claims["token_use"] = "id"
					return sign(t, jwt.SigningMethodHS256, []byte(testKey), map[string]any{"typ": "at+jwt"}, claims)
				},
				kind:     apperrors.ErrJWTVerification,
				contains: `must be either "access" or "refresh", got "id"`,
			},
		}

		kinds := []error{
			apperrors.ErrJWTClaimsEmpty,
			apperrors.ErrJWTMalformed,
			apperrors.ErrJWTSignatureInvalid,
			apperrors.ErrJWTExpired,
			apperrors.ErrJWTNotSupported,
			apperrors.ErrJWTVerification,
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := c.Decode(tt.raw(t))

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrInvalidJWT, "every decode failure is an invalid jwt")
				require.ErrorIs(t, err, tt.kind)
				if tt.contains != "" {
					require.ErrorContains(t, err, tt.contains)
				}

				// Kinds are distinguishable
				for _, other := range kinds {
					if other != tt.kind {
						require.NotErrorIs(t, err, other)
					}
				}
			})
		}
	})
}

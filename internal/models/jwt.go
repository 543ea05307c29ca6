package models

import (
	"time"
)

type JWTType int

const (
	AccessToken JWTType = iota + 1
	RefreshToken
)

// Values of the 'typ' header
const (
	AccessTokenHeader  = "at+jwt"
	RefreshTokenHeader = "rt+jwt"
)

func ParseJWTType(header string) (JWTType, error) {
	switch header {
	case AccessTokenHeader:
		return AccessToken, nil
	case RefreshTokenHeader:
		return RefreshToken, nil
	default:
		return 0, validationError("invalid token type %q, expected %q or %q", header, AccessTokenHeader, RefreshTokenHeader)
	}
}

func (t JWTType) Valid() bool {
	return t == AccessToken || t == RefreshToken
}

func (t JWTType) Header() string {
	switch t {
	case AccessToken:
		return AccessTokenHeader
	case RefreshToken:
		return RefreshTokenHeader
	default:
		return ""
	}
}

// TokenUse is the claim value a token of this type must carry
func (t JWTType) TokenUse() TokenUse {
	switch t {
	case AccessToken:
		return TokenUseAccess
	case RefreshToken:
		return TokenUseRefresh
	default:
		return ""
	}
}

func (t JWTType) String() string {
	switch t {
	case AccessToken:
		return "ACCESS_TOKEN"
	case RefreshToken:
		return "REFRESH_TOKEN"
	default:
		return "UNKNOWN"
	}
}

// JWT is a signed token together with everything that was signed into it.
// A JWT value can only be obtained through NewJWT, so every instance satisfies:
//   - no field is empty
//   - the type agrees with the token_use claim
//   - expiration is strictly after issued
type JWT struct {
	encoded    EncodedToken
	typ        JWTType
	subject    Subject
	claims     JWTClaims
	issued     Issued
	expiration Expiration
}

func NewJWT(encoded EncodedToken, typ JWTType, subject Subject, claims JWTClaims, issued Issued, expiration Expiration) (JWT, error) {
	switch {
	case encoded.IsZero():
		return JWT{}, validationError("jwt encoded token must not be empty")
	case !typ.Valid():
		return JWT{}, validationError("jwt type must not be empty")
	case subject.IsZero():
		return JWT{}, validationError("jwt subject must not be empty")
	case issued.IsZero():
		return JWT{}, validationError("jwt issued time must not be empty")
	case expiration.IsZero():
		return JWT{}, validationError("jwt expiration must not be empty")
	}

	if err := checkTokenUse(claims.TokenUse()); err != nil {
		return JWT{}, err
	}

	if typ.TokenUse() != claims.TokenUse() {
		return JWT{}, validationError("jwt type %s does not match %q claim %q", typ, ClaimTokenUse, claims.TokenUse())
	}

	if !expiration.Time().After(issued.Time()) {
		return JWT{}, validationError("jwt expiration %s must be after issued %s",
			expiration.Time().Format(time.RFC3339), issued.Time().Format(time.RFC3339))
	}

	return JWT{
		encoded:    encoded,
		typ:        typ,
		subject:    subject,
		claims:     claims,
		issued:     issued,
		expiration: expiration,
	}, nil
}

func (t JWT) Encoded() string      { return t.encoded.String() }
func (t JWT) Type() JWTType        { return t.typ }
func (t JWT) Subject() Subject     { return t.subject }
func (t JWT) Claims() JWTClaims    { return t.claims }
func (t JWT) IssuedAt() time.Time  { return t.issued.Time() }
func (t JWT) ExpiresAt() time.Time { return t.expiration.Time() }
func (t JWT) IsZero() bool         { return t.encoded.IsZero() }

// JWTPair is an access and a refresh token issued together for one subject
type JWTPair struct {
	access  JWT
	refresh JWT
}

func NewJWTPair(access JWT, refresh JWT) (JWTPair, error) {
	if access.Type() != AccessToken {
		return JWTPair{}, validationError("pair access token has type %s", access.Type())
	}
	if refresh.Type() != RefreshToken {
		return JWTPair{}, validationError("pair refresh token has type %s", refresh.Type())
	}
	if access.Subject() != refresh.Subject() {
		return JWTPair{}, validationError("pair tokens are issued to different subjects")
	}

	return JWTPair{access: access, refresh: refresh}, nil
}

func (p JWTPair) Access() JWT  { return p.access }
func (p JWTPair) Refresh() JWT { return p.refresh }
func (p JWTPair) IsZero() bool { return p.access.IsZero() }

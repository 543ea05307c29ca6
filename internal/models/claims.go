package models

import (
	"maps"
)

type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// Claim names with a fixed meaning in the token payload
const (
	ClaimTokenUse  = "token_use"
	ClaimRole      = "role"
	ClaimSubject   = "sub"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
)

var reservedClaims = map[string]struct{}{
	ClaimTokenUse:  {},
	ClaimRole:      {},
	ClaimSubject:   {},
	ClaimIssuedAt:  {},
	ClaimExpiresAt: {},
}

func checkTokenUse(tu TokenUse) error {
	switch tu {
	case TokenUseAccess, TokenUseRefresh:
		return nil
	case "":
		return validationError("claims do not contain the mandatory %q claim", ClaimTokenUse)
	default:
		return validationError("%q claim must be either %q or %q, got %q", ClaimTokenUse, TokenUseAccess, TokenUseRefresh, tu)
	}
}

// JWTClaims keeps the claims the domain relies on as fields
// Anything else travels in the extension map and is never interpreted here
type JWTClaims struct {
	tokenUse TokenUse
	role     string
	extra    map[string]any
}

func NewJWTClaims(tokenUse TokenUse, role string, extra map[string]any) (JWTClaims, error) {
	if err := checkTokenUse(tokenUse); err != nil {
		return JWTClaims{}, err
	}

	for name := range extra {
		if _, ok := reservedClaims[name]; ok {
			return JWTClaims{}, validationError("claim %q can't be used as an extension claim", name)
		}
	}

	if len(extra) == 0 {
		extra = nil
	}

	return JWTClaims{
		tokenUse: tokenUse,
		role:     role,
		extra:    maps.Clone(extra),
	}, nil
}

// ClaimsFromMap picks claims out of a decoded payload
// Registered claims (sub, iat, exp) are skipped; they live on JWT itself
func ClaimsFromMap(payload map[string]any) (JWTClaims, error) {
	if len(payload) == 0 {
		return JWTClaims{}, validationError("claims are null or empty")
	}

	raw, ok := payload[ClaimTokenUse]
	if !ok {
		return JWTClaims{}, validationError("claims do not contain the mandatory %q claim", ClaimTokenUse)
	}
	tokenUse, ok := raw.(string)
	if !ok {
		return JWTClaims{}, validationError("%q claim must be a string, got %T", ClaimTokenUse, raw)
	}

	var role string
	if raw, ok := payload[ClaimRole]; ok && raw != nil {
		role, ok = raw.(string)
		if !ok {
			return JWTClaims{}, validationError("%q claim must be a string, got %T", ClaimRole, raw)
		}
	}

	extra := make(map[string]any)
	for name, value := range payload {
		if _, reserved := reservedClaims[name]; !reserved {
			extra[name] = value
		}
	}

	return NewJWTClaims(TokenUse(tokenUse), role, extra)
}

func (c JWTClaims) TokenUse() TokenUse { return c.tokenUse }
func (c JWTClaims) Role() string       { return c.role }

// Extra returns a copy of the extension claims
func (c JWTClaims) Extra() map[string]any {
	return maps.Clone(c.extra)
}

// Map flattens claims into a payload map ready to be signed
func (c JWTClaims) Map() map[string]any {
	m := make(map[string]any, len(c.extra)+2)
	maps.Copy(m, c.extra)
	m[ClaimTokenUse] = string(c.tokenUse)
	if c.role != "" {
		m[ClaimRole] = c.role
	}
	return m
}

package tokencodec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/models"
)

const (
	defaultSigningMethod = "HS256"

	headerType = "typ"
)

// HMAC key has to be at least as long as the hash output
var minKeyLength = map[string]int{
	jwt.SigningMethodHS256.Alg(): 32,
	jwt.SigningMethodHS384.Alg(): 48,
	jwt.SigningMethodHS512.Alg(): 64,
}

var (
	errAlgNotAllowed         = errors.New("signing algorithm is not allowed")
	errMandatoryClaimsAbsent = errors.New("token does not contain the mandatory claims")
)

type Config struct {
	// Secret key to sign and verify tokens
	// Required, length depends on the algorithm
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm: HS256, HS384 or HS512
	// If not set than default is used
	Alg string

	// Clock used to check token expiration
	// time.Now if not set
	Now func() time.Time
}

// Codec signs tokens and turns signed tokens back into models.JWT
type Codec struct {
	key    []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func New(cfg Config) (*Codec, error) {
	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	minLen, ok := minKeyLength[cfg.Alg]
	if !ok {
		return nil, fmt.Errorf("signing algorithm %q not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}
	if len(cfg.SecretKey) < minLen {
		return nil, fmt.Errorf("secret key is too short for %s: got %d bytes, need at least %d", cfg.Alg, len(cfg.SecretKey), minLen)
	}

	return &Codec{
		key:    []byte(cfg.SecretKey),
		method: jwt.GetSigningMethod(cfg.Alg),
		now:    cfg.Now,
	}, nil
}

type EncodeParams struct {
	Subject  models.Subject
	Type     models.JWTType
	Claims   models.JWTClaims
	IssuedAt time.Time
	TTL      time.Duration
}

// Encode signs a token that expires TTL after IssuedAt
// Timestamps are truncated to seconds, the precision the token carries
func (c *Codec) Encode(p EncodeParams) (models.JWT, error) {
	if p.TTL <= 0 {
		return models.JWT{}, fmt.Errorf("%w: token ttl must be positive, got %s", apperrors.ErrValidation, p.TTL)
	}

	issuedAt := p.IssuedAt.Truncate(time.Second)
	expiresAt := issuedAt.Add(p.TTL).Truncate(time.Second)

	issued, err := models.NewIssued(issuedAt)
	if err != nil {
		return models.JWT{}, err
	}
	expiration, err := models.NewExpiration(expiresAt)
	if err != nil {
		return models.JWT{}, err
	}

	claims := jwt.MapClaims(p.Claims.Map())
	claims[models.ClaimSubject] = p.Subject.String()
	claims[models.ClaimIssuedAt] = issuedAt.Unix()
	claims[models.ClaimExpiresAt] = expiresAt.Unix()

	token := jwt.NewWithClaims(c.method, claims)
	token.Header[headerType] = p.Type.Header()

	signed, err := token.SignedString(c.key)
	if err != nil {
		return models.JWT{}, fmt.Errorf("error while signing token. Err: %w", err)
	}

	encoded, err := models.NewEncodedToken(signed)
	if err != nil {
		return models.JWT{}, err
	}

	return models.NewJWT(encoded, p.Type, p.Subject, p.Claims, issued, expiration)
}

// Decode verifies the token and rebuilds models.JWT out of it
// Every error wraps apperrors.ErrInvalidJWT and the sentinel of the failure kind
func (c *Codec) Decode(raw string) (models.JWT, error) {
	if strings.TrimSpace(raw) == "" {
		return models.JWT{}, decodeError(apperrors.ErrJWTClaimsEmpty, nil)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	).ParseWithClaims(raw, claims, c.keyFunc)

	switch {
	case err == nil:
	case errors.Is(err, errAlgNotAllowed), errors.Is(err, jwt.ErrTokenUnverifiable):
		return models.JWT{}, decodeError(apperrors.ErrJWTNotSupported, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return models.JWT{}, decodeError(apperrors.ErrJWTMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return models.JWT{}, decodeError(apperrors.ErrJWTSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.JWT{}, decodeError(apperrors.ErrJWTExpired, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return models.JWT{}, decodeError(apperrors.ErrJWTVerification, errMandatoryClaimsAbsent)
	default:
		return models.JWT{}, decodeError(apperrors.ErrJWTVerification, err)
	}

	header, _ := token.Header[headerType].(string)
	typ, err := models.ParseJWTType(header)
	if err != nil {
		return models.JWT{}, decodeError(apperrors.ErrJWTVerification, err)
	}

	decoded, err := c.toJWT(raw, typ, claims)
	if err != nil {
		return models.JWT{}, decodeError(apperrors.ErrJWTVerification, err)
	}

	return decoded, nil
}

func (c *Codec) toJWT(raw string, typ models.JWTType, claims jwt.MapClaims) (models.JWT, error) {
	sub, _ := claims.GetSubject()
	iat, _ := claims.GetIssuedAt()
	exp, _ := claims.GetExpirationTime()
	_, hasTokenUse := claims[models.ClaimTokenUse]

	if sub == "" || iat == nil || exp == nil || !hasTokenUse {
		return models.JWT{}, errMandatoryClaimsAbsent
	}

	subject, err := models.NewSubject(sub)
	if err != nil {
		return models.JWT{}, err
	}
	domainClaims, err := models.ClaimsFromMap(claims)
	if err != nil {
		return models.JWT{}, err
	}
	encoded, err := models.NewEncodedToken(raw)
	if err != nil {
		return models.JWT{}, err
	}
	issued, err := models.NewIssued(iat.Time)
	if err != nil {
		return models.JWT{}, err
	}
	expiration, err := models.NewExpiration(exp.Time)
	if err != nil {
		return models.JWT{}, err
	}

	return models.NewJWT(encoded, typ, subject, domainClaims, issued, expiration)
}

// Only the configured HMAC method is accepted; 'none' and asymmetric algorithms never reach signature check
func (c *Codec) keyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("%w: %q", errAlgNotAllowed, token.Method.Alg())
	}
	return c.key, nil
}

func decodeError(kind error, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidJWT, kind)
	}
	return fmt.Errorf("%w: %w: %w", apperrors.ErrInvalidJWT, kind, cause)
}

package tokenissuer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskauth/internal/models"
	"github.com/nkiryanov/taskauth/internal/service/auth/tokencodec"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 24 * time.Hour

	claimTokenID = "jti"
)

type encoder interface {
	Encode(p tokencodec.EncodeParams) (models.JWT, error)
}

// Token issuer with sensible defaults
type Config struct {
	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// time.Now if not set
	Now func() time.Time
}

type Issuer struct {
	codec encoder

	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config, codec encoder) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("token codec must not be nil")
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.AccessTTL < time.Second || cfg.RefreshTTL < time.Second {
		return nil, fmt.Errorf("token lifetimes must be at least one second, got access=%s refresh=%s", cfg.AccessTTL, cfg.RefreshTTL)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Issuer{
		codec:      codec,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueTokenPair issues access and refresh tokens for the user at the same moment
func (i *Issuer) IssueTokenPair(user models.UserAuthentication) (models.JWTPair, error) {
	subject, err := user.Subject()
	if err != nil {
		return models.JWTPair{}, err
	}

	now := i.now()

	access, err := i.issue(subject, models.AccessToken, user.Role, now, i.accessTTL)
	if err != nil {
		return models.JWTPair{}, fmt.Errorf("error while issuing access token. Err: %w", err)
	}

	refresh, err := i.issue(subject, models.RefreshToken, user.Role, now, i.refreshTTL)
	if err != nil {
		return models.JWTPair{}, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	return models.NewJWTPair(access, refresh)
}

func (i *Issuer) IssueAccessToken(subject models.Subject, role string) (models.JWT, error) {
	return i.issue(subject, models.AccessToken, role, i.now(), i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(subject models.Subject, role string) (models.JWT, error) {
	return i.issue(subject, models.RefreshToken, role, i.now(), i.refreshTTL)
}

// Every token gets its own jti, so tokens issued within one second never collide
func (i *Issuer) issue(subject models.Subject, typ models.JWTType, role string, now time.Time, ttl time.Duration) (models.JWT, error) {
	claims, err := models.NewJWTClaims(typ.TokenUse(), role, map[string]any{
		claimTokenID: uuid.NewString(),
	})
	if err != nil {
		return models.JWT{}, err
	}

	return i.codec.Encode(tokencodec.EncodeParams{
		Subject:  subject,
		Type:     typ,
		Claims:   claims,
		IssuedAt: now,
		TTL:      ttl,
	})
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/taskauth/internal/apperrors"
	"github.com/nkiryanov/taskauth/internal/models"
)

type AuthenticationRepo struct {
	DB DBTX
}

const insertAuthentication = `-- name: InsertAuthentication
INSERT INTO authentications (
	user_id, subject,
	access_token, access_claims, access_issued_at, access_expires_at,
	refresh_token, refresh_claims, refresh_issued_at, refresh_expires_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`

const updateAuthentication = `-- name: UpdateAuthentication
UPDATE authentications
SET
	access_token = $2, access_claims = $3, access_issued_at = $4, access_expires_at = $5,
	refresh_token = $6, refresh_claims = $7, refresh_issued_at = $8, refresh_expires_at = $9,
	updated_at = now()
WHERE id = $1
RETURNING id
`

// Save inserts pending authentication or overwrites tokens of the persisted one
func (r *AuthenticationRepo) Save(ctx context.Context, auth models.JWTAuthentication) (*models.PersistedAuthentication, error) {
	access, refresh := auth.Pair().Access(), auth.Pair().Refresh()

	switch a := auth.(type) {
	case *models.PendingAuthentication:
		rows, _ := r.DB.Query(ctx, insertAuthentication,
			a.UserID(), access.Subject().String(),
			access.Encoded(), access.Claims().Map(), access.IssuedAt(), access.ExpiresAt(),
			refresh.Encoded(), refresh.Claims().Map(), refresh.IssuedAt(), refresh.ExpiresAt(),
		)
		id, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		return a.Persist(id)

	case *models.PersistedAuthentication:
		rows, _ := r.DB.Query(ctx, updateAuthentication,
			a.ID(),
			access.Encoded(), access.Claims().Map(), access.IssuedAt(), access.ExpiresAt(),
			refresh.Encoded(), refresh.Claims().Map(), refresh.IssuedAt(), refresh.ExpiresAt(),
		)
		_, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
		switch {
		case err == nil:
			return a, nil
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("repo error: %w", apperrors.ErrAuthenticationNotFound)
		default:
			return nil, fmt.Errorf("db error: %w", err)
		}

	default:
		return nil, fmt.Errorf("repo error: unknown authentication %T", auth)
	}
}

const selectAuthentication = `
SELECT
	id, user_id, subject,
	access_token, access_claims, access_issued_at, access_expires_at,
	refresh_token, refresh_claims, refresh_issued_at, refresh_expires_at
FROM authentications
`

const findAuthenticationByID = `-- name: FindAuthenticationByID` + selectAuthentication + `WHERE id = $1`

const findAuthenticationByRefresh = `-- name: FindAuthenticationByRefreshToken` + selectAuthentication + `WHERE refresh_token = $1`

const findAuthenticationByAccess = `-- name: FindAuthenticationByAccessToken` + selectAuthentication + `WHERE access_token = $1`

func (r *AuthenticationRepo) FindByID(ctx context.Context, id int64) (*models.PersistedAuthentication, error) {
	return r.findOne(ctx, findAuthenticationByID, id)
}

func (r *AuthenticationRepo) FindByRefreshToken(ctx context.Context, refresh string) (*models.PersistedAuthentication, error) {
	return r.findOne(ctx, findAuthenticationByRefresh, refresh)
}

func (r *AuthenticationRepo) FindByAccessToken(ctx context.Context, access string) (*models.PersistedAuthentication, error) {
	return r.findOne(ctx, findAuthenticationByAccess, access)
}

func (r *AuthenticationRepo) findOne(ctx context.Context, query string, arg any) (*models.PersistedAuthentication, error) {
	rows, _ := r.DB.Query(ctx, query, arg)
	auth, err := pgx.CollectOneRow(rows, rowToAuthentication)

	switch {
	case err == nil:
		return auth, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("repo error: %w", apperrors.ErrAuthenticationNotFound)
	default:
		return nil, fmt.Errorf("db error: %w", err)
	}
}

const deleteAuthentication = `-- name: DeleteAuthentication
DELETE FROM authentications
WHERE id = $1
`

func (r *AuthenticationRepo) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, deleteAuthentication, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrAuthenticationNotFound)
	}
	return nil
}

const deleteExpiredAuthentications = `-- name: DeleteExpiredAuthentications
DELETE FROM authentications
WHERE id IN (
	SELECT id FROM authentications
	WHERE refresh_expires_at <= $1
	ORDER BY id
	LIMIT $2
)
`

func (r *AuthenticationRepo) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredAuthentications, before, limit)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

type tokenRow struct {
	token     string
	claims    map[string]any
	issuedAt  time.Time
	expiresAt time.Time
}

func (t tokenRow) toJWT(typ models.JWTType, subject models.Subject) (models.JWT, error) {
	encoded, err := models.NewEncodedToken(t.token)
	if err != nil {
		return models.JWT{}, err
	}
	claims, err := models.ClaimsFromMap(t.claims)
	if err != nil {
		return models.JWT{}, err
	}
	issued, err := models.NewIssued(t.issuedAt)
	if err != nil {
		return models.JWT{}, err
	}
	expiration, err := models.NewExpiration(t.expiresAt)
	if err != nil {
		return models.JWT{}, err
	}

	return models.NewJWT(encoded, typ, subject, claims, issued, expiration)
}

// Rows are rebuilt through the domain constructors, so a broken row never leaves the repo
func rowToAuthentication(row pgx.CollectableRow) (*models.PersistedAuthentication, error) {
	var (
		id              int64
		userID          uuid.UUID
		subject         string
		access, refresh tokenRow
	)

	err := row.Scan(
		&id, &userID, &subject,
		&access.token, &access.claims, &access.issuedAt, &access.expiresAt,
		&refresh.token, &refresh.claims, &refresh.issuedAt, &refresh.expiresAt,
	)
	if err != nil {
		return nil, err
	}

	sub, err := models.NewSubject(subject)
	if err != nil {
		return nil, fmt.Errorf("authentication %d is corrupted: %w", id, err)
	}
	accessJWT, err := access.toJWT(models.AccessToken, sub)
	if err != nil {
		return nil, fmt.Errorf("authentication %d is corrupted: %w", id, err)
	}
	refreshJWT, err := refresh.toJWT(models.RefreshToken, sub)
	if err != nil {
		return nil, fmt.Errorf("authentication %d is corrupted: %w", id, err)
	}
	pair, err := models.NewJWTPair(accessJWT, refreshJWT)
	if err != nil {
		return nil, fmt.Errorf("authentication %d is corrupted: %w", id, err)
	}

	return models.RestoreAuthentication(id, userID, pair)
}

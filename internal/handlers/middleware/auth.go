package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/taskauth/internal/handlers/authctx"
	"github.com/nkiryanov/taskauth/internal/handlers/render"
	"github.com/nkiryanov/taskauth/internal/models"
)

const bearerScheme = "Bearer"

type verifier interface {
	Verify(ctx context.Context, rawAccess string) (models.JWT, error)
}

type Auth struct {
	verifier verifier
}

func NewAuth(v verifier) *Auth {
	return &Auth{verifier: v}
}

// Auth lets the request through only with a live access token
// The verified token is put to request context, see authctx.FromContext
func (m *Auth) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		access, err := m.verifier.Verify(r.Context(), raw)
		if err != nil {
			render.AppError(w, err)
			return
		}

		ctx := authctx.New(r.Context(), access)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken returns token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

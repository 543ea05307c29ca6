package authctx

import (
	"context"

	"github.com/nkiryanov/taskauth/internal/models"
)

type ctxKey string

const accessKey ctxKey = "access-token"

// Create a new context with the verified access token
func New(ctx context.Context, access models.JWT) context.Context {
	return context.WithValue(ctx, accessKey, access)
}

// Extract the access token from the context
func FromContext(ctx context.Context) (models.JWT, bool) {
	access, ok := ctx.Value(accessKey).(models.JWT)
	return access, ok && !access.IsZero()
}

package render

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/taskauth/internal/apperrors"
)

type appError struct {
	err     error
	message string
	code    int
}

// Checked in order, so more specific errors go first
var appErrors = []appError{
	{apperrors.ErrValidation, "Invalid request", http.StatusBadRequest},
	{apperrors.ErrUserAlreadyExists, "User already exists", http.StatusConflict},
	{apperrors.ErrBadCredentials, "Wrong username or password", http.StatusUnauthorized},
	{apperrors.ErrJWTExpired, "Token expired", http.StatusUnauthorized},
	{apperrors.ErrJWTSignatureInvalid, "Token signature is invalid", http.StatusUnauthorized},
	{apperrors.ErrInvalidJWT, "Token is invalid", http.StatusUnauthorized},
	{apperrors.ErrUnexpectedJWTType, "Unexpected token type", http.StatusUnauthorized},
	{apperrors.ErrAuthenticationNotFound, "Authentication not found", http.StatusUnauthorized},
}

// Render AppError
// Known application errors get their own status and message, anything else is internal server error
// Reports whether err was recognized
func AppError(w http.ResponseWriter, err error) bool {
	for _, e := range appErrors {
		if errors.Is(err, e.err) {
			ServiceError(w, e.message, e.code)
			return true
		}
	}

	ServiceError(w, "Internal server error", http.StatusInternalServerError)
	return false
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/nkiryanov/taskauth/internal/handlers/authctx"
	"github.com/nkiryanov/taskauth/internal/handlers/middleware"
	"github.com/nkiryanov/taskauth/internal/handlers/render"
	"github.com/nkiryanov/taskauth/internal/logger"
	"github.com/nkiryanov/taskauth/internal/models"
)

const (
	defaultRefreshCookieName = "refreshtoken"
	tokenType                = "Bearer"

	maxRefreshBodySize = 16 << 10
)

type authService interface {
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (*models.PersistedAuthentication, error)

	// Has to return apperrors.ErrBadCredentials if username or password is wrong
	Authenticate(ctx context.Context, username string, password string) (*models.PersistedAuthentication, error)

	RefreshAuthentication(ctx context.Context, rawRefresh string) (*models.PersistedAuthentication, error)
	RevokeAuthentication(ctx context.Context, rawAccess string) error
	Verify(ctx context.Context, rawAccess string) (models.JWT, error)
}

type AuthConfig struct {
	// Cookie the refresh token is set to, "refreshtoken" by default
	RefreshCookieName string

	// Send refresh cookie over https only
	SecureCookie bool

	Now func() time.Time
}

type AuthHandler struct {
	auth   authService
	cfg    AuthConfig
	logger logger.Logger
}

func NewAuth(auth authService, cfg AuthConfig, l logger.Logger) *AuthHandler {
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthHandler{auth: auth, cfg: cfg, logger: l}
}

func (h *AuthHandler) Handler() http.Handler {
	withAuth := middleware.NewAuth(h.auth).Auth

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("POST /revoke", h.revoke)
	mux.Handle("GET /session", withAuth(http.HandlerFunc(h.session)))

	return mux
}

type authenticationResponse struct {
	AuthenticationID int64     `json:"authentication_id"`
	TokenType        string    `json:"token_type"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Login    string `json:"login" validate:"required,min=2,max=50,username"`
		Password string `json:"password" validate:"required,min=8,max=128"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	auth, err := h.auth.Register(r.Context(), data.Login, data.Password)
	if err != nil {
		h.error(w, "register failed", err)
		return
	}

	h.writeAuthentication(w, auth)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Login    string `json:"login" validate:"required,max=50"`
		Password string `json:"password" validate:"required,max=128"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	auth, err := h.auth.Authenticate(r.Context(), data.Login, data.Password)
	if err != nil {
		h.error(w, "login failed", err)
		return
	}

	h.writeAuthentication(w, auth)
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	refresh, ok := h.readRefreshToken(r)
	if !ok {
		render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	auth, err := h.auth.RefreshAuthentication(r.Context(), refresh)
	if err != nil {
		h.error(w, "refresh failed", err)
		return
	}

	h.writeAuthentication(w, auth)
}

func (h *AuthHandler) revoke(w http.ResponseWriter, r *http.Request) {
	type RevokeSuccessResponse struct {
		Message string `json:"message"`
	}

	access, ok := middleware.BearerToken(r)
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.auth.RevokeAuthentication(r.Context(), access); err != nil {
		h.error(w, "revoke failed", err)
		return
	}

	http.SetCookie(w, h.refreshCookie("", -1))
	render.JSON(w, RevokeSuccessResponse{Message: "Authentication revoked"})
}

func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) {
	type SessionResponse struct {
		Subject   string    `json:"subject"`
		Role      string    `json:"role,omitempty"`
		IssuedAt  time.Time `json:"issued_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	access, _ := authctx.FromContext(r.Context())
	render.JSON(w, SessionResponse{
		Subject:   access.Subject().String(),
		Role:      access.Claims().Role(),
		IssuedAt:  access.IssuedAt(),
		ExpiresAt: access.ExpiresAt(),
	})
}

// Refresh token is read from cookie first, then from JSON body
func (h *AuthHandler) readRefreshToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(h.cfg.RefreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBodySize)).Decode(&body); err != nil {
		return "", false
	}

	return body.RefreshToken, body.RefreshToken != ""
}

func (h *AuthHandler) writeAuthentication(w http.ResponseWriter, auth *models.PersistedAuthentication) {
	access, refresh := auth.Pair().Access(), auth.Pair().Refresh()

	maxAge := int(refresh.ExpiresAt().Sub(h.cfg.Now()).Seconds())
	http.SetCookie(w, h.refreshCookie(refresh.Encoded(), maxAge))
	w.Header().Set("Authorization", tokenType+" "+access.Encoded())

	render.JSON(w, authenticationResponse{
		AuthenticationID: auth.ID(),
		TokenType:        tokenType,
		AccessToken:      access.Encoded(),
		AccessExpiresAt:  access.ExpiresAt(),
		RefreshToken:     refresh.Encoded(),
		RefreshExpiresAt: refresh.ExpiresAt(),
	})
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// Unknown errors are not shown to client, so log them here
func (h *AuthHandler) error(w http.ResponseWriter, msg string, err error) {
	if !render.AppError(w, err) {
		h.logger.Error(msg, "error", err)
		return
	}
	h.logger.Debug(msg, "error", err)
}

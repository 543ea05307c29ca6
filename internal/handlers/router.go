package handlers

import (
	"net/http"

	"github.com/nkiryanov/taskauth/internal/handlers/middleware"
	"github.com/nkiryanov/taskauth/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authService authService, cfg AuthConfig, l logger.Logger) http.Handler {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	auth := NewAuth(authService, cfg, l)

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", auth.Handler()))

	handler := chain(root,
		middleware.LoggerMiddleware(l),
	)

	return handler
}

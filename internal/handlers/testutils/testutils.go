package testutils

import (
	"context"
	"net/http"

	"campusmarket/internal/middleware"
	"campusmarket/models"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// WithUser кладет аутентифицированного пользователя в контекст, минуя проверку токена.
func WithUser(req *http.Request, userID int, role models.Role) *http.Request {
	ctx := middleware.WithPrincipal(req.Context(), middleware.Principal{UserID: userID, Role: role})
	return req.WithContext(ctx)
}

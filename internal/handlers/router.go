package handlers

import (
	"net/http"

	"campusmarket/internal/logger"
	"campusmarket/internal/metrics"
	"campusmarket/internal/middleware"
	"campusmarket/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds what the router needs beyond the handler itself.
type RouterConfig struct {
	Verifier middleware.TokenVerifier
	// WebSocket endpoint, served at /ws when set.
	WebSocket http.Handler
	// PublicLimiter throttles unauthenticated auth and reset routes per IP.
	PublicLimiter *middleware.RateLimiter
}

// Router собирает все маршруты API
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// лимитер считает по адресу сокета, а не по X-Forwarded-For
	r.Use(middleware.PeerAddr)
	r.Use(chimw.RealIP)
	r.Use(logger.RequestLogger(h.log))
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Get("/ping", h.PingHandler)
	r.Handle("/metrics", metrics.Handler())
	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket)
	}

	r.Get("/services", h.ListServicesHandler)
	r.Get("/colleges", h.ListCollegesHandler)

	// публичные маршруты с ограничением частоты
	r.Group(func(r chi.Router) {
		if cfg.PublicLimiter != nil {
			r.Use(cfg.PublicLimiter.Handler)
		}
		r.Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)
		r.Post("/send-reset-sms", h.SendResetSMSHandler)
		r.Post("/verify-sms-code", h.VerifySMSCodeHandler)
		r.Post("/reset-password", h.ResetPasswordHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.Verifier, h.log))

		r.Get("/auth/me", h.MeHandler)

		// уведомления
		r.Get("/notifications", h.GetNotificationsHandler)
		r.Get("/notifications/unread-count", h.UnreadCountHandler)
		r.Patch("/notifications/read-all", h.MarkAllNotificationsReadHandler)
		r.Patch("/notifications/{id}/read", h.MarkNotificationReadHandler)

		// чат
		r.Get("/chat/rooms", h.GetChatRoomsHandler)
		r.Get("/chat/rooms/{id}/messages", h.GetChatMessagesHandler)

		// клиент
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleClient))
			r.Get("/client/requests", h.GetClientRequestsHandler)
			r.Post("/client/requests", h.CreateRequestHandler)
			r.Get("/client/requests/{id}/bids", h.GetBidsForRequestHandler)
			r.Post("/client/bids/{id}/accept", h.AcceptBidHandler)
			r.Post("/client/interests/{id}/accept", h.AcceptInterestHandler)
			r.Post("/client/interests/{id}/reject", h.RejectInterestHandler)
			// старые пути из таблицы маршрутов исполнителя
			r.Post("/provider/interests/{id}/accept", h.AcceptInterestHandler)
			r.Post("/provider/interests/{id}/reject", h.RejectInterestHandler)
		})

		// исполнитель
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleServiceProvider))
			r.Get("/provider/bids", h.GetProviderBidsHandler)
			r.Post("/provider/bids", h.CreateBidHandler)
			r.Get("/provider/requests", h.GetProviderRequestsHandler)
			r.Get("/provider/interests/my", h.GetProviderInterestsHandler)
			r.Post("/provider/interests/{id}", h.ExpressInterestHandler)
			r.Delete("/provider/interests/{id}", h.WithdrawInterestHandler)
		})

		// админка
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Get("/categories", h.ListCategoriesHandler)
			r.Post("/categories", h.CreateCategoryHandler)
			r.Post("/categories/bulk-delete", h.BulkDeleteCategoriesHandler)
			r.Get("/categories/{id}", h.GetCategoryHandler)
			r.Put("/categories/{id}", h.UpdateCategoryHandler)
			r.Delete("/categories/{id}", h.DeleteCategoryHandler)

			r.Get("/products", h.ListProductsHandler)
			r.Post("/products", h.CreateProductHandler)
			r.Post("/products/bulk-delete", h.BulkDeleteProductsHandler)
			r.Get("/products/{id}", h.GetProductHandler)
			r.Put("/products/{id}", h.UpdateProductHandler)
			r.Delete("/products/{id}", h.DeleteProductHandler)

			r.Post("/notifications/sms", h.SMSBroadcastHandler)
		})
	})

	return r
}

// Package api собирает приложение: хранилище, кэш, брокер, сервисы
// и HTTP-сервер с маршрутами.
package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/auth/login"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/auth/register"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/auth/verifyusername"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/contact"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/content/posts"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/content/submitcomment"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/health"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/payment/subscribe"
	"github.com/Gautammer/mangekimambi-api/internal/http/handlers/subscription/status"
	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/storage/repository"

	authservice "github.com/Gautammer/mangekimambi-api/internal/services/auth"
	contentservice "github.com/Gautammer/mangekimambi-api/internal/services/content"
	subservice "github.com/Gautammer/mangekimambi-api/internal/services/subscription"
)

// RegisterRoutes регистрирует все маршруты приложения.
//
// Открытые маршруты закрыты ключом клиента, защищенные — bearer-токеном;
// расшифровка и шифрование конверта выполняются в обработчиках.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	db *repository.Storage,
	codec *envelope.Codec,
	authService *authservice.Service,
	subscriptionService *subservice.Service,
	contentService *contentservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger))

		// Открытые конечные точки, закрытые ключом клиента
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.ClientGateMiddleware(authService, logger))
			r.Post("/register", register.New(logger, authService, codec).ServeHTTP)
			r.Post("/login", login.New(logger, authService, codec).ServeHTTP)
			r.Post("/verify_username", verifyusername.New(logger, authService, codec).ServeHTTP)
			r.Post("/contact", contact.New(logger, contentService, codec).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AuthMiddleware(authService, logger))
			r.Get("/subscription-status", status.New(logger, subscriptionService, codec).ServeHTTP)
			r.Post("/payment-subscription", subscribe.New(logger, subscriptionService, codec).ServeHTTP)
			r.Get("/posts", posts.New(logger, contentService, codec).ServeHTTP)
			r.Post("/submit_comment", submitcomment.New(logger, contentService, codec).ServeHTTP)
		})

		r.Get("/health", health.New(logger, db).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

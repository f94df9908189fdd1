package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Gautammer/mangekimambi-api/internal/http/response"
	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// ClientService описывает интерфейс сервиса для проверки ключа клиента.
type ClientService interface {
	ValidateClientKey(ctx context.Context, key string) (*models.Client, error)
}

// ClientGateMiddleware возвращает HTTP middleware, который проверяет заголовок key
// по таблице клиентов. Отсутствующий, неизвестный или отозванный ключ — отказ 401;
// пустая таблица клиентов также означает отказ, а не разрешение по умолчанию.
func ClientGateMiddleware(clientService ClientService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.ClientGateMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			client, err := clientService.ValidateClientKey(r.Context(), r.Header.Get("key"))
			if err != nil {
				log.Error("invalid client key", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid client key"))
				return
			}
			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientFromContext возвращает клиента из контекста запроса.
func ClientFromContext(ctx context.Context) (*models.Client, bool) {
	client, ok := ctx.Value(ClientKey).(*models.Client)
	return client, ok
}

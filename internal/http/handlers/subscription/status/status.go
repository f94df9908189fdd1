// Package status реализует HTTP-обработчик чтения статуса подписки.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/http/response"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/services/subscription"
)

// Service описывает интерфейс чтения статуса подписки.
type Service interface {
	GetStatus(ctx context.Context, userUID string) (*subscription.Status, error)
}

// Handler обрабатывает HTTP-запросы статуса подписки.
type Handler struct {
	log           *slog.Logger
	subscriptions Service
	codec         *envelope.Codec
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, subscriptionService Service, codec *envelope.Codec) *Handler {
	return &Handler{
		log:           log,
		subscriptions: subscriptionService,
		codec:         codec,
	}
}

// ServeHTTP godoc
// @Summary Статус подписки
// @Description Возвращает зашифрованный статус подписки пользователя: флаг, дату окончания и число оставшихся дней.
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Статус подписки (зашифрованный)"
// @Failure 401 {object} response.ErrorResponse "Неверный или отозванный токен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription-status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid or expired token"))
		return
	}

	st, err := h.subscriptions.GetStatus(r.Context(), user.UID)
	if err != nil {
		log.Error("failed to get subscription status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	encoded, err := h.codec.Encode(st)
	if err != nil {
		log.Error("failed to encode response", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.OK(encoded))
}

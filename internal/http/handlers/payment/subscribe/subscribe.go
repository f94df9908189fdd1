// Package subscribe реализует HTTP-обработчик оплаты подписки.
//
// Поля тела зашифрованы конвертом, как и на остальных маршрутах. Идентификатор
// транзакции — ключ идемпотентности: повтор запроса с тем же transaction_id
// не продлевает подписку второй раз. Окно подписки рассчитывается сервером
// по сумме платежа; присланные клиентом даты не являются источником истины.
package subscribe

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/http/response"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/models"
	"github.com/Gautammer/mangekimambi-api/internal/services/subscription"
)

// Request — структура платежа; все поля — зашифрованные конвертом строки.
// SubscriptionDate и SubscriptionEndDate принимаются для совместимости с
// клиентом, но сервер рассчитывает окно подписки сам.
type Request struct {
	UserID              string `json:"userid" validate:"required"`
	Type                string `json:"type" validate:"required"`
	SubscriptionDate    string `json:"subscription_date,omitempty"`
	SubscriptionEndDate string `json:"subscription_end_date,omitempty"`
	Currency            string `json:"currency" validate:"required"`
	TransactionID       string `json:"transaction_id" validate:"required"`
	Amount              string `json:"amount" validate:"required"`
}

// Service описывает интерфейс применения платежа к подписке.
type Service interface {
	ApplyGrant(ctx context.Context, userUID string, req subscription.GrantRequest) (*models.Grant, error)
}

// Handler обрабатывает HTTP-запросы оплаты подписки.
type Handler struct {
	log           *slog.Logger
	subscriptions Service
	codec         *envelope.Codec
	validate      *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, subscriptionService Service, codec *envelope.Codec) *Handler {
	return &Handler{
		log:           log,
		subscriptions: subscriptionService,
		codec:         codec,
		validate:      validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оплата подписки
// @Description Применяет платеж к подписке пользователя. Идемпотентно по transaction_id; число дней определяется суммой платежа.
// @Tags Payment
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Платеж (зашифрованный)"
// @Success 200 {object} response.Response "Результат применения платежа"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или конверт"
// @Failure 401 {object} response.ErrorResponse "Неверный или отозванный токен"
// @Failure 403 {object} response.ErrorResponse "Платеж чужого пользователя"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /payment-subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.subscribe"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userID, okUser := h.codec.DecodeString(req.UserID)
	channel, okType := h.codec.DecodeString(req.Type)
	currency, okCurrency := h.codec.DecodeString(req.Currency)
	transactionID, okTransaction := h.codec.DecodeString(req.TransactionID)
	amountStr, okAmount := h.codec.DecodeString(req.Amount)
	if !okUser || !okType || !okCurrency || !okTransaction || !okAmount {
		log.Error("failed to decode envelope fields")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		log.Error("invalid amount", slog.String("amount", amountStr))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if userID != user.UID {
		log.Warn("payment for another user rejected",
			slog.String("auth_uid", user.UID), slog.String("body_uid", userID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(h.encodeMessage("forbidden")))
		return
	}

	grant, err := h.subscriptions.ApplyGrant(r.Context(), user.UID, subscription.GrantRequest{
		Reference: transactionID,
		OrderID:   transactionID,
		Channel:   channel,
		Amount:    amount,
		Currency:  currency,
	})
	if err != nil {
		log.Error("failed to apply grant", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(h.encodeMessage("internal error")))
		return
	}

	encoded, err := h.codec.Encode(grant)
	if err != nil {
		log.Error("failed to encode response", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("payment applied",
		slog.String("reference", transactionID),
		slog.Int("days_added", grant.DaysAdded),
		slog.Bool("created", grant.Created))
	render.JSON(w, r, response.OK(encoded))
}

func (h *Handler) encodeMessage(msg string) string {
	encoded, err := h.codec.Encode(msg)
	if err != nil {
		return msg
	}
	return encoded
}

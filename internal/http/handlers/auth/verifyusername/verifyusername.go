// Package verifyusername реализует HTTP-обработчик проверки доступности username.
package verifyusername

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Gautammer/mangekimambi-api/internal/http/response"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
)

// Request — структура входных данных; Username — зашифрованная конвертом строка.
type Request struct {
	Username string `json:"username" validate:"required"`
}

// Service описывает интерфейс проверки доступности username.
type Service interface {
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// Handler обрабатывает HTTP-запросы проверки username.
type Handler struct {
	log      *slog.Logger
	auth     Service
	codec    *envelope.Codec
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service, codec *envelope.Codec) *Handler {
	return &Handler{
		log:      log,
		auth:     authService,
		codec:    codec,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Проверка доступности username
// @Description Сообщает, свободен ли username. Поле тела зашифровано конвертом.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param key header string true "Ключ клиента"
// @Param request body Request true "Проверяемый username (зашифрованный)"
// @Success 200 {object} response.Response "Результат проверки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или конверт"
// @Failure 401 {object} response.ErrorResponse "Неверный ключ клиента"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /verify_username [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verifyusername"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	username, ok := h.codec.DecodeString(req.Username)
	if !ok {
		log.Error("failed to decode envelope field", slog.String("field", "username"))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	available, err := h.auth.UsernameAvailable(r.Context(), username)
	if err != nil {
		log.Error("failed to check username", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	encoded, err := h.codec.Encode(map[string]bool{"available": available})
	if err != nil {
		log.Error("failed to encode response", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.OK(encoded))
}

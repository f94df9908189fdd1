// Package contact реализует HTTP-обработчик формы обратной связи.
package contact

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
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// Request — структура обращения; все поля — зашифрованные конвертом строки.
type Request struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// Service описывает интерфейс приема обращений.
type Service interface {
	SubmitContact(ctx context.Context, msg models.ContactMessage) (int64, error)
}

// Handler обрабатывает HTTP-запросы формы обратной связи.
type Handler struct {
	log      *slog.Logger
	content  Service
	codec    *envelope.Codec
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, contentService Service, codec *envelope.Codec) *Handler {
	return &Handler{
		log:      log,
		content:  contentService,
		codec:    codec,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отправка обращения
// @Description Сохраняет обращение через форму обратной связи. Поля тела зашифрованы конвертом.
// @Tags Contact
// @Accept  json
// @Produce  json
// @Param key header string true "Ключ клиента"
// @Param request body Request true "Обращение (зашифрованное)"
// @Success 200 {object} response.Response "Обращение принято"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или конверт"
// @Failure 401 {object} response.ErrorResponse "Неверный ключ клиента"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /contact [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.contact"

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

	name, okName := h.codec.DecodeString(req.Name)
	email, okEmail := h.codec.DecodeString(req.Email)
	message, okMessage := h.codec.DecodeString(req.Message)
	if !okName || !okEmail || !okMessage {
		log.Error("failed to decode envelope fields")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if _, err := h.content.SubmitContact(r.Context(), models.ContactMessage{
		Name:    name,
		Email:   email,
		Message: message,
	}); err != nil {
		log.Error("failed to save contact message", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("contact message saved")
	render.JSON(w, r, response.OKWithMessage(h.encodeMessage("message received")))
}

func (h *Handler) encodeMessage(msg string) string {
	encoded, err := h.codec.Encode(msg)
	if err != nil {
		return msg
	}
	return encoded
}

// Package register реализует HTTP-обработчик регистрации пользователей.
//
// Все поля тела зашифрованы конвертом. После создания учетной записи
// пользователю сразу выдается токен — так же, как при входе.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/http/response"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/models"
	"github.com/Gautammer/mangekimambi-api/internal/services/auth"
)

// Request — структура входных данных регистрации. Все поля — зашифрованные
// конвертом строки; Gender и Email необязательны.
type Request struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Gender   string `json:"gender,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Response — ответ успешной регистрации, идентичен ответу авторизации.
type Response struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    string `json:"user"`
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, client *models.Client, req auth.RegisterRequest) (*models.User, string, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
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
// @Summary Регистрация пользователя
// @Description Создает нового пользователя и сразу выдает ему токен. Поля тела зашифрованы конвертом.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param key header string true "Ключ клиента"
// @Param request body Request true "Данные регистрации (зашифрованные)"
// @Success 200 {object} Response "Успешная регистрация"
// @Failure 400 {object} response.ErrorResponse "Некорректный ввод или занятые username/email"
// @Failure 401 {object} response.ErrorResponse "Неверный ключ клиента"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	client, ok := middlewarectx.ClientFromContext(r.Context())
	if !ok {
		log.Error("client missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid client key"))
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

	username, ok := h.codec.DecodeString(req.Username)
	if !ok {
		h.invalidEnvelope(w, r, log, "username")
		return
	}
	password, ok := h.codec.DecodeString(req.Password)
	if !ok {
		h.invalidEnvelope(w, r, log, "password")
		return
	}

	svcReq := auth.RegisterRequest{Username: username, Password: password}
	if req.Gender != "" {
		gender, ok := h.codec.DecodeString(req.Gender)
		if !ok {
			h.invalidEnvelope(w, r, log, "gender")
			return
		}
		svcReq.Gender = &gender
	}
	if req.Email != "" {
		email, ok := h.codec.DecodeString(req.Email)
		if !ok {
			h.invalidEnvelope(w, r, log, "email")
			return
		}
		svcReq.Email = &email
	}

	user, token, err := h.auth.Register(r.Context(), client, svcReq)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			log.Warn("username taken", slog.String("username", username))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(h.encodeMessage("username already taken")))
		case errors.Is(err, auth.ErrEmailTaken):
			log.Warn("email taken")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(h.encodeMessage("email already registered")))
		default:
			log.Error("register failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(h.encodeMessage("internal error")))
		}
		return
	}

	encodedToken, err := h.codec.Encode(map[string]string{"token": token})
	if err != nil {
		log.Error("failed to encode token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	encodedUser, err := h.codec.Encode(user)
	if err != nil {
		log.Error("failed to encode user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("user registered", slog.String("user_uid", user.UID))
	render.JSON(w, r, Response{
		Success: true,
		Token:   encodedToken,
		User:    encodedUser,
	})
}

func (h *Handler) invalidEnvelope(w http.ResponseWriter, r *http.Request, log *slog.Logger, field string) {
	log.Error("failed to decode envelope field", slog.String("field", field))
	w.WriteHeader(http.StatusBadRequest)
	render.JSON(w, r, response.Error("invalid request body"))
}

func (h *Handler) encodeMessage(msg string) string {
	encoded, err := h.codec.Encode(msg)
	if err != nil {
		return msg
	}
	return encoded
}

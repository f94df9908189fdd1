// Package login реализует HTTP-обработчик для запросов аутентификации пользователей.
//
// Поля email и password приходят зашифрованными конвертом; расшифровка выполняется
// до валидации, сбой расшифровки трактуется как некорректный ввод. При успешной
// аутентификации возвращается зашифрованный токен и профиль пользователя;
// все прежние токены пользователя при этом отзываются.
package login

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

// Request — структура входных данных для авторизации.
//
// Email и Password — зашифрованные конвертом строки. В поле Email допускается
// как email, так и username.
type Request struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Response — ответ успешной авторизации: токен и профиль пользователя,
// каждый зашифрован конвертом отдельно.
type Response struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    string `json:"user"`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, client *models.Client, login, password string) (*models.User, string, error)
}

// Handler обрабатывает HTTP-запросы для авторизации.
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
// @Summary Авторизация пользователя
// @Description Аутентифицирует пользователя по email/username и паролю. Поля тела зашифрованы конвертом. Отзывает все прежние токены и выдает один новый.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param key header string true "Ключ клиента"
// @Param request body Request true "Учетные данные (зашифрованные)"
// @Success 200 {object} Response "Успешная авторизация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или конверт"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	login, ok := h.codec.DecodeString(req.Email)
	if !ok {
		h.invalidEnvelope(w, r, log, "email")
		return
	}
	password, ok := h.codec.DecodeString(req.Password)
	if !ok {
		h.invalidEnvelope(w, r, log, "password")
		return
	}

	user, token, err := h.auth.Login(r.Context(), client, login, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrAccountBanned):
			log.Warn("login rejected", sl.Err(err))
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(h.encodeMessage("invalid credentials")))
		default:
			log.Error("login failed", sl.Err(err))
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

	log.Info("login success", slog.String("user_uid", user.UID))
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

// encodeMessage шифрует текст сообщения об ошибке; при сбое шифрования
// наружу уходит нешифрованный текст, а не внутренняя ошибка.
func (h *Handler) encodeMessage(msg string) string {
	encoded, err := h.codec.Encode(msg)
	if err != nil {
		return msg
	}
	return encoded
}

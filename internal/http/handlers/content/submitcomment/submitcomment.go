// Package submitcomment реализует HTTP-обработчик отправки комментариев.
//
// Комментарий может быть привязан к посту либо к другому комментарию (ответ
// в треде); существование цели проверяется до вставки.
package submitcomment

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/Gautammer/mangekimambi-api/internal/services/content"
)

// Request — структура комментария; все поля — зашифрованные конвертом строки.
// Emojis необязателен и содержит JSON-массив идентификаторов эмодзи
// ("[1,3]") — так его шлет мобильный клиент.
type Request struct {
	Type    string `json:"type" validate:"required"`
	ID      string `json:"id" validate:"required"`
	Content string `json:"content" validate:"required"`
	Emojis  string `json:"emojis,omitempty"`
}

// Service описывает интерфейс приема комментариев.
type Service interface {
	SubmitComment(ctx context.Context, author *models.User, req content.CommentRequest) (*models.Comment, error)
}

// Handler обрабатывает HTTP-запросы отправки комментариев.
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
// @Summary Отправка комментария
// @Description Сохраняет комментарий к посту или ответ на другой комментарий. Поля тела зашифрованы конвертом.
// @Tags Content
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Комментарий (зашифрованный)"
// @Success 200 {object} response.Response "Сохраненный комментарий (зашифрованный)"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON, конверт или тип цели"
// @Failure 401 {object} response.ErrorResponse "Неверный или отозванный токен"
// @Failure 404 {object} response.ErrorResponse "Цель комментария не найдена"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /submit_comment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.submitcomment"

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

	targetType, okType := h.codec.DecodeString(req.Type)
	targetIDStr, okID := h.codec.DecodeString(req.ID)
	text, okContent := h.codec.DecodeString(req.Content)
	if !okType || !okID || !okContent {
		log.Error("failed to decode envelope fields")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	targetID, err := strconv.ParseInt(targetIDStr, 10, 64)
	if err != nil {
		log.Error("invalid target id", slog.String("id", targetIDStr))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	var emojiIDs []int64
	if req.Emojis != "" {
		emojisJSON, okEmojis := h.codec.DecodeString(req.Emojis)
		if !okEmojis {
			log.Error("failed to decode envelope field", slog.String("field", "emojis"))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
		if err := json.Unmarshal([]byte(emojisJSON), &emojiIDs); err != nil {
			log.Error("invalid emojis payload", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
	}

	comment, err := h.content.SubmitComment(r.Context(), user, content.CommentRequest{
		TargetType: targetType,
		TargetID:   targetID,
		Content:    text,
		EmojiIDs:   emojiIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, content.ErrTargetNotFound):
			log.Warn("comment target not found", slog.Int64("target_id", targetID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(h.encodeMessage("target not found")))
		case errors.Is(err, content.ErrInvalidTarget):
			log.Warn("invalid comment target type", slog.String("type", targetType))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(h.encodeMessage("invalid target type")))
		default:
			log.Error("failed to submit comment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(h.encodeMessage("internal error")))
		}
		return
	}

	encoded, err := h.codec.Encode(comment)
	if err != nil {
		log.Error("failed to encode response", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("comment submitted", slog.Int64("comment_id", comment.ID))
	render.JSON(w, r, response.OK(encoded))
}

func (h *Handler) encodeMessage(msg string) string {
	encoded, err := h.codec.Encode(msg)
	if err != nil {
		return msg
	}
	return encoded
}

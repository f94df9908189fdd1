// Package posts реализует HTTP-обработчик ленты опубликованных постов.
package posts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/http/response"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/models"
	"github.com/Gautammer/mangekimambi-api/internal/services/content"
)

// Service описывает интерфейс чтения ленты постов.
type Service interface {
	ListPosts(ctx context.Context, viewerUID string, from, limit int) ([]*models.Post, error)
}

// Handler обрабатывает HTTP-запросы ленты постов.
type Handler struct {
	log     *slog.Logger
	content Service
	codec   *envelope.Codec
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, contentService Service, codec *envelope.Codec) *Handler {
	return &Handler{
		log:     log,
		content: contentService,
		codec:   codec,
	}
}

// ServeHTTP godoc
// @Summary Лента постов
// @Description Возвращает зашифрованную страницу опубликованных постов с производными полями для пользователя. Сырые списки реакций и просмотров наружу не отдаются.
// @Tags Content
// @Produce  json
// @Security BearerAuth
// @Param from query int false "Смещение от начала ленты" default(0)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} response.Response "Список постов (зашифрованный)"
// @Failure 401 {object} response.ErrorResponse "Неверный или отозванный токен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /posts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.posts"

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

	from, _ := strconv.Atoi(r.URL.Query().Get("from"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = content.DefaultLimit
	}

	posts, err := h.content.ListPosts(r.Context(), user.UID, from, limit)
	if err != nil {
		log.Error("failed to list posts", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	encoded, err := h.codec.Encode(posts)
	if err != nil {
		log.Error("failed to encode response", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	render.JSON(w, r, response.OK(encoded))
}

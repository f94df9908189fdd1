// Package content реализует ленту постов, комментарии и форму обратной связи.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// Допустимые значения поля type при отправке комментария.
const (
	TargetPost    = "post"
	TargetComment = "comment"
)

// Размер страницы ленты: по умолчанию и максимальный.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrInvalidTarget  = errors.New("invalid target type")
)

// Repository описывает контракт хранилища для контента.
type Repository interface {
	ListPublishedPosts(ctx context.Context, viewerUID string, limit, offset int) ([]*models.Post, error)
	PostExists(ctx context.Context, postID int64) (bool, error)
	CreateComment(ctx context.Context, comment models.Comment) (int64, error)
	GetComment(ctx context.Context, commentID int64) (*models.Comment, error)
	AttachCommentEmojis(ctx context.Context, commentID int64, emojiIDs []int64) error
	SaveContactMessage(ctx context.Context, msg models.ContactMessage) (int64, error)
}

// Notifier публикует событие в брокер сообщений.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Service отвечает за чтение ленты и прием комментариев и обращений.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, log: log}
}

// ListPosts возвращает страницу опубликованных постов с производными полями
// для пользователя. from — смещение от начала ленты, limit — размер страницы;
// некорректные значения заменяются значениями по умолчанию (0 и DefaultLimit),
// limit сверху ограничен MaxLimit.
func (s *Service) ListPosts(ctx context.Context, viewerUID string, from, limit int) ([]*models.Post, error) {
	const op = "content.ListPosts"

	if from < 0 {
		from = 0
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	posts, err := s.repo.ListPublishedPosts(ctx, viewerUID, limit, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return posts, nil
}

// CommentRequest — данные комментария после расшифровки конверта.
// TargetType определяет, к чему привязан комментарий: к посту или к
// другому комментарию (ответ в треде).
type CommentRequest struct {
	TargetType string
	TargetID   int64
	Content    string
	EmojiIDs   []int64
}

// SubmitComment сохраняет комментарий и уведомляет брокер. Ошибка публикации
// уведомления не откатывает уже сохраненный комментарий: событие пишется в
// лог, клиент получает успех.
func (s *Service) SubmitComment(ctx context.Context, author *models.User, req CommentRequest) (*models.Comment, error) {
	const op = "content.SubmitComment"

	comment := models.Comment{
		UserUID:    author.UID,
		AuthorName: author.Username,
		Content:    req.Content,
	}
	switch req.TargetType {
	case TargetPost:
		exists, err := s.repo.PostExists(ctx, req.TargetID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return nil, ErrTargetNotFound
		}
		comment.PostID = req.TargetID
	case TargetComment:
		parent, err := s.repo.GetComment(ctx, req.TargetID)
		if err != nil {
			return nil, ErrTargetNotFound
		}
		comment.PostID = parent.PostID
		comment.ParentID = &parent.ID
	default:
		return nil, ErrInvalidTarget
	}

	id, err := s.repo.CreateComment(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	comment.ID = id

	if len(req.EmojiIDs) > 0 {
		if err := s.repo.AttachCommentEmojis(ctx, id, req.EmojiIDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.notifier.Publish("comments", comment); err != nil {
		s.log.Warn("failed to publish comment notification", sl.Err(err))
	}
	return &comment, nil
}

// SubmitContact сохраняет обращение через форму обратной связи.
func (s *Service) SubmitContact(ctx context.Context, msg models.ContactMessage) (int64, error) {
	const op = "content.SubmitContact"

	id, err := s.repo.SaveContactMessage(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.notifier.Publish("contact", msg); err != nil {
		s.log.Warn("failed to publish contact notification", sl.Err(err))
	}
	return id, nil
}

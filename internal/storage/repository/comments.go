package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// CreateComment сохраняет комментарий к посту и возвращает его ID.
func (s *Storage) CreateComment(ctx context.Context, comment models.Comment) (int64, error) {
	const op = "storage.CreateComment"

	var id int64
	query := `INSERT INTO comments (post_id, parent_id, user_uid, author_name, content)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, comment.PostID, comment.ParentID,
		comment.UserUID, comment.AuthorName, comment.Content).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetComment возвращает комментарий по ID.
func (s *Storage) GetComment(ctx context.Context, commentID int64) (*models.Comment, error) {
	const op = "storage.GetComment"

	query := `SELECT id, post_id, parent_id, user_uid, author_name, content, created_at
			  FROM comments
			  WHERE id = $1`
	c := &models.Comment{}
	var parentID sql.NullInt64
	err := s.DB.QueryRowContext(ctx, query, commentID).Scan(&c.ID, &c.PostID,
		&parentID, &c.UserUID, &c.AuthorName, &c.Content, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrCommentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	return c, nil
}

// AttachCommentEmojis привязывает реакции-эмодзи к комментарию.
func (s *Storage) AttachCommentEmojis(ctx context.Context, commentID int64, emojiIDs []int64) error {
	const op = "storage.AttachCommentEmojis"

	if len(emojiIDs) == 0 {
		return nil
	}
	for _, emojiID := range emojiIDs {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO comment_emojis (comment_id, emoji_id) VALUES ($1, $2)`,
			commentID, emojiID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// CountCommentsByPost возвращает число комментариев поста.
func (s *Storage) CountCommentsByPost(ctx context.Context, postID int64) (int, error) {
	const op = "storage.CountCommentsByPost"

	var count int
	query := `SELECT COUNT(*) FROM comments WHERE post_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, postID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

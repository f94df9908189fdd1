package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// ListPublishedPosts возвращает страницу опубликованных постов с производными
// полями для конкретного пользователя. Счетчики и флаги считаются агрегатами
// в самом запросе: сырые строки реакций и просмотров наружу не выходят.
func (s *Storage) ListPublishedPosts(ctx context.Context, viewerUID string, limit, offset int) ([]*models.Post, error) {
	const op = "storage.ListPublishedPosts"

	query := `SELECT p.id, p.title, p.content, p.status, p.published_at, p.created_at,
			      EXISTS (SELECT 1 FROM reactions r WHERE r.post_id = p.id AND r.user_uid = $1) AS is_liked,
			      EXISTS (SELECT 1 FROM post_viewers v WHERE v.post_id = p.id AND v.user_uid = $1) AS is_viewed,
			      (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comments_count,
			      (SELECT COUNT(*) FROM reactions r WHERE r.post_id = p.id) AS likes_count,
			      (SELECT COUNT(*) FROM post_viewers v WHERE v.post_id = p.id) AS views_count
			  FROM posts p
			  WHERE p.status = $2 AND p.published_at <= $3
			  ORDER BY p.published_at DESC
			  LIMIT $4 OFFSET $5`
	rows, err := s.DB.QueryContext(ctx, query, viewerUID, models.PostStatusPublished,
		time.Now().UTC(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Post
	for rows.Next() {
		p := &models.Post{
			Categories: []models.Category{},
			Media:      []models.Media{},
		}
		var publishedAt sql.NullTime
		if err = rows.Scan(&p.ID, &p.Title, &p.Content, &p.Status, &publishedAt,
			&p.CreatedAt, &p.IsLiked, &p.IsViewed,
			&p.CommentsCount, &p.LikesCount, &p.ViewsCount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if publishedAt.Valid {
			p.PublishedAt = &publishedAt.Time
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.attachPostCategories(ctx, result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.attachPostMedia(ctx, result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// attachPostCategories наполняет рубрики страницы постов одним запросом.
func (s *Storage) attachPostCategories(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids, byID := postIndex(posts)

	rows, err := s.DB.QueryContext(ctx,
		`SELECT pc.post_id, c.id, c.name
		 FROM post_categories pc
		 JOIN categories c ON c.id = pc.category_id
		 WHERE pc.post_id = ANY($1)
		 ORDER BY c.name`, ids)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var postID int64
		var category models.Category
		if err = rows.Scan(&postID, &category.ID, &category.Name); err != nil {
			return err
		}
		if p, ok := byID[postID]; ok {
			p.Categories = append(p.Categories, category)
		}
	}
	return rows.Err()
}

// attachPostMedia наполняет медиавложения страницы постов одним запросом.
func (s *Storage) attachPostMedia(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids, byID := postIndex(posts)

	rows, err := s.DB.QueryContext(ctx,
		`SELECT m.post_id, m.id, m.type, m.url
		 FROM media m
		 WHERE m.post_id = ANY($1)
		 ORDER BY m.id`, ids)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var postID int64
		var media models.Media
		if err = rows.Scan(&postID, &media.ID, &media.Type, &media.URL); err != nil {
			return err
		}
		if p, ok := byID[postID]; ok {
			p.Media = append(p.Media, media)
		}
	}
	return rows.Err()
}

func postIndex(posts []*models.Post) ([]int64, map[int64]*models.Post) {
	ids := make([]int64, len(posts))
	byID := make(map[int64]*models.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	return ids, byID
}

// PostExists сообщает, существует ли пост.
func (s *Storage) PostExists(ctx context.Context, postID int64) (bool, error) {
	const op = "storage.PostExists"

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`
	if err := s.DB.QueryRowContext(ctx, query, postID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

package models

import "time"

// Comment представляет комментарий к посту либо ответ на другой комментарий
// (ParentID указывает на родительский комментарий).
type Comment struct {
	ID         int64     `json:"id"`
	PostID     int64     `json:"post_id"`
	ParentID   *int64    `json:"parent_id"`
	UserUID    string    `json:"user_uid"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContactMessage — обращение через форму обратной связи.
type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

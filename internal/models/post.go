package models

import "time"

// PostStatusPublished — статус опубликованного поста.
const PostStatusPublished = "Published"

// Post представляет запись контента, отдаваемую лентой /posts.
// Производные поля считаются на чтение для конкретного пользователя;
// сырые списки реакций и просмотров наружу не отдаются.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Categories []Category `json:"categories"`
	Media      []Media    `json:"media"`

	IsLiked       bool `json:"isLiked"`
	IsViewed      bool `json:"isViewed"`
	CommentsCount int  `json:"commentsCount"`
	LikesCount    int  `json:"likesCount"`
	ViewsCount    int  `json:"viewsCount"`
}

// Category — рубрика поста.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Media — медиавложение поста (изображение, видео или аудио).
type Media struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

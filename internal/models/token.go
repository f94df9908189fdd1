package models

import "time"

// AccessToken представляет выданный bearer-токен. Сам токен (подписанный JWT)
// является первичным ключом записи. У пользователя в норме только один
// неотозванный токен: выдача нового отзывает все прежние.
type AccessToken struct {
	Token     string    `json:"token"`
	UserUID   string    `json:"user_uid"`
	ClientID  int64     `json:"client_id"`
	Name      string    `json:"name"`
	Revoked   bool      `json:"revoked"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

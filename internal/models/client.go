package models

// Client представляет приложение-клиент API. Секретный ключ передается
// в заголовке key на открытых маршрутах (регистрация, вход и т.п.).
type Client struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Secret  string `json:"-"`
	Revoked bool   `json:"revoked"`
}

package models

import "time"

// PaymentStatusCompleted — терминальный статус платежа.
const PaymentStatusCompleted = "COMPLETED"

// Payment представляет транзакцию, оплачивающую подписку. Поле Reference —
// внешний идентификатор транзакции и ключ идемпотентности: повтор с тем же
// reference обновляет статус существующей записи, а не создает новую.
type Payment struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	UserUID   string    `json:"user_uid"`
	OrderID   string    `json:"order_id"`
	Channel   string    `json:"channel"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Result    string    `json:"result"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Grant описывает рассчитанное продление подписки.
type Grant struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	DaysAdded int       `json:"days_added"`
	// Created false, если платеж с таким reference уже был применен:
	// подписка при этом повторно не продлевается.
	Created bool `json:"created"`
}

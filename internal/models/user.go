// Package models содержит доменные структуры платформы: пользователей,
// OAuth-клиентов, токены доступа, платежи и контент.
package models

import "time"

// Возможные значения login_state пользователя.
const (
	LoginStateFree       = "free"
	LoginStateRestricted = "restricted"
)

// Возможные значения status пользователя.
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID                   string     `json:"uid"`
	Username              string     `json:"username"`
	Email                 *string    `json:"email"`
	PasswordHash          string     `json:"-"`
	Gender                *string    `json:"gender"`
	LoginState            string     `json:"login_state"`
	Status                string     `json:"status"`
	IsSubscribed          bool       `json:"is_subscribed"`
	EndOfSubscriptionDate *time.Time `json:"end_of_subscription_date"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Package subscription реализует учет подписок: расчет окна продления по
// сумме платежа, ленивое погашение истекших подписок при чтении и статус
// подписки с учетом бесплатного режима приложения.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// statusCacheTTL ограничивает жизнь кэшированного статуса: после продления
// кэш инвалидируется явно, по истечении — статус пересчитывается.
const statusCacheTTL = time.Minute

// Курс валют к нормализованной единице (USD). Неизвестная валюта
// считается уже нормализованной.
var currencyRates = map[string]float64{
	"USD": 1,
	"TSH": 0.00043,
	"KES": 0.0068,
}

// Тарифная сетка: нормализованная сумма -> дни подписки. Порог с большей
// суммой проверяется первым; суммы ниже минимального порога не дают дней.
var tiers = []struct {
	MinAmount float64
	Days      int
}{
	{MinAmount: 30, Days: 365},
	{MinAmount: 10, Days: 90},
	{MinAmount: 5, Days: 30},
	{MinAmount: 2, Days: 7},
	{MinAmount: 0.5, Days: 1},
}

// Repository описывает методы хранилища, нужные учету подписок.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	ExpireLapsedSubscription(ctx context.Context, userUID string, now time.Time) (bool, error)
	ApplyGrant(ctx context.Context, payment models.Payment, days int, now time.Time) (*models.Grant, error)
}

// Cache описывает методы для кэширования статуса подписки.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Status — статус подписки пользователя, отдаваемый наружу.
type Status struct {
	IsSubscribed  bool       `json:"isSubscribed"`
	EndDate       *time.Time `json:"endDate"`
	DaysRemaining *int       `json:"daysRemaining"`
}

// Service реализует учет подписок.
type Service struct {
	repo  Repository
	cache Cache
	free  bool
	log   *slog.Logger
}

// New создает Service. free включает бесплатный режим приложения: все
// проверки подписки отвечают "подписан" до обращения к данным пользователя.
func New(repo Repository, cache Cache, free bool, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		free:  free,
		log:   log,
	}
}

// ComputeDays нормализует сумму по курсу валюты и возвращает число дней
// подписки по тарифной сетке.
func ComputeDays(amount float64, currency string) int {
	rate, ok := currencyRates[currency]
	if !ok {
		rate = 1
	}
	normalized := amount * rate
	for _, tier := range tiers {
		if normalized >= tier.MinAmount {
			return tier.Days
		}
	}
	return 0
}

// ReconcileOnRead лениво погашает истекшую подписку: если сохраненная дата
// окончания строго в прошлом, флаг и дата сбрасываются атомарным UPDATE, и
// возвращается обновленное представление пользователя. Вызывается из
// middleware аутентификации и из входа — фоновых задач нет, запись может
// оставаться устаревшей, пока пользователь не сделает запрос.
func (s *Service) ReconcileOnRead(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "subscription.ReconcileOnRead"

	if user.EndOfSubscriptionDate == nil || !user.EndOfSubscriptionDate.Before(time.Now().UTC()) {
		return user, nil
	}

	if _, err := s.repo.ExpireLapsedSubscription(ctx, user.UID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// Даже если строку успел обновить конкурентный запрос, итоговое
	// состояние одно и то же.
	updated := *user
	updated.IsSubscribed = false
	updated.EndOfSubscriptionDate = nil

	if err := s.cache.Invalidate(statusCacheKey(user.UID)); err != nil {
		s.log.Warn("failed to invalidate status cache", sl.Err(err))
	}
	return &updated, nil
}

// GrantRequest — данные платежа, из которых считается продление.
type GrantRequest struct {
	Reference string
	OrderID   string
	Channel   string
	Amount    float64
	Currency  string
}

// ApplyGrant рассчитывает продление и применяет платеж идемпотентно по
// reference: повтор не продлевает подписку второй раз.
func (s *Service) ApplyGrant(ctx context.Context, userUID string, req GrantRequest) (*models.Grant, error) {
	const op = "subscription.ApplyGrant"

	days := ComputeDays(req.Amount, req.Currency)
	payment := models.Payment{
		Reference: req.Reference,
		UserUID:   userUID,
		OrderID:   req.OrderID,
		Channel:   req.Channel,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    models.PaymentStatusCompleted,
		Result:    models.PaymentStatusCompleted,
	}

	grant, err := s.repo.ApplyGrant(ctx, payment, days, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if grant.Created {
		s.log.Info("subscription grant applied",
			slog.String("user_uid", userUID),
			slog.String("reference", req.Reference),
			slog.Int("days", grant.DaysAdded))
	} else {
		s.log.Info("duplicate payment reference, grant not re-applied",
			slog.String("user_uid", userUID),
			slog.String("reference", req.Reference))
	}

	if err := s.cache.Invalidate(statusCacheKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate status cache", sl.Err(err))
	}
	return grant, nil
}

// GetStatus возвращает статус подписки пользователя. Бесплатный режим
// проверяется до обращения к данным пользователя; в платном режиме статус
// читается через кэш и лениво погашается.
func (s *Service) GetStatus(ctx context.Context, userUID string) (*Status, error) {
	const op = "subscription.GetStatus"

	if s.free {
		return &Status{IsSubscribed: true}, nil
	}

	var cached Status
	if found, err := s.cache.Get(statusCacheKey(userUID), &cached); err != nil {
		s.log.Warn("status cache read failed", sl.Err(err))
	} else if found {
		return &cached, nil
	}

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err = s.ReconcileOnRead(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := &Status{
		IsSubscribed: user.IsSubscribed,
		EndDate:      user.EndOfSubscriptionDate,
	}
	if user.EndOfSubscriptionDate != nil {
		days := int(math.Ceil(time.Until(*user.EndOfSubscriptionDate).Hours() / 24))
		status.DaysRemaining = &days
	}

	if err := s.cache.Set(statusCacheKey(userUID), status, statusCacheTTL); err != nil {
		s.log.Warn("failed to cache status", sl.Err(err))
	}
	return status, nil
}

// IsSubscribed сообщает, подписан ли пользователь, с учетом бесплатного
// режима и ленивого погашения.
func (s *Service) IsSubscribed(ctx context.Context, user *models.User) (bool, error) {
	if s.free {
		return true, nil
	}
	user, err := s.ReconcileOnRead(ctx, user)
	if err != nil {
		return false, err
	}
	return user.IsSubscribed, nil
}

func statusCacheKey(userUID string) string {
	return fmt.Sprintf("substatus:%s", userUID)
}

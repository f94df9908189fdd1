package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// ApplyGrant применяет платеж к подписке пользователя в одной транзакции:
// строка пользователя блокируется, окно продления считается от максимума
// из текущей даты окончания и настоящего момента, платеж вставляется
// одним upsert-оператором по reference. Повтор того же reference обновляет
// только статусные поля и не продлевает подписку второй раз.
func (s *Storage) ApplyGrant(ctx context.Context, payment models.Payment, days int, now time.Time) (*models.Grant, error) {
	const op = "storage.ApplyGrant"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var currentEnd sql.NullTime
	if err = tx.QueryRowContext(ctx,
		`SELECT end_of_subscription_date FROM users WHERE uid = $1 FOR UPDATE`,
		payment.UserUID).Scan(&currentEnd); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Продление не перезапускает активную подписку и не наследует
	// истекшее время: старт — максимум из текущего конца и "сейчас".
	start := now
	if currentEnd.Valid && currentEnd.Time.After(now) {
		start = currentEnd.Time
	}
	end := start.AddDate(0, 0, days)

	grant := &models.Grant{Start: start, End: end, DaysAdded: days}

	// xmax = 0 отличает вставку от обновления существующей строки.
	var inserted bool
	var storedStart, storedEnd time.Time
	if err = tx.QueryRowContext(ctx,
		`INSERT INTO payments (reference, user_uid, order_id, channel, amount, currency,
		     status, result, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (reference) DO UPDATE
		     SET status = EXCLUDED.status,
		         result = EXCLUDED.result,
		         updated_at = now()
		 RETURNING (xmax = 0), start_date, end_date`,
		payment.Reference, payment.UserUID, payment.OrderID, payment.Channel,
		payment.Amount, payment.Currency, payment.Status, payment.Result,
		start, end).Scan(&inserted, &storedStart, &storedEnd); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	grant.Created = inserted
	if !inserted {
		// Повтор платежа: окно остается тем, что было выдано при
		// первом применении.
		grant.Start = storedStart
		grant.End = storedEnd
		grant.DaysAdded = 0
	}

	if inserted && days > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE users SET is_subscribed = true, end_of_subscription_date = $2
			 WHERE uid = $1`,
			payment.UserUID, end); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

// GetPaymentByReference возвращает платеж по внешнему идентификатору.
func (s *Storage) GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	const op = "storage.GetPaymentByReference"

	query := `SELECT id, reference, user_uid, order_id, channel, amount, currency,
			      status, result, start_date, end_date, created_at, updated_at
			  FROM payments
			  WHERE reference = $1`
	p := &models.Payment{}
	err := s.DB.QueryRowContext(ctx, query, reference).Scan(&p.ID, &p.Reference,
		&p.UserUID, &p.OrderID, &p.Channel, &p.Amount, &p.Currency,
		&p.Status, &p.Result, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: payment not found", op)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CountPaymentsByUser возвращает число платежей пользователя.
func (s *Storage) CountPaymentsByUser(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CountPaymentsByUser"

	var count int
	query := `SELECT COUNT(*) FROM payments WHERE user_uid = $1`
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

const userColumns = `uid, username, email, password_hash, gender, login_state,
			      status, is_subscribed, end_of_subscription_date, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var email, gender sql.NullString
	var endOfSubscription sql.NullTime
	if err := row.Scan(&u.UID, &u.Username, &email, &u.PasswordHash, &gender,
		&u.LoginState, &u.Status, &u.IsSubscribed, &endOfSubscription, &u.CreatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if gender.Valid {
		u.Gender = &gender.String
	}
	if endOfSubscription.Valid {
		u.EndOfSubscriptionDate = &endOfSubscription.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя в базу данных.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) error {
	const op = "storage.RegisterUser"

	query := `INSERT INTO users (uid, username, email, password_hash, gender,
			      login_state, status, is_subscribed)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	if _, err := s.DB.ExecContext(ctx, query,
		user.UID, user.Username, user.Email, user.PasswordHash, user.Gender,
		user.LoginState, user.Status, user.IsSubscribed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE username = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по его email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UsernameExists сообщает, занят ли username.
func (s *Storage) UsernameExists(ctx context.Context, username string) (bool, error) {
	const op = "storage.UsernameExists"

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	if err := s.DB.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// EmailExists сообщает, зарегистрирован ли email.
func (s *Storage) EmailExists(ctx context.Context, email string) (bool, error) {
	const op = "storage.EmailExists"

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := s.DB.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ExpireLapsedSubscription атомарно сбрасывает флаг подписки и дату
// окончания, если сохраненная дата уже в прошлом. Возвращает true, если
// строка была обновлена. Условие по дате входит в сам UPDATE, поэтому два
// конкурентных запроса не затирают свежепродленную подписку.
func (s *Storage) ExpireLapsedSubscription(ctx context.Context, userUID string, now time.Time) (bool, error) {
	const op = "storage.ExpireLapsedSubscription"

	query := `UPDATE users
			  SET is_subscribed = false, end_of_subscription_date = NULL
			  WHERE uid = $1
			    AND end_of_subscription_date IS NOT NULL
			    AND end_of_subscription_date < $2`
	res, err := s.DB.ExecContext(ctx, query, userUID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// SaveContactMessage сохраняет обращение через форму обратной связи.
func (s *Storage) SaveContactMessage(ctx context.Context, msg models.ContactMessage) (int64, error) {
	const op = "storage.SaveContactMessage"

	var id int64
	query := `INSERT INTO contact_messages (name, email, message)
			  VALUES ($1, $2, $3)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query, msg.Name, msg.Email, msg.Message).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

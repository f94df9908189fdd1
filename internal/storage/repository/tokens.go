package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// IssueToken сохраняет новый токен доступа, отзывая все прежние токены
// пользователя и помечая его login_state как restricted. Все три шага
// выполняются в одной транзакции: два конкурентных входа не могут оба
// остаться с действующим "единственным" токеном.
func (s *Storage) IssueToken(ctx context.Context, token models.AccessToken) error {
	const op = "storage.IssueToken"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE oauth_access_tokens SET revoked = true
		 WHERE user_uid = $1 AND revoked = false`,
		token.UserUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO oauth_access_tokens (token, user_uid, client_id, name, revoked, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, false, $5, $6)`,
		token.Token, token.UserUID, token.ClientID, token.Name,
		token.IssuedAt, token.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET login_state = $2 WHERE uid = $1`,
		token.UserUID, models.LoginStateRestricted); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetToken возвращает запись токена по его строке.
func (s *Storage) GetToken(ctx context.Context, token string) (*models.AccessToken, error) {
	const op = "storage.GetToken"

	query := `SELECT token, user_uid, client_id, name, revoked, issued_at, expires_at
			  FROM oauth_access_tokens
			  WHERE token = $1`
	t := &models.AccessToken{}
	err := s.DB.QueryRowContext(ctx, query, token).Scan(&t.Token, &t.UserUID,
		&t.ClientID, &t.Name, &t.Revoked, &t.IssuedAt, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// CountActiveTokens возвращает число неотозванных и непросроченных токенов
// пользователя.
func (s *Storage) CountActiveTokens(ctx context.Context, userUID string, now time.Time) (int, error) {
	const op = "storage.CountActiveTokens"

	var count int
	query := `SELECT COUNT(*) FROM oauth_access_tokens
			  WHERE user_uid = $1 AND revoked = false AND expires_at > $2`
	if err := s.DB.QueryRowContext(ctx, query, userUID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

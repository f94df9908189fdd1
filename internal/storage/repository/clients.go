package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// GetClientBySecret возвращает неотозванного клиента по секретному ключу.
// Пустая таблица клиентов означает отказ всем шлюзованным маршрутам, а не
// разрешение по умолчанию.
func (s *Storage) GetClientBySecret(ctx context.Context, secret string) (*models.Client, error) {
	const op = "storage.GetClientBySecret"

	query := `SELECT id, name, secret, revoked
			  FROM oauth_clients
			  WHERE secret = $1 AND revoked = false`
	c := &models.Client{}
	err := s.DB.QueryRowContext(ctx, query, secret).Scan(&c.ID, &c.Name, &c.Secret, &c.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrClientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// RevokeClient помечает клиента отозванным.
func (s *Storage) RevokeClient(ctx context.Context, clientID int64) error {
	const op = "storage.RevokeClient"

	query := `UPDATE oauth_clients SET revoked = true WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, clientID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrClientNotFound)
	}
	return nil
}

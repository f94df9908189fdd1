// Package auth содержит логику регистрации, входа, выдачи и проверки
// bearer-токенов и валидации ключей клиентов.
//
// Политика одного активного токена: выдача нового токена отзывает все
// прежние токены пользователя в одной транзакции хранилища. Проверка
// токена объединяет оба слоя — криптографическую валидность подписи и
// флаг отзыва в базе; отозванный токен не проходит проверку, даже пока
// его подпись и срок действия формально валидны.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Gautammer/mangekimambi-api/internal/lib/jwt"
	"github.com/Gautammer/mangekimambi-api/internal/lib/password"
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// Ошибки уровня сервиса; обработчики сопоставляют их со статусами HTTP.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account banned")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidClient      = errors.New("invalid client")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
)

// Repository описывает контракт хранилища для аутентификации.
type Repository interface {
	RegisterUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GetClientBySecret(ctx context.Context, secret string) (*models.Client, error)
	IssueToken(ctx context.Context, token models.AccessToken) error
	GetToken(ctx context.Context, token string) (*models.AccessToken, error)
}

// Reconciler лениво погашает истекшую подписку при чтении пользователя и
// отвечает на вопрос о ее состоянии с учетом бесплатного режима приложения.
type Reconciler interface {
	ReconcileOnRead(ctx context.Context, user *models.User) (*models.User, error)
	IsSubscribed(ctx context.Context, user *models.User) (bool, error)
}

// Service отвечает за регистрацию, авторизацию и проверку токенов.
type Service struct {
	repo          Repository
	jwtMaker      jwt.Maker
	subscriptions Reconciler
}

// New создает новый экземпляр Service.
func New(repo Repository, jwtMaker jwt.Maker, subscriptions Reconciler) *Service {
	return &Service{
		repo:          repo,
		jwtMaker:      jwtMaker,
		subscriptions: subscriptions,
	}
}

// RegisterRequest — данные регистрации после расшифровки конверта.
type RegisterRequest struct {
	Username string
	Password string
	Gender   *string
	Email    *string
}

// Register создает пользователя и сразу выдает ему токен от имени клиента.
func (s *Service) Register(ctx context.Context, client *models.Client, req RegisterRequest) (*models.User, string, error) {
	const op = "auth.Register"

	taken, err := s.repo.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return nil, "", ErrUsernameTaken
	}
	if req.Email != nil {
		exists, err := s.repo.EmailExists(ctx, *req.Email)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		if exists {
			return nil, "", ErrEmailTaken
		}
	}

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		UID:          uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashed,
		Gender:       req.Gender,
		LoginState:   models.LoginStateFree,
		Status:       models.StatusActive,
	}
	if err := s.repo.RegisterUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.issueToken(ctx, user.UID, client.ID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	// Выдача токена пометила login_state.
	user.LoginState = models.LoginStateRestricted
	return &user, token, nil
}

// Login проверяет учетные данные и выдает новый токен, отзывая все прежние.
// Поле login может быть как email, так и username: наличие @ решает, где
// искать пользователя. Ленивое погашение подписки выполняется здесь же,
// вторым местом вызова остается middleware аутентификации.
func (s *Service) Login(ctx context.Context, client *models.Client, login, rawPassword string) (*models.User, string, error) {
	const op = "auth.Login"

	var user *models.User
	var err error
	if strings.Contains(login, "@") {
		user, err = s.repo.GetUserByEmail(ctx, login)
	} else {
		user, err = s.repo.GetUserByUsername(ctx, login)
	}
	if err != nil {
		// Не раскрываем, существует ли учетная запись.
		return nil, "", ErrInvalidCredentials
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if user.Status == models.StatusBanned {
		return nil, "", ErrAccountBanned
	}

	token, err := s.issueToken(ctx, user.UID, client.ID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	user.LoginState = models.LoginStateRestricted

	user, err = s.subscriptions.ReconcileOnRead(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	// Бесплатный режим приложения отражается прямо в профиле ответа.
	subscribed, err := s.subscriptions.IsSubscribed(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	user.IsSubscribed = subscribed
	return user, token, nil
}

// VerifyToken проверяет bearer-токен: подпись и срок действия JWT, затем
// флаг отзыва сохраненной записи. Возвращает владельца токена с уже
// погашенной (при необходимости) подпиской.
func (s *Service) VerifyToken(ctx context.Context, tokenStr string) (*models.User, error) {
	const op = "auth.VerifyToken"

	claims, err := s.jwtMaker.ParseToken(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	stored, err := s.repo.GetToken(ctx, tokenStr)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if stored.Revoked || stored.ExpiresAt.Before(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUser(ctx, claims.UserUID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if user.Status == models.StatusBanned {
		return nil, ErrInvalidToken
	}

	user, err = s.subscriptions.ReconcileOnRead(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ValidateClientKey возвращает неотозванного клиента по ключу из заголовка.
// Отсутствующий или неизвестный ключ — отказ; пустая таблица клиентов тоже
// означает отказ, а не разрешение по умолчанию.
func (s *Service) ValidateClientKey(ctx context.Context, key string) (*models.Client, error) {
	if key == "" {
		return nil, ErrInvalidClient
	}
	client, err := s.repo.GetClientBySecret(ctx, key)
	if err != nil {
		return nil, ErrInvalidClient
	}
	return client, nil
}

// UsernameAvailable сообщает, свободен ли username.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	const op = "auth.UsernameAvailable"
	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return !taken, nil
}

func (s *Service) issueToken(ctx context.Context, userUID string, clientID int64) (string, error) {
	tokenStr, err := s.jwtMaker.GenerateToken(userUID)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	token := models.AccessToken{
		Token:     tokenStr,
		UserUID:   userUID,
		ClientID:  clientID,
		Name:      "appToken",
		IssuedAt:  now,
		ExpiresAt: now.Add(s.jwtMaker.TokenTTL()),
	}
	if err := s.repo.IssueToken(ctx, token); err != nil {
		return "", err
	}
	return tokenStr, nil
}

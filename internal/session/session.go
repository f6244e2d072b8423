// Package session сопоставляет сессии внешнего провайдера аутентификации
// с локальными пользователями. Токен провайдера является JWT HS256 с адресом почты в claim email.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
)

// Event: событие смены состояния сессии у провайдера.
type Event string

const (
	SignedIn  Event = "SIGNED_IN"
	SignedOut Event = "SIGNED_OUT"
)

var (
	// ErrDisabled возвращается, если секрет провайдера не настроен.
	ErrDisabled = errors.New("remote sessions are disabled")
	// ErrInvalidToken возвращается для неподписанного, просроченного или неполного токена.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrUnknownEvent возвращается для неподдерживаемого события.
	ErrUnknownEvent = errors.New("unknown session event")
	// ErrUserNotFound возвращается, если локального пользователя с такой почтой нет.
	ErrUserNotFound = errors.New("user not found")
)

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// UserFinder ищет пользователя по логину.
type UserFinder interface {
	FindUserByLogin(ctx context.Context, login string) (*model.User, error)
}

// Resolver проверяет токены провайдера и находит по ним локальных пользователей.
// Пользователи автоматически не создаются.
type Resolver struct {
	secret []byte
	users  UserFinder
	now    func() time.Time
}

// NewResolver создаёт Resolver. С пустым secret вход через провайдера отключён.
func NewResolver(secret string, users UserFinder) *Resolver {
	return &Resolver{
		secret: []byte(secret),
		users:  users,
		now:    time.Now,
	}
}

// Enabled сообщает, настроен ли вход через провайдера.
func (r *Resolver) Enabled() bool {
	return r != nil && len(r.secret) > 0
}

// Email проверяет подпись и срок действия токена и возвращает адрес почты.
func (r *Resolver) Email(token string) (string, error) {
	if !r.Enabled() {
		return "", ErrDisabled
	}

	var c claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &c, func(*jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email := strings.TrimSpace(c.Email)
	if email == "" {
		return "", fmt.Errorf("%w: email claim is required", ErrInvalidToken)
	}
	return email, nil
}

// Resolve обрабатывает событие провайдера. Для SIGNED_IN возвращает локального
// пользователя, для SIGNED_OUT возвращает nil без ошибки.
func (r *Resolver) Resolve(ctx context.Context, event Event, token string) (*model.User, error) {
	switch event {
	case SignedOut:
		return nil, nil
	case SignedIn:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	email, err := r.Email(token)
	if err != nil {
		return nil, err
	}

	u, err := r.users.FindUserByLogin(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

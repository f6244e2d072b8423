package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
	"github.com/mmeshcher/engagemart/internal/validation"
)

const minPasswordLength = 6

// LeaderboardEntry: строка таблицы лидеров.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	XP     int64  `json:"xp"`
}

// RegisterUser регистрирует нового пользователя со статусом допуска unpaid и нулевым балансом.
func (s *Service) RegisterUser(ctx context.Context, login, password, name string, role model.Role) (*model.User, error) {
	login = normalizeLogin(login)
	if !validation.IsValidLogin(login) {
		return nil, invalid("login must be an email address")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}
	if role == "" {
		role = model.RoleEngager
	}
	if role != model.RoleCreator && role != model.RoleEngager {
		return nil, invalid("role must be creator or engager")
	}

	return s.createUser(ctx, login, password, name, role, model.VerificationUnpaid)
}

func (s *Service) createUser(ctx context.Context, login, password, name string, role model.Role, status model.VerificationStatus) (*model.User, error) {
	login = normalizeLogin(login)
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.PasswordCost)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(login, "@")
	}

	u := &model.User{
		ID:                 newID(),
		Login:              login,
		PasswordHash:       hashed,
		Name:               strings.TrimSpace(name),
		Role:               role,
		VerificationStatus: status,
		CreatedAt:          s.now(),
	}
	err = s.withTx(ctx, func(tx repository.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// normalizeLogin приводит логин к виду, в котором он хранится: без пробелов по краям, в нижнем регистре.
func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (string, error) {
	u, err := s.FindUserByLogin(ctx, login)
	if isNotFound(err) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return u.ID, nil
}

// FindUserByLogin ищет пользователя по логину. Для отсутствующего пользователя возвращает repository.ErrNotFound.
func (s *Service) FindUserByLogin(ctx context.Context, login string) (*model.User, error) {
	var res *model.User
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetUserByLogin(ctx, normalizeLogin(login))
		return err
	})
	return res, err
}

// EnsureAdmin создаёт администратора с указанным логином, если его ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}

	existing, err := s.FindUserByLogin(ctx, login)
	if err == nil {
		if existing.Role != model.RoleAdmin {
			s.logger.Warn("admin login belongs to a regular user", zap.String("login", login))
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	_, err = s.createUser(ctx, login, password, "Admin", model.RoleAdmin, model.VerificationVerified)
	if errors.Is(err, repository.ErrUserExists) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("admin account created", zap.String("login", login))
	return nil
}

// Profile возвращает пользователя по идентификатору.
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	var res *model.User
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetUser(ctx, userID)
		return err
	})
	return res, err
}

// IsAdmin сообщает, является ли пользователь администратором.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Role == model.RoleAdmin, nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context, adminID string) ([]model.User, error) {
	var res []model.User
	err := s.withTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		var err error
		res, err = tx.ListUsers(ctx)
		return err
	})
	return res, err
}

// Leaderboard возвращает не более limit пользователей с наибольшим опытом.
// Администраторы в таблицу не попадают.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var users []model.User
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool { return users[i].XP > users[j].XP })

	res := make([]LeaderboardEntry, 0, limit)
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			continue
		}
		if len(res) == limit {
			break
		}
		res = append(res, LeaderboardEntry{UserID: u.ID, Name: u.Name, XP: u.XP})
	}
	return res, nil
}

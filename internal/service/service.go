// Package service реализует бизнес-логику маркетплейса: кошелёк и журнал
// проводок, кампании и задания, допуск исполнителей, торговую площадку и уведомления.
// Каждая операция выполняется в одной транзакции хранилища.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/engagemart/internal/ai"
	"github.com/mmeshcher/engagemart/internal/metrics"
	"github.com/mmeshcher/engagemart/internal/model"
	"github.com/mmeshcher/engagemart/internal/repository"
)

// AI описывает внешний AI-сервис. Реализации обязаны возвращать пригодный
// результат даже вместе с ошибкой.
type AI interface {
	VerifyTask(ctx context.Context, req ai.VerificationRequest) (ai.VerificationResult, error)
	GenerateInsights(ctx context.Context, req ai.InsightRequest) (string, error)
}

// Presigner выдаёт временные ссылки на файлы цифровых товаров.
type Presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Options задаёт настраиваемые параметры бизнес-логики.
type Options struct {
	// VerificationFee: размер взноса за допуск к заданиям.
	VerificationFee model.Money
	// CreditSellers включает зачисление выручки продавцам.
	CreditSellers bool
	// XPPerTask: опыт за одно принятое задание.
	XPPerTask int64
	// PasswordCost: стоимость bcrypt для хэшей паролей.
	PasswordCost int
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		VerificationFee: 500,
		XPPerTask:       10,
		PasswordCost:    bcrypt.DefaultCost,
	}
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	store  repository.Store
	ai     AI
	files  Presigner
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewService создаёт сервис поверх хранилища. files может быть nil:
// тогда скачивание цифровых товаров недоступно.
func NewService(store repository.Store, aiClient AI, files Presigner, logger *zap.Logger, opts Options) *Service {
	if aiClient == nil {
		aiClient = (*ai.Client)(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		ai:     aiClient,
		files:  files,
		logger: logger,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

type ledgerEvent struct {
	typ, status string
}

// journalTx запоминает изменения журнала проводок до фиксации транзакции.
type journalTx struct {
	repository.Tx
	events []ledgerEvent
}

// withTx выполняет fn в транзакции хранилища. Счётчики проводок обновляются
// только после успешной фиксации, повторённые и откатанные попытки не учитываются.
func (s *Service) withTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	var committed []ledgerEvent
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		j := &journalTx{Tx: tx}
		if err := fn(j); err != nil {
			return err
		}
		committed = j.events
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range committed {
		metrics.LedgerTransactions.WithLabelValues(e.typ, e.status).Inc()
	}
	return nil
}

func countLedger(tx repository.Tx, t *model.Transaction) {
	if j, ok := tx.(*journalTx); ok {
		j.events = append(j.events, ledgerEvent{typ: string(t.Type), status: string(t.Status)})
	}
}

// record добавляет проводку в журнал в рамках транзакции tx.
func (s *Service) record(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	t.ID = newID()
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	if t.Direction == "" {
		t.Direction = model.DirectionCredit
		if t.Amount < 0 {
			t.Direction = model.DirectionDebit
		}
	}
	if err := tx.CreateTransaction(ctx, t); err != nil {
		return err
	}
	countLedger(tx, t)
	return nil
}

// lockUsers блокирует пользователей в порядке возрастания идентификаторов,
// чтобы встречные операции над одной парой не взаимоблокировались.
func lockUsers(ctx context.Context, tx repository.Tx, ids ...string) (map[string]*model.User, error) {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Strings(sorted)

	res := make(map[string]*model.User, len(sorted))
	for _, id := range sorted {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		res[id] = u
	}
	return res, nil
}

// credit меняет баланс пользователя на amount без переполнения.
func credit(u *model.User, amount model.Money) error {
	balance, err := u.Balance.Add(amount)
	if err != nil {
		return invalid("balance of user %s is out of range", u.ID)
	}
	u.Balance = balance
	return nil
}

func requireAdmin(ctx context.Context, tx repository.Tx, userID string) error {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.Role != model.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

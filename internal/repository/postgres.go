package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/engagemart/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		retryable := isConnectionError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			retryable = pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
		}

		if !retryable || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// WithTx выполняет fn в транзакции БД. При сбое сериализации или взаимоблокировке
// транзакция повторяется целиком.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

type pgTx struct {
	tx pgx.Tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func requireRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, login, password_hash, name, role, balance, xp, verification_status, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Name, &u.Role, &u.Balance, &u.XP, &u.VerificationStatus, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *model.User) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Login, u.PasswordHash, u.Name, u.Role, u.Balance, u.XP, u.VerificationStatus, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Login)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (t *pgTx) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (t *pgTx) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(login) = lower($1)`, login))
	if err != nil {
		return nil, fmt.Errorf("get user by login: %w", err)
	}
	return u, nil
}

func (t *pgTx) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users SET name = $2, role = $3, balance = $4, xp = $5, verification_status = $6 WHERE id = $1`,
		u.ID, u.Name, u.Role, u.Balance, u.XP, u.VerificationStatus,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(tag)
}

func (t *pgTx) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return collect(rows, scanUser)
}

// collect читает все строки выборки через функцию сканирования одной строки.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var res []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		res = append(res, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const transactionColumns = `id, user_id, type, status, amount, direction, method, details, reference_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tr model.Transaction
	err := row.Scan(&tr.ID, &tr.UserID, &tr.Type, &tr.Status, &tr.Amount, &tr.Direction,
		&tr.Method, &tr.Details, &tr.ReferenceID, &tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &tr, nil
}

func (t *pgTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tr.ID, tr.UserID, tr.Type, tr.Status, tr.Amount, tr.Direction, tr.Method, tr.Details, tr.ReferenceID, tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tr, nil
}

func (t *pgTx) UpdateTransaction(ctx context.Context, tr *model.Transaction) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions SET status = $2, details = $3, updated_at = $4 WHERE id = $1`,
		tr.ID, tr.Status, tr.Details, tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(tag)
}

func (t *pgTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE ($1 = '' OR user_id = $1)
		   AND ($2 = '' OR type = $2)
		   AND ($3 = '' OR status = $3)
		   AND ($4 = '' OR reference_id = $4)
		 ORDER BY created_at DESC, seq DESC`,
		f.UserID, string(f.Type), string(f.Status), f.ReferenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return collect(rows, scanTransaction)
}

const campaignColumns = `id, creator_id, title, platform, action, target_url, instructions,
	total_budget, reward_per_task, remaining_budget, completed_count, status, created_at`

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(&c.ID, &c.CreatorID, &c.Title, &c.Platform, &c.Action, &c.TargetURL, &c.Instructions,
		&c.TotalBudget, &c.RewardPerTask, &c.RemainingBudget, &c.CompletedCount, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (t *pgTx) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.CreatorID, c.Title, c.Platform, c.Action, c.TargetURL, c.Instructions,
		c.TotalBudget, c.RewardPerTask, c.RemainingBudget, c.CompletedCount, c.Status, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (t *pgTx) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := scanCampaign(t.tx.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (t *pgTx) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE campaigns SET remaining_budget = $2, completed_count = $3, status = $4 WHERE id = $1`,
		c.ID, c.RemainingBudget, c.CompletedCount, c.Status,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(tag)
}

func (t *pgTx) ListCampaigns(ctx context.Context, f CampaignFilter) ([]model.Campaign, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+campaignColumns+`
		 FROM campaigns
		 WHERE ($1 = '' OR creator_id = $1)
		   AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, seq DESC`,
		f.CreatorID, string(f.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("select campaigns: %w", err)
	}
	return collect(rows, scanCampaign)
}

func (t *pgTx) CreateTaskCompletion(ctx context.Context, c *model.TaskCompletion) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO task_completions (campaign_id, user_id, proof, confidence, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.CampaignID, c.UserID, c.Proof, c.Confidence, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyCompleted
		}
		return fmt.Errorf("insert task completion: %w", err)
	}
	return nil
}

func (t *pgTx) ListTaskCompletions(ctx context.Context, userID string) ([]model.TaskCompletion, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT campaign_id, user_id, proof, confidence, created_at
		 FROM task_completions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select task completions: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*model.TaskCompletion, error) {
		var c model.TaskCompletion
		if err := row.Scan(&c.CampaignID, &c.UserID, &c.Proof, &c.Confidence, &c.CreatedAt); err != nil {
			return nil, err
		}
		return &c, nil
	})
}

func (t *pgTx) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (t *pgTx) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT n.id, n.user_id, n.type, n.title, n.message, n.created_at, r.user_id IS NOT NULL
		 FROM notifications n
		 LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		 WHERE n.user_id = $1 OR n.user_id = $2
		 ORDER BY n.created_at DESC, n.seq DESC`,
		userID, model.BroadcastUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*model.Notification, error) {
		var n model.Notification
		if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		return &n, nil
	})
}

func (t *pgTx) MarkNotificationRead(ctx context.Context, userID, id string) error {
	var owner string
	err := t.tx.QueryRow(ctx, `SELECT user_id FROM notifications WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return fmt.Errorf("get notification: %w", notFound(err))
	}
	if owner != userID && owner != model.BroadcastUserID {
		return ErrNotFound
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO notification_reads (notification_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

const gigColumns = `id, seller_id, title, description, category, price, delivery_days, sales_count, created_at`

func scanGig(row pgx.Row) (*model.Gig, error) {
	var g model.Gig
	err := row.Scan(&g.ID, &g.SellerID, &g.Title, &g.Description, &g.Category, &g.Price, &g.DeliveryDays, &g.SalesCount, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (t *pgTx) CreateGig(ctx context.Context, g *model.Gig) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO gigs (`+gigColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, g.SellerID, g.Title, g.Description, g.Category, g.Price, g.DeliveryDays, g.SalesCount, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gig: %w", err)
	}
	return nil
}

func (t *pgTx) GetGig(ctx context.Context, id string) (*model.Gig, error) {
	g, err := scanGig(t.tx.QueryRow(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get gig: %w", err)
	}
	return g, nil
}

func (t *pgTx) UpdateGig(ctx context.Context, g *model.Gig) error {
	tag, err := t.tx.Exec(ctx, `UPDATE gigs SET sales_count = $2 WHERE id = $1`, g.ID, g.SalesCount)
	if err != nil {
		return fmt.Errorf("update gig: %w", err)
	}
	return requireRow(tag)
}

func (t *pgTx) ListGigs(ctx context.Context) ([]model.Gig, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+gigColumns+` FROM gigs ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("select gigs: %w", err)
	}
	return collect(rows, scanGig)
}

const storefrontColumns = `id, owner_id, name, slug, description, created_at`

func scanStorefront(row pgx.Row) (*model.Storefront, error) {
	var s model.Storefront
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Slug, &s.Description, &s.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (t *pgTx) CreateStorefront(ctx context.Context, s *model.Storefront) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO storefronts (`+storefrontColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.OwnerID, s.Name, s.Slug, s.Description, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrStoreExists
		}
		return fmt.Errorf("insert storefront: %w", err)
	}
	return nil
}

func (t *pgTx) GetStorefrontBySlug(ctx context.Context, slug string) (*model.Storefront, error) {
	s, err := scanStorefront(t.tx.QueryRow(ctx, `SELECT `+storefrontColumns+` FROM storefronts WHERE slug = $1`, slug))
	if err != nil {
		return nil, fmt.Errorf("get storefront: %w", err)
	}
	return s, nil
}

func (t *pgTx) GetStorefrontByOwner(ctx context.Context, ownerID string) (*model.Storefront, error) {
	s, err := scanStorefront(t.tx.QueryRow(ctx, `SELECT `+storefrontColumns+` FROM storefronts WHERE owner_id = $1`, ownerID))
	if err != nil {
		return nil, fmt.Errorf("get storefront: %w", err)
	}
	return s, nil
}

const productColumns = `id, seller_id, store_id, title, description, price, file_key, sales_count, created_at`

func scanProduct(row pgx.Row) (*model.DigitalProduct, error) {
	var p model.DigitalProduct
	err := row.Scan(&p.ID, &p.SellerID, &p.StoreID, &p.Title, &p.Description, &p.Price, &p.FileKey, &p.SalesCount, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (t *pgTx) CreateProduct(ctx context.Context, p *model.DigitalProduct) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO digital_products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.SellerID, p.StoreID, p.Title, p.Description, p.Price, p.FileKey, p.SalesCount, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (*model.DigitalProduct, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM digital_products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (t *pgTx) UpdateProduct(ctx context.Context, p *model.DigitalProduct) error {
	tag, err := t.tx.Exec(ctx, `UPDATE digital_products SET sales_count = $2 WHERE id = $1`, p.ID, p.SalesCount)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return requireRow(tag)
}

func (t *pgTx) ListProducts(ctx context.Context, storeID string) ([]model.DigitalProduct, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+productColumns+` FROM digital_products WHERE ($1 = '' OR store_id = $1) ORDER BY created_at DESC, seq DESC`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return collect(rows, scanProduct)
}

func (t *pgTx) CreateVideo(ctx context.Context, v *model.Video) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO videos (id, owner_id, title, url, platform, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.OwnerID, v.Title, v.URL, v.Platform, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (t *pgTx) ListVideos(ctx context.Context) ([]model.Video, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, owner_id, title, url, platform, created_at FROM videos ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("select videos: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*model.Video, error) {
		var v model.Video
		if err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.URL, &v.Platform, &v.CreatedAt); err != nil {
			return nil, err
		}
		return &v, nil
	})
}

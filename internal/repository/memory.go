package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/engagemart/internal/model"
)

type row[T any] struct {
	v   T
	seq int64
}

type table[T any] map[string]row[T]

// staged накапливает записи транзакции поверх зафиксированной таблицы.
type staged[T any] struct {
	base   table[T]
	writes table[T]
	seq    *int64
}

func newStaged[T any](base table[T], seq *int64) *staged[T] {
	return &staged[T]{base: base, writes: make(table[T]), seq: seq}
}

func (s *staged[T]) get(id string) (T, bool) {
	if r, ok := s.writes[id]; ok {
		return r.v, true
	}
	r, ok := s.base[id]
	return r.v, ok
}

func (s *staged[T]) insert(id string, v T) {
	*s.seq++
	s.writes[id] = row[T]{v: v, seq: *s.seq}
}

func (s *staged[T]) update(id string, v T) bool {
	r, ok := s.writes[id]
	if !ok {
		r, ok = s.base[id]
	}
	if !ok {
		return false
	}
	r.v = v
	s.writes[id] = r
	return true
}

func (s *staged[T]) rows() []row[T] {
	res := make([]row[T], 0, len(s.base)+len(s.writes))
	for id, r := range s.base {
		if w, ok := s.writes[id]; ok {
			r = w
		}
		res = append(res, r)
	}
	for id, w := range s.writes {
		if _, ok := s.base[id]; !ok {
			res = append(res, w)
		}
	}
	return res
}

func (s *staged[T]) commit() {
	for id, r := range s.writes {
		s.base[id] = r
	}
}

// newestFirst фильтрует строки и упорядочивает их от новых к старым.
// При равном времени создания позже вставленная строка идёт первой.
func newestFirst[T any](rows []row[T], created func(T) time.Time, keep func(T) bool) []T {
	filtered := rows[:0]
	for _, r := range rows {
		if keep == nil || keep(r.v) {
			filtered = append(filtered, r)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		ci, cj := created(filtered[i].v), created(filtered[j].v)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return filtered[i].seq > filtered[j].seq
	})

	res := make([]T, 0, len(filtered))
	for _, r := range filtered {
		res = append(res, r.v)
	}
	return res
}

// MemoryStore хранит все коллекции в памяти процесса.
// Транзакции выполняются по одной: мьютекс удерживается до фиксации.
type MemoryStore struct {
	mu   sync.Mutex
	seq  int64
	path string

	users         table[model.User]
	transactions  table[model.Transaction]
	campaigns     table[model.Campaign]
	completions   table[model.TaskCompletion]
	notifications table[model.Notification]
	reads         table[struct{}]
	gigs          table[model.Gig]
	stores        table[model.Storefront]
	products      table[model.DigitalProduct]
	videos        table[model.Video]
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(table[model.User]),
		transactions:  make(table[model.Transaction]),
		campaigns:     make(table[model.Campaign]),
		completions:   make(table[model.TaskCompletion]),
		notifications: make(table[model.Notification]),
		reads:         make(table[struct{}]),
		gigs:          make(table[model.Gig]),
		stores:        make(table[model.Storefront]),
		products:      make(table[model.DigitalProduct]),
		videos:        make(table[model.Video]),
	}
}

// WithTx выполняет fn в транзакции. Записи применяются только при успешном завершении fn.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		users:         newStaged(m.users, &m.seq),
		transactions:  newStaged(m.transactions, &m.seq),
		campaigns:     newStaged(m.campaigns, &m.seq),
		completions:   newStaged(m.completions, &m.seq),
		notifications: newStaged(m.notifications, &m.seq),
		reads:         newStaged(m.reads, &m.seq),
		gigs:          newStaged(m.gigs, &m.seq),
		stores:        newStaged(m.stores, &m.seq),
		products:      newStaged(m.products, &m.seq),
		videos:        newStaged(m.videos, &m.seq),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// Close сохраняет снимок на диск, если хранилище открыто из файла.
func (m *MemoryStore) Close() error {
	if m.path == "" {
		return nil
	}
	return m.Save()
}

type memoryTx struct {
	users         *staged[model.User]
	transactions  *staged[model.Transaction]
	campaigns     *staged[model.Campaign]
	completions   *staged[model.TaskCompletion]
	notifications *staged[model.Notification]
	reads         *staged[struct{}]
	gigs          *staged[model.Gig]
	stores        *staged[model.Storefront]
	products      *staged[model.DigitalProduct]
	videos        *staged[model.Video]
}

func (t *memoryTx) commit() {
	t.users.commit()
	t.transactions.commit()
	t.campaigns.commit()
	t.completions.commit()
	t.notifications.commit()
	t.reads.commit()
	t.gigs.commit()
	t.stores.commit()
	t.products.commit()
	t.videos.commit()
}

func completionKey(campaignID, userID string) string {
	return campaignID + "/" + userID
}

func readKey(notificationID, userID string) string {
	return notificationID + "/" + userID
}

func (t *memoryTx) CreateUser(_ context.Context, u *model.User) error {
	for _, r := range t.users.rows() {
		if strings.EqualFold(r.v.Login, u.Login) {
			return ErrUserExists
		}
	}
	t.users.insert(u.ID, *u)
	return nil
}

func (t *memoryTx) GetUser(_ context.Context, id string) (*model.User, error) {
	u, ok := t.users.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memoryTx) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	for _, r := range t.users.rows() {
		if strings.EqualFold(r.v.Login, login) {
			u := r.v
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) UpdateUser(_ context.Context, u *model.User) error {
	if !t.users.update(u.ID, *u) {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) ListUsers(_ context.Context) ([]model.User, error) {
	return newestFirst(t.users.rows(), func(u model.User) time.Time { return u.CreatedAt }, nil), nil
}

func (t *memoryTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	t.transactions.insert(tr.ID, *tr)
	return nil
}

func (t *memoryTx) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	tr, ok := t.transactions.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &tr, nil
}

func (t *memoryTx) UpdateTransaction(_ context.Context, tr *model.Transaction) error {
	if !t.transactions.update(tr.ID, *tr) {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) ListTransactions(_ context.Context, f TransactionFilter) ([]model.Transaction, error) {
	keep := func(tr model.Transaction) bool {
		return (f.UserID == "" || tr.UserID == f.UserID) &&
			(f.Type == "" || tr.Type == f.Type) &&
			(f.Status == "" || tr.Status == f.Status) &&
			(f.ReferenceID == "" || tr.ReferenceID == f.ReferenceID)
	}
	return newestFirst(t.transactions.rows(), func(tr model.Transaction) time.Time { return tr.CreatedAt }, keep), nil
}

func (t *memoryTx) CreateCampaign(_ context.Context, c *model.Campaign) error {
	t.campaigns.insert(c.ID, *c)
	return nil
}

func (t *memoryTx) GetCampaign(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := t.campaigns.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memoryTx) UpdateCampaign(_ context.Context, c *model.Campaign) error {
	if !t.campaigns.update(c.ID, *c) {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) ListCampaigns(_ context.Context, f CampaignFilter) ([]model.Campaign, error) {
	keep := func(c model.Campaign) bool {
		return (f.CreatorID == "" || c.CreatorID == f.CreatorID) &&
			(f.Status == "" || c.Status == f.Status)
	}
	return newestFirst(t.campaigns.rows(), func(c model.Campaign) time.Time { return c.CreatedAt }, keep), nil
}

func (t *memoryTx) CreateTaskCompletion(_ context.Context, c *model.TaskCompletion) error {
	key := completionKey(c.CampaignID, c.UserID)
	if _, ok := t.completions.get(key); ok {
		return ErrAlreadyCompleted
	}
	t.completions.insert(key, *c)
	return nil
}

func (t *memoryTx) ListTaskCompletions(_ context.Context, userID string) ([]model.TaskCompletion, error) {
	keep := func(c model.TaskCompletion) bool { return c.UserID == userID }
	return newestFirst(t.completions.rows(), func(c model.TaskCompletion) time.Time { return c.CreatedAt }, keep), nil
}

func (t *memoryTx) CreateNotification(_ context.Context, n *model.Notification) error {
	stored := *n
	stored.Read = false
	t.notifications.insert(n.ID, stored)
	return nil
}

func (t *memoryTx) ListNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	keep := func(n model.Notification) bool {
		return n.UserID == userID || n.UserID == model.BroadcastUserID
	}
	res := newestFirst(t.notifications.rows(), func(n model.Notification) time.Time { return n.CreatedAt }, keep)
	for i := range res {
		_, res[i].Read = t.reads.get(readKey(res[i].ID, userID))
	}
	return res, nil
}

func (t *memoryTx) MarkNotificationRead(_ context.Context, userID, id string) error {
	n, ok := t.notifications.get(id)
	if !ok || (n.UserID != userID && n.UserID != model.BroadcastUserID) {
		return ErrNotFound
	}
	key := readKey(id, userID)
	if _, ok := t.reads.get(key); !ok {
		t.reads.insert(key, struct{}{})
	}
	return nil
}

func (t *memoryTx) CreateGig(_ context.Context, g *model.Gig) error {
	t.gigs.insert(g.ID, *g)
	return nil
}

func (t *memoryTx) GetGig(_ context.Context, id string) (*model.Gig, error) {
	g, ok := t.gigs.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (t *memoryTx) UpdateGig(_ context.Context, g *model.Gig) error {
	if !t.gigs.update(g.ID, *g) {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) ListGigs(_ context.Context) ([]model.Gig, error) {
	return newestFirst(t.gigs.rows(), func(g model.Gig) time.Time { return g.CreatedAt }, nil), nil
}

func (t *memoryTx) CreateStorefront(_ context.Context, s *model.Storefront) error {
	for _, r := range t.stores.rows() {
		if r.v.OwnerID == s.OwnerID || r.v.Slug == s.Slug {
			return ErrStoreExists
		}
	}
	t.stores.insert(s.ID, *s)
	return nil
}

func (t *memoryTx) GetStorefrontBySlug(_ context.Context, slug string) (*model.Storefront, error) {
	for _, r := range t.stores.rows() {
		if r.v.Slug == slug {
			s := r.v
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) GetStorefrontByOwner(_ context.Context, ownerID string) (*model.Storefront, error) {
	for _, r := range t.stores.rows() {
		if r.v.OwnerID == ownerID {
			s := r.v
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) CreateProduct(_ context.Context, p *model.DigitalProduct) error {
	t.products.insert(p.ID, *p)
	return nil
}

func (t *memoryTx) GetProduct(_ context.Context, id string) (*model.DigitalProduct, error) {
	p, ok := t.products.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memoryTx) UpdateProduct(_ context.Context, p *model.DigitalProduct) error {
	if !t.products.update(p.ID, *p) {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) ListProducts(_ context.Context, storeID string) ([]model.DigitalProduct, error) {
	keep := func(p model.DigitalProduct) bool { return storeID == "" || p.StoreID == storeID }
	return newestFirst(t.products.rows(), func(p model.DigitalProduct) time.Time { return p.CreatedAt }, keep), nil
}

func (t *memoryTx) CreateVideo(_ context.Context, v *model.Video) error {
	t.videos.insert(v.ID, *v)
	return nil
}

func (t *memoryTx) ListVideos(_ context.Context) ([]model.Video, error) {
	return newestFirst(t.videos.rows(), func(v model.Video) time.Time { return v.CreatedAt }, nil), nil
}

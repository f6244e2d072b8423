package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmeshcher/engagemart/internal/model"
)

// SnapshotVersion: версия формата снимка хранилища в памяти.
const SnapshotVersion = 1

// ErrSnapshotVersion возвращается при загрузке снимка неизвестной версии.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

type snapshotUser struct {
	model.User
	PasswordHash []byte `json:"password_hash"`
}

type snapshotProduct struct {
	model.DigitalProduct
	FileKey string `json:"file_key"`
}

type notificationRead struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
}

type snapshot struct {
	Version       int                    `json:"version"`
	Users         []snapshotUser         `json:"users"`
	Transactions  []model.Transaction    `json:"transactions"`
	Campaigns     []model.Campaign       `json:"campaigns"`
	Completions   []model.TaskCompletion `json:"task_completions"`
	Notifications []model.Notification   `json:"notifications"`
	Reads         []notificationRead     `json:"notification_reads"`
	Gigs          []model.Gig            `json:"gigs"`
	Stores        []model.Storefront     `json:"storefronts"`
	Products      []snapshotProduct      `json:"digital_products"`
	Videos        []model.Video          `json:"videos"`
}

// inserted возвращает записи таблицы в порядке вставки.
func inserted[T any](t table[T]) []T {
	rows := make([]row[T], 0, len(t))
	for _, r := range t {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	res := make([]T, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.v)
	}
	return res
}

// OpenMemoryStore создаёт хранилище в памяти, связанное с файлом снимка.
// Если файл существует, данные загружаются из него; Close сохраняет снимок обратно.
func OpenMemoryStore(path string) (*MemoryStore, error) {
	m := NewMemoryStore()
	m.path = path

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if err := m.Load(f); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteSnapshot записывает все коллекции в w.
func (m *MemoryStore) WriteSnapshot(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := snapshot{
		Version:       SnapshotVersion,
		Transactions:  inserted(m.transactions),
		Campaigns:     inserted(m.campaigns),
		Completions:   inserted(m.completions),
		Notifications: inserted(m.notifications),
		Gigs:          inserted(m.gigs),
		Stores:        inserted(m.stores),
		Videos:        inserted(m.videos),
	}
	for _, u := range inserted(m.users) {
		s.Users = append(s.Users, snapshotUser{User: u, PasswordHash: u.PasswordHash})
	}
	for _, p := range inserted(m.products) {
		s.Products = append(s.Products, snapshotProduct{DigitalProduct: p, FileKey: p.FileKey})
	}

	keys := make([]string, 0, len(m.reads))
	for k := range m.reads {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		notificationID, userID, _ := strings.Cut(k, "/")
		s.Reads = append(s.Reads, notificationRead{NotificationID: notificationID, UserID: userID})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Load заменяет содержимое хранилища данными снимка.
func (m *MemoryStore) Load(r io.Reader) error {
	var s snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := NewMemoryStore()
	m.seq = 0
	m.users, m.transactions, m.campaigns = fresh.users, fresh.transactions, fresh.campaigns
	m.completions, m.notifications, m.reads = fresh.completions, fresh.notifications, fresh.reads
	m.gigs, m.stores, m.products, m.videos = fresh.gigs, fresh.stores, fresh.products, fresh.videos

	next := func() int64 {
		m.seq++
		return m.seq
	}

	for _, u := range s.Users {
		u.User.PasswordHash = u.PasswordHash
		m.users[u.ID] = row[model.User]{v: u.User, seq: next()}
	}
	for _, t := range s.Transactions {
		m.transactions[t.ID] = row[model.Transaction]{v: t, seq: next()}
	}
	for _, c := range s.Campaigns {
		m.campaigns[c.ID] = row[model.Campaign]{v: c, seq: next()}
	}
	for _, c := range s.Completions {
		key := completionKey(c.CampaignID, c.UserID)
		m.completions[key] = row[model.TaskCompletion]{v: c, seq: next()}
	}
	for _, n := range s.Notifications {
		n.Read = false
		m.notifications[n.ID] = row[model.Notification]{v: n, seq: next()}
	}
	for _, rd := range s.Reads {
		key := readKey(rd.NotificationID, rd.UserID)
		m.reads[key] = row[struct{}]{seq: next()}
	}
	for _, g := range s.Gigs {
		m.gigs[g.ID] = row[model.Gig]{v: g, seq: next()}
	}
	for _, st := range s.Stores {
		m.stores[st.ID] = row[model.Storefront]{v: st, seq: next()}
	}
	for _, p := range s.Products {
		p.DigitalProduct.FileKey = p.FileKey
		m.products[p.ID] = row[model.DigitalProduct]{v: p.DigitalProduct, seq: next()}
	}
	for _, v := range s.Videos {
		m.videos[v.ID] = row[model.Video]{v: v, seq: next()}
	}

	return nil
}

// Save атомарно записывает снимок в файл, указанный при открытии.
func (m *MemoryStore) Save() error {
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.WriteSnapshot(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

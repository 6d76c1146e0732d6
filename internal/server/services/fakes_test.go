package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/chatkeeper/internal/common"
	"github.com/dmitrijs2005/chatkeeper/internal/dbx"
	"github.com/dmitrijs2005/chatkeeper/internal/server/config"
	"github.com/dmitrijs2005/chatkeeper/internal/server/models"
	imagesrepo "github.com/dmitrijs2005/chatkeeper/internal/server/repositories/images"
	messagesrepo "github.com/dmitrijs2005/chatkeeper/internal/server/repositories/messages"
	usersrepo "github.com/dmitrijs2005/chatkeeper/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	return cfg
}

// clock hands out timestamps; tick=false repeats the last one to force ties.
type clock struct {
	now  time.Time
	tick bool
}

func (c *clock) next() time.Time {
	if c.tick {
		c.now = c.now.Add(time.Second)
	}
	return c.now
}

// store is an in-memory stand-in for the three tables that keeps the same
// ordering and ownership rules as the SQL repositories.
type store struct {
	mu       sync.Mutex
	clock    *clock
	nextID   int64
	accounts map[string]*models.Account
	messages []*models.Message
	images   []*models.Image
	err      error
}

func newStore() *store {
	return &store{
		clock:    &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), tick: true},
		accounts: map[string]*models.Account{},
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

type fakeUsers struct{ s *store }

func (f fakeUsers) Create(_ context.Context, username, hash string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	if _, ok := f.s.accounts[username]; ok {
		return nil, common.ErrAlreadyExists
	}
	acc := &models.Account{ID: f.s.id(), Username: username, PasswordHash: hash, CreatedAt: f.s.clock.next()}
	f.s.accounts[username] = acc
	return acc, nil
}

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	acc, ok := f.s.accounts[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return acc, nil
}

type fakeMessages struct{ s *store }

func (f fakeMessages) Create(_ context.Context, owner, body string) (*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	m := &models.Message{ID: f.s.id(), Owner: owner, Body: body, CreatedAt: f.s.clock.next()}
	f.s.messages = append(f.s.messages, m)
	return m, nil
}

func (f fakeMessages) ListRecent(_ context.Context, owner string, limit int) ([]*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	var out []*models.Message
	for _, m := range f.s.messages {
		if m.Owner == owner {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeMessages) Delete(_ context.Context, id int64, owner string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return 0, f.s.err
	}
	for i, m := range f.s.messages {
		if m.ID == id && m.Owner == owner {
			f.s.messages = append(f.s.messages[:i], f.s.messages[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeImages struct{ s *store }

func (f fakeImages) Create(_ context.Context, owner string, meta models.ImageMeta) (*models.Image, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	img := &models.Image{
		ID: f.s.id(), Owner: owner, Filename: meta.Filename, OriginalName: meta.OriginalName,
		Path: meta.Path, Size: meta.Size, MimeType: meta.MimeType, CreatedAt: f.s.clock.next(),
	}
	f.s.images = append(f.s.images, img)
	return img, nil
}

func (f fakeImages) ListRecent(_ context.Context, owner string, limit int) ([]*models.Image, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	var out []*models.Image
	for _, img := range f.s.images {
		if img.Owner == owner {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeImages) PathFor(_ context.Context, id int64, owner string) (string, bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return "", false, f.s.err
	}
	for _, img := range f.s.images {
		if img.ID == id && img.Owner == owner {
			return img.Path, true, nil
		}
	}
	return "", false, nil
}

func (f fakeImages) Delete(_ context.Context, id int64, owner string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return 0, f.s.err
	}
	for i, img := range f.s.images {
		if img.ID == id && img.Owner == owner {
			f.s.images = append(f.s.images[:i], f.s.images[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeRepoManager struct{ s *store }

func (m *fakeRepoManager) Converge(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository       { return fakeUsers{m.s} }
func (m *fakeRepoManager) Messages(dbx.DBTX) messagesrepo.Repository { return fakeMessages{m.s} }
func (m *fakeRepoManager) Images(dbx.DBTX) imagesrepo.Repository     { return fakeImages{m.s} }

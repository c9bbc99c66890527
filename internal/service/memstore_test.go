package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"account-service/internal/domain"
)

// memStore 测试用内存存储，语义与 SQL 实现一致
type memStore struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	now     func() time.Time
	pingErr error
	// 最近一次 List 收到的搜索词
	lastSearch string
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]domain.User{}, now: func() time.Time { return time.Now().UTC() }}
}

func (m *memStore) checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.InvalidID(id, err)
	}
	return nil
}

func (m *memStore) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == u.Email {
			return domain.DuplicateEmail(u.Email)
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = m.now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = *u
	return nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == email {
			return &x, nil
		}
	}
	return nil, domain.NotFound("user with email %s not found", email)
}

func (m *memStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	if err := m.checkID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("user %s not found", id)
	}
	return &x, nil
}

func (m *memStore) List(_ context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSearch = q.Search
	s := strings.ToLower(q.Search)
	var all []domain.User
	for _, x := range m.byID {
		if s == "" || strings.Contains(strings.ToLower(x.Name), s) ||
			strings.Contains(strings.ToLower(x.Email), s) ||
			strings.Contains(strings.ToLower(x.Country), s) {
			all = append(all, x)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if q.Offset >= len(all) {
		return []domain.User{}, total, nil
	}
	end := min(q.Offset+q.Limit, len(all))
	return all[q.Offset:end], total, nil
}

func (m *memStore) EmailTaken(_ context.Context, email, exceptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, x := range m.byID {
		if x.Email == email && id != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Update(_ context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	if err := m.checkID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("user %s not found", id)
	}
	if p.Email != nil {
		for oid, y := range m.byID {
			if oid != id && y.Email == *p.Email {
				return nil, domain.DuplicateEmail(*p.Email)
			}
		}
		x.Email = *p.Email
	}
	if p.Name != nil {
		x.Name = *p.Name
	}
	if p.Country != nil {
		x.Country = *p.Country
	}
	x.UpdatedAt = m.now()
	m.byID[id] = x
	return &x, nil
}

func (m *memStore) Delete(_ context.Context, id string) (*domain.User, error) {
	if err := m.checkID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("user %s not found", id)
	}
	delete(m.byID, id)
	return &x, nil
}

func (m *memStore) SetResetToken(_ context.Context, id, tokenHash string, expiry time.Time) error {
	if err := m.checkID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return domain.NotFound("user %s not found", id)
	}
	h, e := tokenHash, expiry
	x.ResetTokenHash, x.ResetTokenExpiry = &h, &e
	x.UpdatedAt = m.now()
	m.byID[id] = x
	return nil
}

func (m *memStore) RedeemResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, x := range m.byID {
		if x.ResetTokenHash != nil && *x.ResetTokenHash == tokenHash && x.ResetTokenExpiry.After(now) {
			x.PasswordHash = passwordHash
			x.ResetTokenHash, x.ResetTokenExpiry = nil, nil
			x.UpdatedAt = m.now()
			m.byID[id] = x
			return &x, nil
		}
	}
	return nil, domain.NotFound("password reset token is invalid or has expired")
}

func (m *memStore) SetPassword(_ context.Context, id, passwordHash string) error {
	if err := m.checkID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return domain.NotFound("user %s not found", id)
	}
	x.PasswordHash = passwordHash
	x.UpdatedAt = m.now()
	m.byID[id] = x
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) get(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

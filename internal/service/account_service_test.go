package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"account-service/internal/core/throttle"
	"account-service/internal/domain"
	"account-service/pkg/utils"
)

type fixture struct {
	store  *memStore
	tokens *ResetTokens
	svc    *AccountService
	clock  time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), clock: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f.tokens = NewResetTokens(f.store, time.Hour)
	f.tokens.now = func() time.Time { return f.clock }
	f.svc = NewAccountService(f.store, utils.NewBcryptHasher(bcrypt.MinCost), f.tokens, opts...)
	return f
}

func (f *fixture) register(t *testing.T, name, email, pw string) *domain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: pw})
	require.NoError(t, err)
	return u
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

func TestRegister_Normalizes(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "  Tom Smith ", Email: " Tom@Example.COM ", Password: "secret1", Country: " Peru ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tom Smith", u.Name)
	assert.Equal(t, "tom@example.com", u.Email)
	assert.Equal(t, "Peru", u.Country)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, utils.BcryptHasher{}.Verify("secret1", u.PasswordHash))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []RegisterInput{
		{Name: "", Email: "a@b.co", Password: "secret1"},
		{Name: strings.Repeat("n", 51), Email: "a@b.co", Password: "secret1"},
		{Name: "A", Email: "nope", Password: "secret1"},
		{Name: "A", Email: "a@b.co", Password: "12345"},
	}
	for i, in := range cases {
		_, err := f.svc.Register(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation, "case %d", i)
	}
}

func TestRegister_DuplicateCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t, "A", "dup@example.com", "secret1")
	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "B", Email: "DUP@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)
	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := "race@example.com"
			if i%2 == 0 {
				email = "RACE@example.com"
			}
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{Name: fmt.Sprint("u", i), Email: email, Password: "secret1"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "a@example.com", "secret1")

	u, err := f.svc.Authenticate(ctx, "A@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = f.svc.Authenticate(ctx, "a@example.com", "wrong!!")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Authenticate(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "A", "a@example.com", "secret1")

	u, err := f.svc.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, u.ID)

	_, err = f.svc.Profile(ctx, "bad-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.svc.Profile(ctx, utils.NewID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaging(t *testing.T) {
	cases := []struct{ page, limit, wantPage, wantLimit int }{
		{0, 0, 1, 10},
		{-3, 5, 1, 5},
		{2, 1000, 2, 100},
		{1, -1, 1, 1},
		{7, 100, 7, 100},
	}
	for _, c := range cases {
		p, l := Paging(c.page, c.limit)
		assert.Equal(t, c.wantPage, p)
		assert.Equal(t, c.wantLimit, l)
	}
}

func TestList_ClampsAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		f.store.now = func() time.Time { return f.clock.Add(time.Duration(i) * time.Second) }
		f.register(t, fmt.Sprintf("user%02d", i), fmt.Sprintf("user%02d@example.com", i), "secret1")
	}

	res, err := f.svc.List(ctx, ListInput{Page: 1, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Limit)
	assert.EqualValues(t, 25, res.Total)
	assert.Len(t, res.Users, 25)
	assert.Equal(t, "user24", res.Users[0].Name)

	res, err = f.svc.List(ctx, ListInput{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Users, 5)
	assert.Equal(t, "user04", res.Users[0].Name)

	res, err = f.svc.List(ctx, ListInput{Search: "USER1"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 10, res.Limit)

	res, err = f.svc.List(ctx, ListInput{Search: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Zero(t, res.Total)

	// 超长搜索词截断，不报错
	res, err = f.svc.List(ctx, ListInput{Search: "user1" + strings.Repeat("x", 500)})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Equal(t, strings.Repeat("x", domain.SearchMaxLen-5), strings.TrimPrefix(f.store.lastSearch, "user1"))
}

func TestResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "A", "a@example.com", "secret1")

	ticket, err := f.svc.RequestReset(ctx, "A@example.com")
	require.NoError(t, err)
	assert.Len(t, ticket.Token, 64)
	assert.Equal(t, f.clock.Add(time.Hour), ticket.ExpiresAt)

	stored := f.store.get(a.ID)
	require.NotNil(t, stored.ResetTokenHash)
	assert.Equal(t, HashResetToken(ticket.Token), *stored.ResetTokenHash)
	assert.NotEqual(t, ticket.Token, *stored.ResetTokenHash)

	u, err := f.svc.RedeemReset(ctx, ticket.Token, "newpass1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, u.ID)

	_, err = f.svc.Authenticate(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.Authenticate(ctx, "a@example.com", "newpass1")
	assert.NoError(t, err)

	_, err = f.svc.RedeemReset(ctx, ticket.Token, "another1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	stored = f.store.get(a.ID)
	assert.Nil(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)
}

func TestNewResetTokens_DefaultTTL(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := NewResetTokens(store, 0)
	tokens.now = func() time.Time { return now }
	svc := NewAccountService(store, utils.NewBcryptHasher(bcrypt.MinCost), tokens)
	_, err := svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	ticket, err := svc.RequestReset(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultResetTTL), ticket.ExpiresAt)
}

func TestResetExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "a@example.com", "secret1")

	ticket, err := f.svc.RequestReset(ctx, "a@example.com")
	require.NoError(t, err)

	f.clock = f.clock.Add(59 * time.Minute)
	second, err := f.svc.RequestReset(ctx, "a@example.com")
	require.NoError(t, err)
	// 新令牌覆盖旧令牌
	_, err = f.svc.RedeemReset(ctx, ticket.Token, "newpass1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.clock = f.clock.Add(time.Hour)
	_, err = f.svc.RedeemReset(ctx, second.Token, "newpass1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeemReset_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RedeemReset(context.Background(), "whatever", "123")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.RedeemReset(context.Background(), "short", "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedeemReset_ConcurrentSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "a@example.com", "secret1")
	ticket, err := f.svc.RequestReset(ctx, "a@example.com")
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RedeemReset(ctx, ticket.Token, "newpass1"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}

func TestRequestReset_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RequestReset(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.RequestReset(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, domain.ErrValidation)

	limited := newFixture(t, WithResetLimiter(denyAll{}))
	limited.register(t, "A", "a@example.com", "secret1")
	_, err = limited.svc.RequestReset(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestRequestReset_WindowLimiter(t *testing.T) {
	f := newFixture(t, WithResetLimiter(throttle.NewWindowLimiter(time.Hour, 2)))
	f.register(t, "A", "a@example.com", "secret1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.RequestReset(ctx, "a@example.com")
		require.NoError(t, err)
	}
	_, err := f.svc.RequestReset(ctx, "a@example.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "A", "a@example.com", "secret1")
	f.register(t, "B", "b@example.com", "secret1")

	_, err := f.svc.UpdateProfile(ctx, a.ID, UpdateInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	taken := "B@example.com"
	_, err = f.svc.UpdateProfile(ctx, a.ID, UpdateInput{Email: &taken})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	bad := "nope"
	_, err = f.svc.UpdateProfile(ctx, a.ID, UpdateInput{Email: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	name, same := " Anna ", "A@EXAMPLE.com"
	u, err := f.svc.UpdateProfile(ctx, a.ID, UpdateInput{Name: &name, Email: &same})
	require.NoError(t, err)
	assert.Equal(t, "Anna", u.Name)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = f.svc.UpdateProfile(ctx, "xx", UpdateInput{Name: &name})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.svc.UpdateProfile(ctx, utils.NewID(), UpdateInput{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "A", "a@example.com", "secret1")

	u, err := f.svc.DeleteAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, u.ID)

	_, err = f.svc.DeleteAccount(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.DeleteAccount(ctx, "malformed")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "A", "a@example.com", "secret1")

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, a.ID, "wrong", "newpass1"), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, a.ID, "secret1", "123"), domain.ErrValidation)
	require.NoError(t, f.svc.ChangePassword(ctx, a.ID, "secret1", "newpass1"))

	_, err := f.svc.Authenticate(ctx, "a@example.com", "newpass1")
	assert.NoError(t, err)
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ping(context.Background()))
	f.store.pingErr = errors.New("down")
	assert.Error(t, f.svc.Ping(context.Background()))
}

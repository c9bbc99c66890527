package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"account-service/internal/core/throttle"
	"account-service/internal/domain"
)

type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Country  string
}

// UpdateInput nil 字段不修改
type UpdateInput struct {
	Name    *string
	Email   *string
	Country *string
}

type ListInput struct {
	Page   int
	Limit  int
	Search string
}

type ListResult struct {
	Users []domain.User
	Page  int
	Limit int
	Total int64
}

type ResetTicket struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type AccountService struct {
	store        domain.UserStore
	hasher       Hasher
	tokens       *ResetTokens
	resetLimiter throttle.Limiter
	log          *zap.Logger
}

type Option func(*AccountService)

// WithResetLimiter 限制每个邮箱申请找回密码的频率
func WithResetLimiter(l throttle.Limiter) Option {
	return func(s *AccountService) { s.resetLimiter = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *AccountService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewAccountService(store domain.UserStore, hasher Hasher, tokens *ResetTokens, opts ...Option) *AccountService {
	s := &AccountService{store: store, hasher: hasher, tokens: tokens, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	country := strings.TrimSpace(in.Country)
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := domain.ValidateCountry(country); err != nil {
		return nil, err
	}

	// 先查一次省掉 bcrypt；并发注册仍由唯一索引兜底
	taken, err := s.store.EmailTaken(ctx, email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.DuplicateEmail(email)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.Unexpected("hash password", err)
	}
	u := &domain.User{Name: name, Email: email, PasswordHash: digest, Country: country}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}

func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Validation("email and password are required")
	}
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("user not found")
		}
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, domain.Unauthorized("invalid credentials")
	}
	return u, nil
}

func (s *AccountService) Profile(ctx context.Context, id string) (*domain.User, error) {
	return s.store.FindByID(ctx, strings.TrimSpace(id))
}

// Paging 规范化分页参数：page 最小 1，limit 缺省 10 且限制在 [1,100]
func Paging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = domain.DefaultPageLimit
	case limit < 1:
		limit = 1
	case limit > domain.MaxPageLimit:
		limit = domain.MaxPageLimit
	}
	// 防止 offset 溢出
	if maxPage := math.MaxInt32 / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

func (s *AccountService) List(ctx context.Context, in ListInput) (ListResult, error) {
	page, limit := Paging(in.Page, in.Limit)
	users, total, err := s.store.List(ctx, domain.ListQuery{
		Search: domain.TruncateSearch(in.Search),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Users: users, Page: page, Limit: limit, Total: total}, nil
}

func (s *AccountService) RequestReset(ctx context.Context, email string) (ResetTicket, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return ResetTicket{}, err
	}
	if s.resetLimiter != nil && !s.resetLimiter.Allow(ctx, email) {
		return ResetTicket{}, domain.RateLimited("too many password reset requests, try again later")
	}
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ResetTicket{}, domain.NotFound("user not found")
		}
		return ResetTicket{}, err
	}
	token, exp, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return ResetTicket{}, err
	}
	s.log.Info("password reset issued", zap.String("user_id", u.ID), zap.Time("expires_at", exp))
	return ResetTicket{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *AccountService) RedeemReset(ctx context.Context, token, newPassword string) (*domain.User, error) {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, domain.Unexpected("hash password", err)
	}
	u, err := s.tokens.Redeem(ctx, token, digest)
	if err != nil {
		return nil, err
	}
	s.log.Info("password reset redeemed", zap.String("user_id", u.ID))
	return u, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, id string, in UpdateInput) (*domain.User, error) {
	id = strings.TrimSpace(id)
	var p domain.UserPatch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := domain.ValidateName(name); err != nil {
			return nil, err
		}
		p.Name = &name
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if err := domain.ValidateEmail(email); err != nil {
			return nil, err
		}
		p.Email = &email
	}
	if in.Country != nil {
		country := strings.TrimSpace(*in.Country)
		if err := domain.ValidateCountry(country); err != nil {
			return nil, err
		}
		p.Country = &country
	}
	if p.Empty() {
		return nil, domain.Validation("at least one of name, email or country must be provided")
	}

	cur, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Email != nil && *p.Email != cur.Email {
		taken, err := s.store.EmailTaken(ctx, *p.Email, cur.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.DuplicateEmail(*p.Email)
		}
	}
	return s.store.Update(ctx, cur.ID, p)
}

func (s *AccountService) DeleteAccount(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.store.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	s.log.Info("user deleted", zap.String("user_id", u.ID))
	return u, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, id, current, next string) error {
	if err := domain.ValidatePassword(next); err != nil {
		return err
	}
	u, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, u.PasswordHash) {
		return domain.Unauthorized("current password is incorrect")
	}
	digest, err := s.hasher.Hash(next)
	if err != nil {
		return domain.Unexpected("hash password", err)
	}
	return s.store.SetPassword(ctx, u.ID, digest)
}

// Ping 存储健康检查
func (s *AccountService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

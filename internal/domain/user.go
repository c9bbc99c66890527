package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	NameMaxLen       = 50
	CountryMaxLen    = 100
	PasswordMinLen   = 6
	PasswordMaxBytes = 72 // bcrypt 上限
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	SearchMaxLen     = 100 // 超出部分截断
)

type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Country          string     `json:"country"`
	ResetTokenHash   *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// UserPatch 部分更新，nil 表示不修改
type UserPatch struct {
	Name    *string
	Email   *string
	Country *string
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Country == nil
}

type ListQuery struct {
	Search string
	Offset int
	Limit  int
}

// UserStore owns the persisted user representation.
// Lookups return ErrNotFound, malformed ids ErrInvalidID, unique-index violations ErrDuplicateEmail.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, q ListQuery) ([]User, int64, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	Update(ctx context.Context, id string, p UserPatch) (*User, error)
	Delete(ctx context.Context, id string) (*User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	Ping(ctx context.Context) error
}

var emailRe = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TruncateSearch 截到 SearchMaxLen 个字符，不按字节切避免拆开多字节字符
func TruncateSearch(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= SearchMaxLen {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:SearchMaxLen]))
}

// ValidEmail expects an already normalized address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

func ValidateName(name string) error {
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return Validation("name is required")
	case n > NameMaxLen:
		return Validation("name must be at most %d characters", NameMaxLen)
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return Validation("email is required")
	}
	if !ValidEmail(email) {
		return Validation("please enter a valid email address")
	}
	return nil
}

func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < PasswordMinLen {
		return Validation("password must be at least %d characters long", PasswordMinLen)
	}
	if len(pw) > PasswordMaxBytes {
		return Validation("password must be at most %d bytes", PasswordMaxBytes)
	}
	return nil
}

func ValidateCountry(country string) error {
	if utf8.RuneCountInString(country) > CountryMaxLen {
		return Validation("country must be at most %d characters", CountryMaxLen)
	}
	return nil
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"account-service/internal/domain"
)

const (
	resetTokenBytes   = 32
	DefaultResetTTL   = time.Hour
	resetTokenHexSize = resetTokenBytes * 2
)

// ResetTokens 一次性找回密码令牌；库里只存 SHA-256 摘要
type ResetTokens struct {
	store domain.UserStore
	ttl   time.Duration
	now   func() time.Time
}

func NewResetTokens(store domain.UserStore, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokens{store: store, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue 覆盖该用户之前未使用的令牌
func (t *ResetTokens) Issue(ctx context.Context, u *domain.User) (string, time.Time, error) {
	token, err := newResetToken()
	if err != nil {
		return "", time.Time{}, domain.Unexpected("issue reset token", err)
	}
	expiry := t.now().Add(t.ttl)
	if err := t.store.SetResetToken(ctx, u.ID, HashResetToken(token), expiry); err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// Redeem 未知/过期/已用的令牌统一返回 NotFound
func (t *ResetTokens) Redeem(ctx context.Context, token, passwordHash string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if len(token) != resetTokenHexSize {
		return nil, domain.NotFound("password reset token is invalid or has expired")
	}
	return t.store.RedeemResetToken(ctx, HashResetToken(token), passwordHash, t.now())
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"account-service/internal/domain"
	"account-service/pkg/utils"
)

// UserRepo 基于 gorm 的 domain.UserStore（postgres / mysql / sqlite）
type UserRepo struct{ db *gorm.DB }

var _ domain.UserStore = (*UserRepo)(nil)

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) now() time.Time { return r.db.NowFunc() }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	rec := toRecord(u)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDupKey(err) {
			return domain.DuplicateEmail(u.Email)
		}
		return domain.Unexpected("create user", err)
	}
	*u = *rec.toDomain()
	return nil
}

func (r *UserRepo) first(db *gorm.DB, query string, args ...any) (*userRecord, error) {
	var rec userRecord
	err := db.Where(query, args...).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Unexpected("query user", err)
	}
	return &rec, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	rec, err := r.first(r.db.WithContext(ctx), "email = ?", email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("user with email %s not found", email)
		}
		return nil, err
	}
	return rec.toDomain(), nil
}

func (r *UserRepo) findByID(db *gorm.DB, id string) (*userRecord, error) {
	if !utils.ValidID(id) {
		return nil, domain.InvalidID(id, nil)
	}
	rec, err := r.first(db, "id = ?", id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("user %s not found", id)
	}
	return rec, err
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	rec, err := r.findByID(r.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (r *UserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&userRecord{})
	if s := strings.TrimSpace(q.Search); s != "" {
		pat := "%" + escapeLike(strings.ToLower(s)) + "%"
		// email 入库前已归一化为小写
		base = base.Where(
			"name_lc LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!' OR country_lc LIKE ? ESCAPE '!'",
			pat, pat, pat,
		)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, domain.Unexpected("count users", err)
	}
	var recs []userRecord
	err := base.Order("created_at desc").Order("id desc").
		Offset(q.Offset).Limit(q.Limit).
		Find(&recs).Error
	if err != nil {
		return nil, 0, domain.Unexpected("list users", err)
	}
	users := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, *rec.toDomain())
	}
	return users, total, nil
}

func (r *UserRepo) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userRecord{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&n).Error
	if err != nil {
		return false, domain.Unexpected("check email", err)
	}
	return n > 0, nil
}

func (r *UserRepo) Update(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	var out *userRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := r.findByID(tx, id)
		if err != nil {
			return err
		}
		changes := map[string]any{"updated_at": r.now()}
		if p.Name != nil {
			changes["name"] = *p.Name
			changes["name_lc"] = strings.ToLower(*p.Name)
		}
		if p.Email != nil {
			changes["email"] = *p.Email
		}
		if p.Country != nil {
			changes["country"] = *p.Country
			changes["country_lc"] = strings.ToLower(*p.Country)
		}
		if err := tx.Model(&userRecord{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			if isDupKey(err) && p.Email != nil {
				return domain.DuplicateEmail(*p.Email)
			}
			return domain.Unexpected("update user", err)
		}
		out, err = r.findByID(tx, rec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) (*domain.User, error) {
	var out *userRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := r.findByID(tx, id)
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&userRecord{})
		if res.Error != nil {
			return domain.Unexpected("delete user", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NotFound("user %s not found", id)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	if !utils.ValidID(id) {
		return domain.InvalidID(id, nil)
	}
	exp := expiry.UTC()
	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(map[string]any{
		"reset_token_hash":   tokenHash,
		"reset_token_expiry": exp,
		"updated_at":         r.now(),
	})
	if res.Error != nil {
		return domain.Unexpected("store reset token", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("user %s not found", id)
	}
	return nil
}

// RedeemResetToken 以 (id, token hash) 作为条件更新，同一令牌只会被一个请求兑换成功
func (r *UserRepo) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	var out *userRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := r.first(tx, "reset_token_hash = ?", tokenHash)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errResetTokenInvalid
			}
			return err
		}
		if rec.ResetTokenExpiry == nil || !rec.ResetTokenExpiry.After(now) {
			return errResetTokenInvalid
		}
		ts := r.now()
		res := tx.Model(&userRecord{}).
			Where("id = ? AND reset_token_hash = ?", rec.ID, tokenHash).
			Updates(map[string]any{
				"password_hash":      passwordHash,
				"reset_token_hash":   nil,
				"reset_token_expiry": nil,
				"updated_at":         ts,
			})
		if res.Error != nil {
			return domain.Unexpected("redeem reset token", res.Error)
		}
		if res.RowsAffected == 0 {
			return errResetTokenInvalid
		}
		rec.PasswordHash = passwordHash
		rec.ResetTokenHash = nil
		rec.ResetTokenExpiry = nil
		rec.UpdatedAt = ts
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (r *UserRepo) SetPassword(ctx context.Context, id, passwordHash string) error {
	if !utils.ValidID(id) {
		return domain.InvalidID(id, nil)
	}
	res := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash": passwordHash,
		"updated_at":    r.now(),
	})
	if res.Error != nil {
		return domain.Unexpected("set password", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("user %s not found", id)
	}
	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

var errResetTokenInvalid = domain.NotFound("password reset token is invalid or has expired")

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 部分驱动未做错误翻译
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }

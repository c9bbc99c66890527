package repo

import (
	"strings"
	"time"

	"account-service/internal/domain"
)

// userRecord 与 migrations/*/ 下的 SQL 保持一致
// NameLC/CountryLC 由应用按 Unicode 规则小写后写入，搜索只查这两列与 email
type userRecord struct {
	ID               string  `gorm:"primaryKey;size:36"`
	Name             string  `gorm:"size:50;not null;index:idx_users_name"`
	Email            string  `gorm:"size:191;not null;uniqueIndex:idx_users_email"`
	PasswordHash     string  `gorm:"size:255;not null"`
	Country          string  `gorm:"size:100;not null"`
	NameLC           string  `gorm:"column:name_lc;size:100;not null"`
	CountryLC        string  `gorm:"column:country_lc;size:200;not null"`
	ResetTokenHash   *string `gorm:"size:64;index:idx_users_reset_token_hash"`
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time `gorm:"not null;index:idx_users_created_at,sort:desc;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime"`
}

func (userRecord) TableName() string { return "users" }

func toRecord(u *domain.User) userRecord {
	return userRecord{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Country:          u.Country,
		NameLC:           strings.ToLower(u.Name),
		CountryLC:        strings.ToLower(u.Country),
		ResetTokenHash:   u.ResetTokenHash,
		ResetTokenExpiry: u.ResetTokenExpiry,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (r userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:               r.ID,
		Name:             r.Name,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Country:          r.Country,
		ResetTokenHash:   r.ResetTokenHash,
		ResetTokenExpiry: utcPtr(r.ResetTokenExpiry),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

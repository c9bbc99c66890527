package dto

import (
	"time"

	"account-service/internal/domain"
)

type RegisterReq struct {
	Name     string `json:"name"     binding:"required,max=50"`
	Email    string `json:"email"    binding:"required,max=191,account_email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Country  string `json:"country"  binding:"omitempty,max=100"`
}

type LoginReq struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordReq struct {
	Email string `json:"email" binding:"required,account_email"`
}

type ResetPasswordReq struct {
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

type UpdateProfileReq struct {
	Name    *string `json:"name"    binding:"omitempty,max=50"`
	Email   *string `json:"email"   binding:"omitempty,max=191,account_email"`
	Country *string `json:"country" binding:"omitempty,max=100"`
}

type ChangePasswordReq struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword"     binding:"required,min=6,max=72"`
}

type ListUsersQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
}

// UserView 对外用户视图，不含任何口令/令牌字段
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewUserView(u *domain.User) UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Country:   u.Country,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func NewUserViews(us []domain.User) []UserView {
	out := make([]UserView, 0, len(us))
	for i := range us {
		out = append(out, NewUserView(&us[i]))
	}
	return out
}

type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: int64(page)*int64(limit) < total,
		HasPrev: page > 1,
	}
}

type UserData struct {
	User UserView `json:"user"`
}

type LoginData struct {
	User        UserView  `json:"user"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type ResetURLData struct {
	ResetURL  string    `json:"resetUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UserListData struct {
	Users      []UserView `json:"users"`
	Pagination Pagination `json:"pagination"`
}

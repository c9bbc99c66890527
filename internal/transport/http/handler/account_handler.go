package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"account-service/internal/core/auth"
	"account-service/internal/domain"
	"account-service/internal/service"
	"account-service/internal/transport/http/dto"
	httpez "account-service/internal/transport/http/ez"
	mdw "account-service/internal/transport/http/middleware"
)

type AccountHandler struct {
	svc   *service.AccountService
	jwter *auth.JWTer
	// 重置链接前缀，形如 http://host/api/auth
	resetBase string
	log       *zap.Logger
}

func NewAccountHandler(svc *service.AccountService, jwter *auth.JWTer, publicBaseURL, routePrefix string, l *zap.Logger) *AccountHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AccountHandler{svc: svc, jwter: jwter, resetBase: publicBaseURL + routePrefix, log: l}
}

func (h *AccountHandler) resetURL(token string) string {
	return h.resetBase + "/reset-password/" + url.PathEscape(token)
}

// Mount 公共接口挂在 api；/me 挂在带 AuthJWT 的 authed 分组
func (h *AccountHandler) Mount(api, authed *gin.RouterGroup) {
	ez := httpez.New(api, h.log)

	httpez.RegisterAction(ez, httpez.Action[dto.RegisterReq, dto.UserData]{
		Name:    "register",
		Method:  http.MethodPost,
		Path:    "/register",
		Binder:  httpez.BindJSON,
		Status:  http.StatusCreated,
		Message: "User registered successfully",
		Handler: func(c *gin.Context, in *dto.RegisterReq) (dto.UserData, error) {
			u, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
				Name: in.Name, Email: in.Email, Password: in.Password, Country: in.Country,
			})
			if err != nil {
				return dto.UserData{}, err
			}
			return dto.UserData{User: dto.NewUserView(u)}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[dto.LoginReq, dto.LoginData]{
		Name:    "login",
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  httpez.BindJSON,
		Status:  http.StatusCreated,
		Message: "Login successfully",
		Handler: func(c *gin.Context, in *dto.LoginReq) (dto.LoginData, error) {
			u, err := h.svc.Authenticate(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return dto.LoginData{}, err
			}
			tok, exp, err := h.jwter.Issue(u.ID, u.Email)
			if err != nil {
				return dto.LoginData{}, domain.Unexpected("issue token", err)
			}
			return dto.LoginData{User: dto.NewUserView(u), AccessToken: tok, ExpiresAt: exp}, nil
		},
	})

	// 无状态令牌，登出只做确认
	httpez.RegisterAction(ez, httpez.Action[struct{}, httpez.Empty]{
		Name:    "logout",
		Method:  http.MethodPost,
		Path:    "/logout",
		Binder:  httpez.BindNone,
		Message: "Logout successfully",
		Handler: func(*gin.Context, *struct{}) (httpez.Empty, error) { return httpez.Empty{}, nil },
	})

	httpez.RegisterAction(ez, httpez.Action[dto.ForgotPasswordReq, dto.ResetURLData]{
		Name:    "forget_password",
		Method:  http.MethodPost,
		Path:    "/forget-password",
		Binder:  httpez.BindJSON,
		Message: "Password reset link generated",
		Handler: func(c *gin.Context, in *dto.ForgotPasswordReq) (dto.ResetURLData, error) {
			t, err := h.svc.RequestReset(c.Request.Context(), in.Email)
			if err != nil {
				return dto.ResetURLData{}, err
			}
			return dto.ResetURLData{ResetURL: h.resetURL(t.Token), ExpiresAt: t.ExpiresAt}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[dto.ResetPasswordReq, httpez.Empty]{
		Name:    "reset_password",
		Method:  http.MethodPost,
		Path:    "/reset-password/:token",
		Binder:  httpez.BindJSON,
		Message: "Password reset successfully",
		Handler: func(c *gin.Context, in *dto.ResetPasswordReq) (httpez.Empty, error) {
			_, err := h.svc.RedeemReset(c.Request.Context(), c.Param("token"), in.NewPassword)
			return httpez.Empty{}, err
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, dto.UserData]{
		Name:    "get_profile",
		Method:  http.MethodGet,
		Path:    "/profile/:id",
		Binder:  httpez.BindNone,
		Message: "Profile found",
		Handler: func(c *gin.Context, _ *struct{}) (dto.UserData, error) {
			u, err := h.svc.Profile(c.Request.Context(), c.Param("id"))
			if err != nil {
				return dto.UserData{}, err
			}
			return dto.UserData{User: dto.NewUserView(u)}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[dto.ListUsersQuery, dto.UserListData]{
		Name:    "list_users",
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  httpez.BindQuery,
		Message: "Users found",
		Handler: func(c *gin.Context, in *dto.ListUsersQuery) (dto.UserListData, error) {
			res, err := h.svc.List(c.Request.Context(), service.ListInput{Page: in.Page, Limit: in.Limit, Search: in.Search})
			if err != nil {
				return dto.UserListData{}, err
			}
			return dto.UserListData{
				Users:      dto.NewUserViews(res.Users),
				Pagination: dto.NewPagination(res.Page, res.Limit, res.Total),
			}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[dto.UpdateProfileReq, dto.UserData]{
		Name:    "update_profile",
		Method:  http.MethodPut,
		Path:    "/profile/:id",
		Binder:  httpez.BindJSON,
		Message: "User updated successfully",
		Handler: func(c *gin.Context, in *dto.UpdateProfileReq) (dto.UserData, error) {
			u, err := h.svc.UpdateProfile(c.Request.Context(), c.Param("id"), service.UpdateInput{
				Name: in.Name, Email: in.Email, Country: in.Country,
			})
			if err != nil {
				return dto.UserData{}, err
			}
			return dto.UserData{User: dto.NewUserView(u)}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[dto.ChangePasswordReq, httpez.Empty]{
		Name:    "change_password",
		Method:  http.MethodPut,
		Path:    "/profile/:id/password",
		Binder:  httpez.BindJSON,
		Message: "Password changed successfully",
		Handler: func(c *gin.Context, in *dto.ChangePasswordReq) (httpez.Empty, error) {
			err := h.svc.ChangePassword(c.Request.Context(), c.Param("id"), in.CurrentPassword, in.NewPassword)
			return httpez.Empty{}, err
		},
	})

	httpez.RegisterAction(ez, httpez.Action[struct{}, httpez.Empty]{
		Name:   "delete_account",
		Method: http.MethodDelete,
		Path:   "/profile/:id",
		Binder: httpez.BindNone,
		Status: http.StatusNoContent,
		Handler: func(c *gin.Context, _ *struct{}) (httpez.Empty, error) {
			_, err := h.svc.DeleteAccount(c.Request.Context(), c.Param("id"))
			return httpez.Empty{}, err
		},
	})

	if authed == nil {
		return
	}
	ezAuth := httpez.New(authed, h.log)
	httpez.RegisterAction(ezAuth, httpez.Action[struct{}, dto.UserData]{
		Name:    "me",
		Method:  http.MethodGet,
		Path:    "/me",
		Binder:  httpez.BindNone,
		Message: "Profile found",
		Handler: func(c *gin.Context, _ *struct{}) (dto.UserData, error) {
			uid := c.GetString(mdw.KeyUserID)
			if uid == "" {
				return dto.UserData{}, domain.Unauthorized("unauthorized")
			}
			u, err := h.svc.Profile(c.Request.Context(), uid)
			if err != nil {
				return dto.UserData{}, err
			}
			return dto.UserData{User: dto.NewUserView(u)}, nil
		},
	})
}

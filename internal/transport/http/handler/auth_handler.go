package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-api/internal/authz"
	"library-api/internal/service"
	"library-api/internal/transport/http/ez"
)

// AuthHandler /auth/* 与管理员的 /users
type AuthHandler struct {
	svc     *service.AuthService
	limiter gin.HandlerFunc
}

// NewAuthHandler limiter 作用于注册/登录/刷新，可为 nil
func NewAuthHandler(svc *service.AuthService, limiter gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{svc: svc, limiter: limiter}
}

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) MountAPI(e ez.EZ) {
	g := e.Group("/auth")
	public := g
	if h.limiter != nil {
		public = g.With(h.limiter)
	}

	ez.RegisterAction(public, ez.Action[service.RegisterInput, *service.AuthResult]{
		Method:  http.MethodPost,
		Path:    "/register",
		Binder:  ez.BindJSON,
		Status:  http.StatusCreated,
		Message: "Registration successful",
		Handler: func(c *gin.Context, _ authz.Actor, in *service.RegisterInput) (*service.AuthResult, error) {
			return h.svc.Register(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(public, ez.Action[service.LoginInput, *service.AuthResult]{
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  ez.BindJSON,
		Message: "Login successful",
		Handler: func(c *gin.Context, _ authz.Actor, in *service.LoginInput) (*service.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(public, ez.Action[service.RefreshInput, *service.AuthResult]{
		Method:  http.MethodPost,
		Path:    "/refresh",
		Binder:  ez.BindJSON,
		Message: "Token refreshed successfully",
		Handler: func(c *gin.Context, _ authz.Actor, in *service.RefreshInput) (*service.AuthResult, error) {
			return h.svc.Refresh(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodGet,
		Path:    "/me",
		Auth:    true,
		Message: "User profile retrieved",
		Handler: func(c *gin.Context, a authz.Actor, _ *struct{}) (gin.H, error) {
			u, err := h.svc.Me(c.Request.Context(), a)
			if err != nil {
				return nil, err
			}
			return gin.H{"user": u}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[service.UserListQuery, gin.H]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  ez.BindQuery,
		Auth:    true,
		Message: "Users retrieved successfully",
		Handler: func(c *gin.Context, a authz.Actor, in *service.UserListQuery) (gin.H, error) {
			us, page, err := h.svc.ListUsers(c.Request.Context(), a, *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"users": us, "pagination": page}, nil
		},
	})
}

package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/auth"
	"library-api/internal/core/validate"
	"library-api/internal/domain"
	"library-api/internal/repo"
	"library-api/pkg/utils"
)

type RegisterInput struct {
	Name     string `json:"name"     binding:"required,min=3,max=100"`
	Email    string `json:"email"    binding:"required,email,max=191"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UserListQuery struct {
	domain.PageQuery
	Search string `form:"q" binding:"omitempty,max=100"`
}

// UserView 对外的用户信息（不含密码）
type UserView struct {
	ID        uint        `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt string      `json:"createdAt"`
}

func viewOf(u *domain.User) UserView {
	return UserView{
		ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role,
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type AuthResult struct {
	User UserView `json:"user"`
	auth.Pair
}

type AuthService struct {
	store  *repo.Store
	tokens *auth.Tokens
	log    *zap.Logger
}

func NewAuthService(d Deps, tokens *auth.Tokens) *AuthService {
	d = d.withDefaults()
	return &AuthService{store: d.Store, tokens: tokens, log: d.Log}
}

// Register 公开注册，角色固定为 USER
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	u, err := s.CreateUser(ctx, in.Name, in.Email, in.Password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// CreateUser 供注册与命令行建管理员使用（不做授权）
func (s *AuthService) CreateUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	in := RegisterInput{Name: strings.TrimSpace(name), Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.Validation("Validation failed", domain.FieldError{Field: "role", Message: "role must be one of [ADMIN USER]"})
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, domain.Internal("hash password failed", err)
	}

	users := s.store.Users()
	existing, err := users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, wrapInternal("find user failed", err)
	}
	if existing != nil {
		return nil, domain.Conflict("Email already registered")
	}
	u := &domain.User{Name: in.Name, Email: in.Email, Password: hash, Role: role}
	if err := users.Create(ctx, u); err != nil {
		return nil, dupOr(err, "Email already registered", "create user failed")
	}
	s.log.Info("user registered", zap.Uint("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// ResetUser 命令行：覆盖已有账号的密码与角色
func (s *AuthService) ResetUser(ctx context.Context, email, password string, role domain.Role) (*domain.User, error) {
	u, err := s.store.Users().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, wrapInternal("find user failed", err)
	}
	if u == nil {
		return nil, domain.NotFound("User not found")
	}
	if len(password) < 6 {
		return nil, domain.Validation("Validation failed", domain.FieldError{Field: "password", Message: "password must be at least 6 characters long"})
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, domain.Internal("hash password failed", err)
	}
	u.Password, u.Role = hash, role
	if err := s.store.Users().Update(ctx, u); err != nil {
		return nil, wrapInternal("update user failed", err)
	}
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.store.Users().FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, wrapInternal("find user failed", err)
	}
	// 用户不存在与密码错误返回同一信息
	if u == nil || !utils.CheckPassword(in.Password, u.Password) {
		return nil, domain.Unauthorized("Invalid email or password")
	}
	return s.issue(u)
}

// Refresh 用 refresh token 换新的一对令牌；角色以数据库为准
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.tokens.Consume(ctx, in.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrExpired):
		return nil, domain.Unauthorized("Refresh token expired")
	case errors.Is(err, auth.ErrRefreshReuse):
		s.log.Warn("refresh token reuse detected")
		return nil, domain.Unauthorized("Refresh token already used")
	case errors.Is(err, auth.ErrInvalid), errors.Is(err, auth.ErrWrongType):
		return nil, domain.Unauthorized("Invalid refresh token")
	case err != nil:
		return nil, domain.Internal("refresh failed", err)
	}
	u, err := s.store.Users().FindByID(ctx, c.ID)
	if err != nil {
		return nil, wrapInternal("find user failed", err)
	}
	if u == nil {
		return nil, domain.Unauthorized("Invalid refresh token")
	}
	return s.issue(u)
}

func (s *AuthService) Me(ctx context.Context, actor authz.Actor) (*UserView, error) {
	if err := authz.Authorize(actor, authz.ProfileRead); err != nil {
		return nil, err
	}
	u, err := s.store.Users().FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, wrapInternal("find user failed", err)
	}
	if u == nil {
		return nil, domain.NotFound("User not found")
	}
	v := viewOf(u)
	return &v, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor authz.Actor, q UserListQuery) ([]UserView, domain.Pagination, error) {
	if err := authz.Authorize(actor, authz.UserList); err != nil {
		return nil, domain.Pagination{}, err
	}
	page := q.PageQuery.Normalize([]string{"createdAt"}, "createdAt", "desc")
	us, total, err := s.store.Users().List(ctx, q.Search, page.Offset(), page.Limit)
	if err != nil {
		return nil, domain.Pagination{}, wrapInternal("list users failed", err)
	}
	out := make([]UserView, 0, len(us))
	for i := range us {
		out = append(out, viewOf(&us[i]))
	}
	return out, domain.NewPagination(page, total), nil
}

func (s *AuthService) issue(u *domain.User) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, domain.Internal("issue token failed", err)
	}
	return &AuthResult{User: viewOf(u), Pair: pair}, nil
}

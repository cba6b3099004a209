// Package authz 角色/归属校验；拒绝即终止，不做降级处理
package authz

import (
	"library-api/internal/domain"
)

// Actor 请求方身份；零值为匿名
type Actor struct {
	UserID uint
	Email  string
	Role   domain.Role
}

func Anonymous() Actor { return Actor{} }

func (a Actor) Authenticated() bool { return a.UserID != 0 && a.Role.Valid() }

func (a Actor) IsAdmin() bool { return a.Authenticated() && a.Role == domain.RoleAdmin }

type Action string

const (
	BookCreate      Action = "book:create"
	BookUpdate      Action = "book:update"
	BookDelete      Action = "book:delete"
	MemberCreate    Action = "member:create"
	MemberUpdate    Action = "member:update"
	MemberDelete    Action = "member:delete"
	BorrowingBorrow Action = "borrowing:borrow"
	BorrowingReturn Action = "borrowing:return"
	BorrowingLost   Action = "borrowing:lost"
	BorrowingSweep  Action = "borrowing:sweep"
	UserList        Action = "user:list"
	ProfileRead     Action = "profile:read"
)

var (
	adminOnly = []domain.Role{domain.RoleAdmin}
	anyUser   = []domain.Role{domain.RoleUser, domain.RoleAdmin}
)

var policy = map[Action][]domain.Role{
	BookCreate:      adminOnly,
	BookUpdate:      adminOnly,
	BookDelete:      adminOnly,
	MemberCreate:    anyUser,
	MemberUpdate:    anyUser,
	MemberDelete:    adminOnly,
	BorrowingBorrow: anyUser,
	BorrowingReturn: anyUser,
	BorrowingLost:   adminOnly,
	BorrowingSweep:  adminOnly,
	UserList:        adminOnly,
	ProfileRead:     anyUser,
}

// Authorize 匿名 -> Unauthorized；角色不符或未登记的动作 -> Forbidden
func Authorize(a Actor, act Action) error {
	if !a.Authenticated() {
		return domain.Unauthorized("Authentication required")
	}
	for _, r := range policy[act] {
		if a.Role == r {
			return nil
		}
	}
	return domain.Forbidden("Insufficient permissions")
}

// AuthorizeOwner ADMIN 放行；否则要求 actor 就是资源创建者
func AuthorizeOwner(a Actor, ownerID *uint) error {
	if !a.Authenticated() {
		return domain.Unauthorized("Authentication required")
	}
	if a.IsAdmin() {
		return nil
	}
	if ownerID == nil || *ownerID != a.UserID {
		return domain.Forbidden("You are not the owner of this resource")
	}
	return nil
}

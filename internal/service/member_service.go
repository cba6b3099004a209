package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/validate"
	"library-api/internal/domain"
	"library-api/internal/repo"
)

type MemberInput struct {
	Code    string              `json:"code"    binding:"required,min=1,max=32"`
	Name    string              `json:"name"    binding:"required,min=1,max=100"`
	Email   *string             `json:"email"   binding:"omitempty,email,max=191"`
	Phone   *string             `json:"phone"   binding:"omitempty,max=32"`
	Address *string             `json:"address" binding:"omitempty,max=255"`
	Status  domain.MemberStatus `json:"status"  binding:"omitempty,oneof=ACTIVE INACTIVE"`
}

type MemberPatch struct {
	Code    *string              `json:"code"    binding:"omitempty,min=1,max=32"`
	Name    *string              `json:"name"    binding:"omitempty,min=1,max=100"`
	Email   *string              `json:"email"   binding:"omitempty,email,max=191"`
	Phone   *string              `json:"phone"   binding:"omitempty,max=32"`
	Address *string              `json:"address" binding:"omitempty,max=255"`
	Status  *domain.MemberStatus `json:"status"  binding:"omitempty,oneof=ACTIVE INACTIVE"`
}

func (p MemberPatch) empty() bool {
	return p.Code == nil && p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil && p.Status == nil
}

type MemberListQuery struct {
	domain.PageQuery
	Search string              `form:"search" binding:"omitempty,max=100"`
	Status domain.MemberStatus `form:"status" binding:"omitempty,oneof=ACTIVE INACTIVE"`
}

type MemberService struct {
	store *repo.Store
	log   *zap.Logger
}

func NewMemberService(d Deps) *MemberService {
	d = d.withDefaults()
	return &MemberService{store: d.Store, log: d.Log}
}

func (s *MemberService) List(ctx context.Context, q MemberListQuery) ([]domain.Member, domain.Pagination, error) {
	page := q.PageQuery.Normalize(repo.MemberSortKeys, "id", "desc")
	ms, total, err := s.store.Members().List(ctx, repo.MemberFilter{Search: q.Search, Status: q.Status, Page: page})
	if err != nil {
		return nil, domain.Pagination{}, wrapInternal("list members failed", err)
	}
	return ms, domain.NewPagination(page, total), nil
}

func (s *MemberService) Get(ctx context.Context, id uint) (*domain.Member, error) {
	m, err := s.store.Members().FindByID(ctx, id)
	return m, wrapInternal("get member failed", err)
}

func (s *MemberService) Create(ctx context.Context, actor authz.Actor, in MemberInput) (*domain.Member, error) {
	if err := authz.Authorize(actor, authz.MemberCreate); err != nil {
		return nil, err
	}
	in.Code, in.Name = strings.TrimSpace(in.Code), strings.TrimSpace(in.Name)
	in.Email = normEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.MemberActive
	}

	m, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (*domain.Member, error) {
		if other, err := tx.Members().FindByCode(ctx, in.Code); err != nil {
			return nil, err
		} else if other != nil {
			return nil, domain.Conflict("Member code already exists")
		}
		if in.Email != nil {
			if other, err := tx.Members().FindByEmail(ctx, *in.Email); err != nil {
				return nil, err
			} else if other != nil {
				return nil, domain.Conflict("Email already exists")
			}
		}
		m := &domain.Member{
			Code:    in.Code,
			Name:    in.Name,
			Email:   in.Email,
			Phone:   in.Phone,
			Address: in.Address,
			Status:  in.Status,
		}
		if err := tx.Members().Create(ctx, m); err != nil {
			return nil, dupOr(err, "Duplicate value", "create member failed")
		}
		return m, nil
	})
	if err != nil {
		return nil, wrapInternal("create member failed", err)
	}
	s.log.Info("member created", zap.Uint("member_id", m.ID), zap.String("code", m.Code), zap.Uint("by", actor.UserID))
	return m, nil
}

func (s *MemberService) Update(ctx context.Context, actor authz.Actor, id uint, in MemberPatch) (*domain.Member, error) {
	if err := authz.Authorize(actor, authz.MemberUpdate); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, domain.Validation("At least one field must be provided")
	}
	in.Email = normEmail(in.Email)
	in.Code, in.Name = trimPtr(in.Code), trimPtr(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	m, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (*domain.Member, error) {
		m, err := tx.Members().LockByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if in.Code != nil && *in.Code != m.Code {
			code := *in.Code
			if other, err := tx.Members().FindByCode(ctx, code); err != nil {
				return nil, err
			} else if other != nil {
				return nil, domain.Conflict("Member code already exists")
			}
			m.Code = code
		}
		if in.Email != nil && (m.Email == nil || *in.Email != *m.Email) {
			if other, err := tx.Members().FindByEmail(ctx, *in.Email); err != nil {
				return nil, err
			} else if other != nil {
				return nil, domain.Conflict("Email already registered to another member")
			}
			m.Email = in.Email
		}
		if in.Name != nil {
			m.Name = *in.Name
		}
		if in.Phone != nil {
			m.Phone = in.Phone
		}
		if in.Address != nil {
			m.Address = in.Address
		}
		if in.Status != nil {
			m.Status = *in.Status
		}
		if err := tx.Members().Save(ctx, m); err != nil {
			return nil, dupOr(err, "Duplicate value", "update member failed")
		}
		return m, nil
	})
	if err != nil {
		return nil, wrapInternal("update member failed", err)
	}
	s.log.Info("member updated", zap.Uint("member_id", m.ID), zap.String("status", string(m.Status)))
	return m, nil
}

// Delete 会员仍有未归还借阅时拒绝
func (s *MemberService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	if err := authz.Authorize(actor, authz.MemberDelete); err != nil {
		return err
	}
	_, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (struct{}, error) {
		if _, err := tx.Members().LockByID(ctx, id); err != nil {
			return struct{}{}, err
		}
		open, err := tx.Borrowings().CountOpenByMember(ctx, id)
		if err != nil {
			return struct{}{}, err
		}
		if open > 0 {
			return struct{}{}, domain.InvalidState("Cannot delete member with active borrowings")
		}
		if err := tx.Borrowings().DeleteClosedByMember(ctx, id); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, tx.Members().Delete(ctx, id)
	})
	if err != nil {
		return wrapInternal("delete member failed", err)
	}
	s.log.Info("member deleted", zap.Uint("member_id", id), zap.Uint("by", actor.UserID))
	return nil
}

// normEmail 去空格转小写；空串视为未提供
// trimPtr 去掉首尾空白；空串保留，交给 min=1 校验
func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func normEmail(p *string) *string {
	if p == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*p))
	if e == "" {
		return nil
	}
	return &e
}

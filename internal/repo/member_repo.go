package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"library-api/internal/domain"
)

type MemberRepo struct{ db *gorm.DB }

var memberSortColumns = map[string]string{
	"id":        "id",
	"code":      "code",
	"name":      "name",
	"status":    "status",
	"createdAt": "created_at",
}

var MemberSortKeys = keys(memberSortColumns)

type MemberFilter struct {
	Search string
	Status domain.MemberStatus
	Page   domain.PageQuery
}

func (r *MemberRepo) Create(ctx context.Context, m *domain.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MemberRepo) FindByID(ctx context.Context, id uint) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "Member not found")
	}
	return &m, nil
}

// LockByID 排他锁（更新/删除前使用）
func (r *MemberRepo) LockByID(ctx context.Context, id uint) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&m, id).Error; err != nil {
		return nil, notFound(err, "Member not found")
	}
	return &m, nil
}

// ShareLockByID 共享锁：借书时防止会员被并发删除/停用
func (r *MemberRepo) ShareLockByID(ctx context.Context, id uint) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).Clauses(forShare()).First(&m, id).Error; err != nil {
		return nil, notFound(err, "Member not found")
	}
	return &m, nil
}

func (r *MemberRepo) FindByCode(ctx context.Context, code string) (*domain.Member, error) {
	return r.findOne(ctx, "code = ?", code)
}

func (r *MemberRepo) FindByEmail(ctx context.Context, email string) (*domain.Member, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *MemberRepo) findOne(ctx context.Context, cond string, arg any) (*domain.Member, error) {
	var m domain.Member
	err := r.db.WithContext(ctx).First(&m, cond, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &m, err
}

func (r *MemberRepo) List(ctx context.Context, f MemberFilter) ([]domain.Member, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Member{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("name LIKE ? OR code LIKE ? OR email LIKE ?", like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	members := make([]domain.Member, 0, f.Page.Limit)
	err := q.Order(orderBy(memberSortColumns, f.Page)).
		Limit(f.Page.Limit).Offset(f.Page.Offset()).
		Find(&members).Error
	return members, total, err
}

func (r *MemberRepo) Save(ctx context.Context, m *domain.Member) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MemberRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&domain.Member{}, id).Error
}

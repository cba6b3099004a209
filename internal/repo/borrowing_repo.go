package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"library-api/internal/domain"
)

type BorrowingRepo struct{ db *gorm.DB }

var borrowingSortColumns = map[string]string{
	"borrowedAt": "borrowed_at",
	"dueDate":    "due_date",
	"returnedAt": "returned_at",
	"status":     "status",
	"createdAt":  "created_at",
}

var BorrowingSortKeys = keys(borrowingSortColumns)

type BorrowingFilter struct {
	Status   domain.BorrowingStatus
	BookID   uint
	MemberID uint
	UserID   uint
	// OverdueAt 非零时只返回未归还且 due_date 早于该时刻的记录
	OverdueAt time.Time
	Page      domain.PageQuery
}

// 列表/详情附带的书目与会员字段
func withRefs(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Book", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "author", "isbn", "category")
		}).
		Preload("Member", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "code", "name", "email", "phone", "status")
		})
}

func (r *BorrowingRepo) Create(ctx context.Context, b *domain.Borrowing) error {
	return r.db.WithContext(ctx).Omit("Book", "Member", "User").Create(b).Error
}

func (r *BorrowingRepo) FindByID(ctx context.Context, id uint) (*domain.Borrowing, error) {
	var b domain.Borrowing
	if err := withRefs(r.db.WithContext(ctx)).First(&b, id).Error; err != nil {
		return nil, notFound(err, "Borrowing record not found")
	}
	return &b, nil
}

func (r *BorrowingRepo) LockByID(ctx context.Context, id uint) (*domain.Borrowing, error) {
	var b domain.Borrowing
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&b, id).Error; err != nil {
		return nil, notFound(err, "Borrowing record not found")
	}
	return &b, nil
}

// HasOpen 该会员是否已借有这本书（BORROWED/OVERDUE）
func (r *BorrowingRepo) HasOpen(ctx context.Context, bookID, memberID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Borrowing{}).
		Where("book_id = ? AND member_id = ? AND status IN ?", bookID, memberID, domain.OpenStatuses).
		Count(&n).Error
	return n > 0, err
}

func (r *BorrowingRepo) CountOpenByBook(ctx context.Context, bookID uint) (int64, error) {
	return r.countOpen(ctx, "book_id = ?", bookID)
}

func (r *BorrowingRepo) CountOpenByMember(ctx context.Context, memberID uint) (int64, error) {
	return r.countOpen(ctx, "member_id = ?", memberID)
}

func (r *BorrowingRepo) countOpen(ctx context.Context, cond string, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Borrowing{}).
		Where(cond, id).
		Where("status IN ?", domain.OpenStatuses).
		Count(&n).Error
	return n, err
}

// Close 写入终态；status 条件保证只迁移仍处于打开状态的记录
func (r *BorrowingRepo) Close(ctx context.Context, b *domain.Borrowing, to domain.BorrowingStatus, returnedAt *time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Borrowing{}).
		Where("id = ? AND status IN ?", b.ID, domain.OpenStatuses).
		Updates(map[string]any{"status": to, "returned_at": returnedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.InvalidState("Borrowing is no longer open")
	}
	b.Status = to
	b.ReturnedAt = returnedAt
	return nil
}

// MarkOverdue BORROWED 且 due_date < now 的记录批量改为 OVERDUE，返回影响行数
func (r *BorrowingRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Borrowing{}).
		Where("status = ? AND due_date < ?", domain.StatusBorrowed, now).
		Update("status", domain.StatusOverdue)
	return res.RowsAffected, res.Error
}

func (r *BorrowingRepo) List(ctx context.Context, f BorrowingFilter) ([]domain.Borrowing, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Borrowing{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.BookID != 0 {
		q = q.Where("book_id = ?", f.BookID)
	}
	if f.MemberID != 0 {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if !f.OverdueAt.IsZero() {
		q = q.Where("status IN ? AND due_date < ?", domain.OpenStatuses, f.OverdueAt)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Borrowing, 0, f.Page.Limit)
	err := withRefs(q).Order(orderBy(borrowingSortColumns, f.Page)).
		Limit(f.Page.Limit).Offset(f.Page.Offset()).
		Find(&out).Error
	return out, total, err
}

// ListPastDue 已过期未归还（BORROWED 或已被扫描为 OVERDUE），按到期日升序
func (r *BorrowingRepo) ListPastDue(ctx context.Context, now time.Time) ([]domain.Borrowing, error) {
	var out []domain.Borrowing
	err := withRefs(r.db.WithContext(ctx)).
		Where("status IN ? AND due_date < ?", domain.OpenStatuses, now).
		Order("due_date ASC").
		Find(&out).Error
	return out, err
}

// DeleteClosedByBook 删除书目前清理已关闭的历史记录
func (r *BorrowingRepo) DeleteClosedByBook(ctx context.Context, bookID uint) error {
	return r.deleteClosed(ctx, "book_id = ?", bookID)
}

func (r *BorrowingRepo) DeleteClosedByMember(ctx context.Context, memberID uint) error {
	return r.deleteClosed(ctx, "member_id = ?", memberID)
}

func (r *BorrowingRepo) deleteClosed(ctx context.Context, cond string, id uint) error {
	return r.db.WithContext(ctx).
		Where(cond, id).
		Where("status NOT IN ?", domain.OpenStatuses).
		Delete(&domain.Borrowing{}).Error
}

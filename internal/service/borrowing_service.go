package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/validate"
	"library-api/internal/domain"
	"library-api/internal/repo"
)

type BorrowInput struct {
	BookID   uint       `json:"bookId"   binding:"required,min=1"`
	MemberID uint       `json:"memberId" binding:"required,min=1"`
	DueDate  *time.Time `json:"dueDate"`
}

type BorrowingListQuery struct {
	domain.PageQuery
	Status   domain.BorrowingStatus `form:"status" binding:"omitempty,oneof=BORROWED OVERDUE RETURNED LOST"`
	BookID   uint                   `form:"bookId"`
	MemberID uint                   `form:"memberId"`
	UserID   uint                   `form:"userId"`
	Overdue  bool                   `form:"overdue"`
}

type BorrowingOptions struct {
	DefaultLoanDays        int
	EnforceReturnOwnership bool
}

type BorrowingService struct {
	store   *repo.Store
	log     *zap.Logger
	now     Clock
	opts    BorrowingOptions
	sweeper *Sweeper
}

func NewBorrowingService(d Deps, opts BorrowingOptions) *BorrowingService {
	d = d.withDefaults()
	if opts.DefaultLoanDays <= 0 {
		opts.DefaultLoanDays = 14
	}
	return &BorrowingService{
		store:   d.Store,
		log:     d.Log,
		now:     d.Now,
		opts:    opts,
		sweeper: NewSweeper(d),
	}
}

// Borrow BORROWED 初始态；库存校验、会员状态、重复借阅检查与写入在同一事务内
func (s *BorrowingService) Borrow(ctx context.Context, actor authz.Actor, in BorrowInput) (out *domain.Borrowing, err error) {
	defer func() { borrowTotal.WithLabelValues(resultLabel(err)).Inc() }()

	if err := authz.Authorize(actor, authz.BorrowingBorrow); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.now()
	due := now.AddDate(0, 0, s.opts.DefaultLoanDays)
	if in.DueDate != nil {
		due = in.DueDate.UTC()
	}
	if !due.After(now) {
		return nil, domain.Validation("Validation failed", domain.FieldError{Field: "dueDate", Message: "dueDate must be in the future"})
	}

	out, err = repo.InTx(ctx, s.store, func(tx *repo.Store) (*domain.Borrowing, error) {
		book, err := tx.Books().LockByID(ctx, in.BookID)
		if err != nil {
			return nil, err
		}
		if book.Available <= 0 {
			return nil, domain.InvalidState("Book is not available for borrowing")
		}
		member, err := tx.Members().ShareLockByID(ctx, in.MemberID)
		if err != nil {
			return nil, err
		}
		if !member.CanBorrow() {
			return nil, domain.InvalidState("Member is not active")
		}
		dup, err := tx.Borrowings().HasOpen(ctx, book.ID, member.ID)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, domain.InvalidState("Member already has this book borrowed")
		}

		b := &domain.Borrowing{
			BookID:     book.ID,
			MemberID:   member.ID,
			BorrowedAt: now,
			DueDate:    due,
			Status:     domain.StatusBorrowed,
		}
		if actor.UserID != 0 {
			uid := actor.UserID
			b.UserID = &uid
		}
		if err := tx.Borrowings().Create(ctx, b); err != nil {
			return nil, err
		}
		if err := tx.Books().TakeCopy(ctx, book.ID); err != nil {
			return nil, err
		}
		return tx.Borrowings().FindByID(ctx, b.ID)
	})
	if err != nil {
		return nil, wrapInternal("borrow book failed", err)
	}
	s.log.Info("book borrowed",
		zap.Uint("borrowing_id", out.ID), zap.Uint("book_id", out.BookID),
		zap.Uint("member_id", out.MemberID), zap.Time("due", out.DueDate), zap.Uint("by", actor.UserID))
	return out, nil
}

// Return BORROWED/OVERDUE -> RETURNED，available+1
func (s *BorrowingService) Return(ctx context.Context, actor authz.Actor, id uint) (*domain.Borrowing, error) {
	if err := authz.Authorize(actor, authz.BorrowingReturn); err != nil {
		return nil, err
	}
	out, err := s.close(ctx, id, domain.StatusReturned, func(tx *repo.Store, b *domain.Borrowing) error {
		if s.opts.EnforceReturnOwnership {
			if err := authz.AuthorizeOwner(actor, b.UserID); err != nil {
				return err
			}
		}
		at := s.now()
		if err := tx.Borrowings().Close(ctx, b, domain.StatusReturned, &at); err != nil {
			return err
		}
		return tx.Books().ReturnCopy(ctx, b.BookID)
	})
	if err != nil {
		return nil, wrapInternal("return book failed", err)
	}
	s.log.Info("book returned", zap.Uint("borrowing_id", out.ID), zap.Uint("book_id", out.BookID), zap.Uint("by", actor.UserID))
	return out, nil
}

// MarkLost BORROWED/OVERDUE -> LOST，馆藏 -1（available 不变）
func (s *BorrowingService) MarkLost(ctx context.Context, actor authz.Actor, id uint) (*domain.Borrowing, error) {
	if err := authz.Authorize(actor, authz.BorrowingLost); err != nil {
		return nil, err
	}
	out, err := s.close(ctx, id, domain.StatusLost, func(tx *repo.Store, b *domain.Borrowing) error {
		if err := tx.Borrowings().Close(ctx, b, domain.StatusLost, nil); err != nil {
			return err
		}
		return tx.Books().WriteOffCopy(ctx, b.BookID)
	})
	if err != nil {
		return nil, wrapInternal("mark lost failed", err)
	}
	s.log.Warn("borrowing marked lost", zap.Uint("borrowing_id", out.ID), zap.Uint("book_id", out.BookID), zap.Uint("by", actor.UserID))
	return out, nil
}

// close 锁定记录 -> 检查迁移合法 -> apply -> 重新读取带关联的结果
func (s *BorrowingService) close(
	ctx context.Context,
	id uint,
	to domain.BorrowingStatus,
	apply func(tx *repo.Store, b *domain.Borrowing) error,
) (*domain.Borrowing, error) {
	out, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (*domain.Borrowing, error) {
		b, err := tx.Borrowings().LockByID(ctx, id)
		if err != nil {
			return nil, err
		}
		switch {
		case b.Status == domain.StatusReturned:
			return nil, domain.InvalidState("Book already returned")
		case !domain.CanTransition(b.Status, to):
			return nil, domain.InvalidState("Borrowing is closed (" + string(b.Status) + ")")
		}
		if err := apply(tx, b); err != nil {
			return nil, err
		}
		return tx.Borrowings().FindByID(ctx, b.ID)
	})
	if err == nil {
		closeTotal.WithLabelValues(string(to)).Inc()
	}
	return out, err
}

// SweepNow 手动触发逾期扫描（ADMIN）
func (s *BorrowingService) SweepNow(ctx context.Context, actor authz.Actor) (int64, error) {
	if err := authz.Authorize(actor, authz.BorrowingSweep); err != nil {
		return 0, err
	}
	return s.sweeper.Sweep(ctx)
}

func (s *BorrowingService) Get(ctx context.Context, id uint) (*domain.Borrowing, error) {
	b, err := s.store.Borrowings().FindByID(ctx, id)
	return b, wrapInternal("get borrowing failed", err)
}

func (s *BorrowingService) List(ctx context.Context, q BorrowingListQuery) ([]domain.Borrowing, domain.Pagination, error) {
	page := q.PageQuery.Normalize(repo.BorrowingSortKeys, "borrowedAt", "desc")
	f := repo.BorrowingFilter{
		Status:   q.Status,
		BookID:   q.BookID,
		MemberID: q.MemberID,
		UserID:   q.UserID,
		Page:     page,
	}
	if q.Overdue {
		f.OverdueAt = s.now()
	}
	items, total, err := s.store.Borrowings().List(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, wrapInternal("list borrowings failed", err)
	}
	return items, domain.NewPagination(page, total), nil
}

// Overdue 已过期未归还（含尚未被扫描的 BORROWED）
func (s *BorrowingService) Overdue(ctx context.Context) ([]domain.Borrowing, error) {
	items, err := s.store.Borrowings().ListPastDue(ctx, s.now())
	return items, wrapInternal("list overdue borrowings failed", err)
}

package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-api/internal/domain"
)

type BookRepo struct{ db *gorm.DB }

var bookSortColumns = map[string]string{
	"title":     "title",
	"author":    "author",
	"category":  "category",
	"createdAt": "created_at",
	"quantity":  "quantity",
	"available": "available",
}

// BookSortKeys 允许的 sortBy
var BookSortKeys = keys(bookSortColumns)

type BookFilter struct {
	Search   string
	Category string
	Author   string
	Page     domain.PageQuery
}

func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookRepo) FindByID(ctx context.Context, id uint) (*domain.Book, error) {
	var b domain.Book
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err, "Book not found")
	}
	return &b, nil
}

// LockByID SELECT ... FOR UPDATE，只能在事务内使用
func (r *BookRepo) LockByID(ctx context.Context, id uint) (*domain.Book, error) {
	var b domain.Book
	if err := r.db.WithContext(ctx).Clauses(forUpdate()).First(&b, id).Error; err != nil {
		return nil, notFound(err, "Book not found")
	}
	return &b, nil
}

func (r *BookRepo) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	var b domain.Book
	err := r.db.WithContext(ctx).First(&b, "isbn = ?", isbn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &b, err
}

func (r *BookRepo) List(ctx context.Context, f BookFilter) ([]domain.Book, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Book{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", like, like, like)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		q = q.Where("category = ?", c)
	}
	if a := strings.TrimSpace(f.Author); a != "" {
		q = q.Where("author LIKE ?", "%"+a+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	books := make([]domain.Book, 0, f.Page.Limit)
	err := q.Order(orderBy(bookSortColumns, f.Page)).
		Limit(f.Page.Limit).Offset(f.Page.Offset()).
		Find(&books).Error
	return books, total, err
}

func (r *BookRepo) Save(ctx context.Context, b *domain.Book) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *BookRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&domain.Book{}, id).Error
}

// TakeCopy available-1；available 已为 0 时不更新并返回 InvalidState
func (r *BookRepo) TakeCopy(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&domain.Book{}).
		Where("id = ? AND available > 0", id).
		UpdateColumn("available", gorm.Expr("available - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.InvalidState("Book is not available for borrowing")
	}
	return nil
}

// ReturnCopy available+1，上限为 quantity（减少馆藏后的截断场景）
func (r *BookRepo) ReturnCopy(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&domain.Book{}).
		Where("id = ?", id).
		UpdateColumn("available", gorm.Expr("CASE WHEN available < quantity THEN available + 1 ELSE available END"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("Book not found")
	}
	return nil
}

// WriteOffCopy 丢失：馆藏 -1，available 不变（该副本本来就不在架上），
// 仅在 available 已等于 quantity 的截断场景下随之 -1。
// 馆藏已被缩减到 0 时没有可核销的数量，直接视为成功。
// gorm 按 key 排序生成 SET，available 先于 quantity，MySQL 下读到的也是旧 quantity
func (r *BookRepo) WriteOffCopy(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&domain.Book{}).
		Where("id = ? AND quantity > 0", id).
		UpdateColumns(map[string]any{
			"available": gorm.Expr("CASE WHEN available >= quantity THEN quantity - 1 ELSE available END"),
			"quantity":  gorm.Expr("quantity - 1"),
		}).Error
}

func orderBy(cols map[string]string, p domain.PageQuery) clause.OrderByColumn {
	col, ok := cols[p.SortBy]
	if !ok {
		col = "id"
	}
	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: p.Desc()}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

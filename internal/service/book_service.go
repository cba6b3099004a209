package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/validate"
	"library-api/internal/domain"
	"library-api/internal/repo"
)

type BookInput struct {
	Title       string     `json:"title"       binding:"required,min=1,max=200"`
	Author      string     `json:"author"      binding:"required,min=1,max=100"`
	ISBN        string     `json:"isbn"        binding:"required,min=10,max=13"`
	Category    string     `json:"category"    binding:"required,min=1,max=50"`
	Description *string    `json:"description" binding:"omitempty,max=500"`
	Quantity    *int       `json:"quantity"    binding:"omitempty,min=1"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// BookPatch 部分更新：nil 表示不修改
type BookPatch struct {
	Title       *string    `json:"title"       binding:"omitempty,min=1,max=200"`
	Author      *string    `json:"author"      binding:"omitempty,min=1,max=100"`
	ISBN        *string    `json:"isbn"        binding:"omitempty,min=10,max=13"`
	Category    *string    `json:"category"    binding:"omitempty,min=1,max=50"`
	Description *string    `json:"description" binding:"omitempty,max=500"`
	Quantity    *int       `json:"quantity"    binding:"omitempty,min=1"`
	PublishedAt *time.Time `json:"publishedAt"`
}

func (p BookPatch) empty() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil && p.Category == nil &&
		p.Description == nil && p.Quantity == nil && p.PublishedAt == nil
}

type BookListQuery struct {
	domain.PageQuery
	Search   string `form:"search"   binding:"omitempty,max=100"`
	Category string `form:"category" binding:"omitempty,max=50"`
	Author   string `form:"author"   binding:"omitempty,max=100"`
}

type BookService struct {
	store *repo.Store
	log   *zap.Logger
}

func NewBookService(d Deps) *BookService {
	d = d.withDefaults()
	return &BookService{store: d.Store, log: d.Log}
}

func (s *BookService) List(ctx context.Context, q BookListQuery) ([]domain.Book, domain.Pagination, error) {
	page := q.PageQuery.Normalize(repo.BookSortKeys, "title", "asc")
	books, total, err := s.store.Books().List(ctx, repo.BookFilter{
		Search: q.Search, Category: q.Category, Author: q.Author, Page: page,
	})
	if err != nil {
		return nil, domain.Pagination{}, wrapInternal("list books failed", err)
	}
	return books, domain.NewPagination(page, total), nil
}

func (s *BookService) Get(ctx context.Context, id uint) (*domain.Book, error) {
	b, err := s.store.Books().FindByID(ctx, id)
	return b, wrapInternal("get book failed", err)
}

func (s *BookService) Create(ctx context.Context, actor authz.Actor, in BookInput) (*domain.Book, error) {
	if err := authz.Authorize(actor, authz.BookCreate); err != nil {
		return nil, err
	}
	in.Title, in.Author = strings.TrimSpace(in.Title), strings.TrimSpace(in.Author)
	in.ISBN, in.Category = strings.TrimSpace(in.ISBN), strings.TrimSpace(in.Category)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}

	b, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (*domain.Book, error) {
		existing, err := tx.Books().FindByISBN(ctx, in.ISBN)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, domain.Conflict("Book with this ISBN already exists")
		}
		b := &domain.Book{
			Title:       in.Title,
			Author:      in.Author,
			ISBN:        in.ISBN,
			Category:    in.Category,
			Description: in.Description,
			Quantity:    qty,
			Available:   qty,
			PublishedAt: in.PublishedAt,
		}
		if err := tx.Books().Create(ctx, b); err != nil {
			return nil, dupOr(err, "Duplicate ISBN", "create book failed")
		}
		return b, nil
	})
	if err != nil {
		return nil, wrapInternal("create book failed", err)
	}
	s.log.Info("book created", zap.Uint("book_id", b.ID), zap.String("isbn", b.ISBN), zap.Uint("by", actor.UserID))
	return b, nil
}

// Update 修改馆藏数量时按已借出数重算 available，不足时截断为 0
func (s *BookService) Update(ctx context.Context, actor authz.Actor, id uint, in BookPatch) (*domain.Book, error) {
	if err := authz.Authorize(actor, authz.BookUpdate); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, domain.Validation("At least one field must be provided")
	}
	in.Title, in.Author = trimPtr(in.Title), trimPtr(in.Author)
	in.ISBN, in.Category = trimPtr(in.ISBN), trimPtr(in.Category)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	b, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (*domain.Book, error) {
		b, err := tx.Books().LockByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if in.ISBN != nil {
			isbn := *in.ISBN
			if isbn != b.ISBN {
				other, err := tx.Books().FindByISBN(ctx, isbn)
				if err != nil {
					return nil, err
				}
				if other != nil {
					return nil, domain.Conflict("ISBN already exists for another book")
				}
				b.ISBN = isbn
			}
		}
		if in.Title != nil {
			b.Title = *in.Title
		}
		if in.Author != nil {
			b.Author = *in.Author
		}
		if in.Category != nil {
			b.Category = *in.Category
		}
		if in.Description != nil {
			b.Description = in.Description
		}
		if in.PublishedAt != nil {
			b.PublishedAt = in.PublishedAt
		}
		if in.Quantity != nil {
			b.Available = domain.RecomputeAvailable(b.Quantity, b.Available, *in.Quantity)
			b.Quantity = *in.Quantity
		}
		if err := tx.Books().Save(ctx, b); err != nil {
			return nil, dupOr(err, "Duplicate ISBN", "update book failed")
		}
		return b, nil
	})
	if err != nil {
		return nil, wrapInternal("update book failed", err)
	}
	s.log.Info("book updated",
		zap.Uint("book_id", b.ID), zap.Int("quantity", b.Quantity), zap.Int("available", b.Available))
	return b, nil
}

// Delete 仍有未归还借阅时拒绝；已关闭的借阅记录随书一起删除
func (s *BookService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	if err := authz.Authorize(actor, authz.BookDelete); err != nil {
		return err
	}
	_, err := repo.InTx(ctx, s.store, func(tx *repo.Store) (struct{}, error) {
		b, err := tx.Books().LockByID(ctx, id)
		if err != nil {
			return struct{}{}, err
		}
		open, err := tx.Borrowings().CountOpenByBook(ctx, id)
		if err != nil {
			return struct{}{}, err
		}
		if open > 0 || b.Available < b.Quantity {
			return struct{}{}, domain.InvalidState("Cannot delete book that is currently borrowed")
		}
		if err := tx.Borrowings().DeleteClosedByBook(ctx, id); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, tx.Books().Delete(ctx, id)
	})
	if err != nil {
		return wrapInternal("delete book failed", err)
	}
	s.log.Info("book deleted", zap.Uint("book_id", id), zap.Uint("by", actor.UserID))
	return nil
}

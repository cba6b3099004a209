package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/cache"
	"library-api/internal/domain"
	"library-api/internal/service"
	"library-api/internal/transport/http/ez"
)

type BorrowingHandler struct {
	svc   *service.BorrowingService
	cache *cache.Cache
	log   *zap.Logger
}

func NewBorrowingHandler(svc *service.BorrowingService, c *cache.Cache, l *zap.Logger) *BorrowingHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &BorrowingHandler{svc: svc, cache: c, log: l}
}

func (h *BorrowingHandler) Priority() int { return 40 }

func (h *BorrowingHandler) MountAPI(e ez.EZ) {
	g := e.Group("/borrowings")

	ez.RegisterAction(g, ez.Action[service.BorrowingListQuery, gin.H]{
		Method:  http.MethodGet,
		Binder:  ez.BindQuery,
		Message: "Borrowings retrieved successfully",
		Handler: func(c *gin.Context, _ authz.Actor, in *service.BorrowingListQuery) (gin.H, error) {
			items, page, err := h.svc.List(c.Request.Context(), *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"borrowings": items, "pagination": page}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodGet,
		Path:    "/overdue",
		Message: "Overdue borrowings retrieved",
		Handler: func(c *gin.Context, _ authz.Actor, _ *struct{}) (gin.H, error) {
			items, err := h.svc.Overdue(c.Request.Context())
			if err != nil {
				return nil, err
			}
			return gin.H{"overdueBorrowings": items}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodGet,
		Path:    "/:id",
		Message: "Borrowing retrieved successfully",
		Handler: func(c *gin.Context, _ authz.Actor, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			b, err := h.svc.Get(c.Request.Context(), id)
			if err != nil {
				return nil, err
			}
			return gin.H{"borrowing": b}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.BorrowInput, gin.H]{
		Method:  http.MethodPost,
		Binder:  ez.BindJSON,
		Auth:    true,
		Status:  http.StatusCreated,
		Message: "Book borrowed successfully",
		Handler: func(c *gin.Context, a authz.Actor, in *service.BorrowInput) (gin.H, error) {
			b, err := h.svc.Borrow(c.Request.Context(), a, *in)
			if err != nil {
				return nil, err
			}
			invalidateBooks(c, h.cache, h.log, b.BookID)
			return gin.H{"borrowing": b}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodPost,
		Path:    "/sweep",
		Auth:    true,
		Message: "Overdue sweep completed",
		Handler: func(c *gin.Context, a authz.Actor, _ *struct{}) (gin.H, error) {
			n, err := h.svc.SweepNow(c.Request.Context(), a)
			if err != nil {
				return nil, err
			}
			return gin.H{"updated": n}, nil
		},
	})

	h.close(g, "/:id/return", "Book returned successfully", h.svc.Return)
	h.close(g, "/:id/lost", "Borrowing marked as lost", h.svc.MarkLost)
}

// close 归还/丢失共用：读 id -> 迁移 -> 失效书目缓存
func (h *BorrowingHandler) close(
	g ez.EZ,
	path, msg string,
	fn func(ctx context.Context, a authz.Actor, id uint) (*domain.Borrowing, error),
) {
	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodPost,
		Path:    path,
		Auth:    true,
		Message: msg,
		Handler: func(c *gin.Context, a authz.Actor, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			b, err := fn(c.Request.Context(), a, id)
			if err != nil {
				return nil, err
			}
			invalidateBooks(c, h.cache, h.log, b.BookID)
			return gin.H{"borrowing": b}, nil
		},
	})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-api/internal/authz"
	"library-api/internal/core/cache"
	"library-api/internal/domain"
	"library-api/internal/service"
	"library-api/internal/transport/http/ez"
)

type BookHandler struct {
	svc   *service.BookService
	cache *cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewBookHandler(svc *service.BookService, c *cache.Cache, ttl time.Duration, l *zap.Logger) *BookHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &BookHandler{svc: svc, cache: c, ttl: ttl, log: l}
}

func (h *BookHandler) Priority() int { return 20 }

func (h *BookHandler) MountAPI(e ez.EZ) {
	g := e.Group("/books")

	ez.RegisterAction(g, ez.Action[service.BookListQuery, gin.H]{
		Method:  http.MethodGet,
		Path:    "",
		Binder:  ez.BindQuery,
		Message: "Books retrieved successfully",
		Handler: func(c *gin.Context, _ authz.Actor, in *service.BookListQuery) (gin.H, error) {
			books, page, err := h.svc.List(c.Request.Context(), *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"books": books, "pagination": page}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, gin.H]{
		Method:  http.MethodGet,
		Path:    "/:id",
		Binder:  ez.BindNone,
		Message: "Book retrieved successfully",
		Handler: func(c *gin.Context, _ authz.Actor, _ *struct{}) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			b, err := cache.GetOrLoadJSON(c.Request.Context(), h.cache, cache.BookKey(id), h.ttl,
				func(ctx context.Context) (*domain.Book, error) { return h.svc.Get(ctx, id) })
			if err != nil {
				return nil, err
			}
			return gin.H{"book": b}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.BookInput, gin.H]{
		Method:  http.MethodPost,
		Path:    "",
		Binder:  ez.BindJSON,
		Auth:    true,
		Status:  http.StatusCreated,
		Message: "Book created successfully",
		Handler: func(c *gin.Context, a authz.Actor, in *service.BookInput) (gin.H, error) {
			b, err := h.svc.Create(c.Request.Context(), a, *in)
			if err != nil {
				return nil, err
			}
			return gin.H{"book": b}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.BookPatch, gin.H]{
		Method:  http.MethodPut,
		Path:    "/:id",
		Binder:  ez.BindJSON,
		Auth:    true,
		Message: "Book updated successfully",
		Handler: func(c *gin.Context, a authz.Actor, in *service.BookPatch) (gin.H, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			b, err := h.svc.Update(c.Request.Context(), a, id, *in)
			if err != nil {
				return nil, err
			}
			invalidateBooks(c, h.cache, h.log, id)
			return gin.H{"book": b}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, any]{
		Method:  http.MethodDelete,
		Path:    "/:id",
		Binder:  ez.BindNone,
		Auth:    true,
		Status:  http.StatusNoContent,
		Message: "Book deleted successfully",
		Handler: func(c *gin.Context, a authz.Actor, _ *struct{}) (any, error) {
			id, err := ez.ParamID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := h.svc.Delete(c.Request.Context(), a, id); err != nil {
				return nil, err
			}
			invalidateBooks(c, h.cache, h.log, id)
			return nil, nil
		},
	})
}

// invalidateBooks 提交后删除书目详情缓存；失败只记日志（依赖 TTL 兜底）
func invalidateBooks(c *gin.Context, ch *cache.Cache, l *zap.Logger, ids ...uint) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.BookKey(id))
	}
	if err := ch.Invalidate(c.Request.Context(), keys...); err != nil {
		l.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"library-api/internal/core/auth"
	"library-api/internal/core/cache"
	"library-api/internal/core/config"
	"library-api/internal/core/server"
	"library-api/internal/service"
	"library-api/internal/transport/http/ez"
	"library-api/internal/transport/http/handler"
	mdw "library-api/internal/transport/http/middleware"
	resp "library-api/internal/transport/http/response"
)

type Deps struct {
	Log    *zap.Logger
	Config *config.Config
	Tokens *auth.Tokens
	Cache  *cache.Cache // 可为 nil

	Books      *service.BookService
	Members    *service.MemberService
	Borrowings *service.BorrowingService
	Auth       *service.AuthService

	// /health 依赖检查
	Checks map[string]handler.Pinger
}

func NewAPIEngine(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	cfg := d.Config
	prod := cfg.App.Production()
	r := server.NewRouter(server.Options{Production: prod, CORSOrigins: cfg.App.CORSOrigins})

	// 顺序：日志/指标在外层，才能记录被限流或 panic 的请求
	r.Use(
		mdw.RequestID(),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
		mdw.Recovery(d.Log),
		mdw.SecurityHeaders(prod),
	)
	// 限流类中间件：配置为 0 表示不启用
	lim := cfg.Limits
	queueWait := 5 * time.Second
	if lim.TimeoutSec > 0 {
		queueWait = time.Duration(lim.TimeoutSec) * time.Second
	}
	if lim.RPS > 0 {
		r.Use(mdw.RateLimit(rate.Limit(lim.RPS), max(lim.Burst, 1)))
	}
	if lim.MaxConcurrent > 0 {
		r.Use(mdw.ConcurrencyLimit(lim.MaxConcurrent, queueWait))
	}
	if lim.MaxBodyBytes > 0 {
		r.Use(mdw.MaxBodyBytes(lim.MaxBodyBytes))
	}
	if lim.TimeoutSec > 0 {
		r.Use(mdw.Timeout(time.Duration(lim.TimeoutSec) * time.Second))
	}
	r.NoRoute(func(c *gin.Context) { resp.Fail(c, http.StatusNotFound, resp.MsgRouteNotFound) })

	// 健康检查 / 指标
	handler.NewHealthHandler(d.Checks).Mount(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 前缀
	api := r.Group("/api", mdw.Authenticate(d.Tokens.Access))

	var authLimiter gin.HandlerFunc
	if n := cfg.Limits.AuthPerMinute; n > 0 {
		authLimiter = mdw.RateLimitPerIP(rate.Every(time.Minute/time.Duration(n)), n, resp.MsgTooManyAuth)
	}
	bookTTL := time.Duration(cfg.Redis.BookTTLSec) * time.Second

	var reg Registry
	reg.Register(
		handler.NewAuthHandler(d.Auth, authLimiter),
		handler.NewBookHandler(d.Books, d.Cache, bookTTL, d.Log),
		handler.NewMemberHandler(d.Members),
		handler.NewBorrowingHandler(d.Borrowings, d.Cache, d.Log),
	)
	reg.MountAll(ez.New(api, d.Log, prod))

	return r
}

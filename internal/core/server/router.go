package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-api/internal/core/config"
)

type Options struct {
	Production  bool
	CORSOrigins []string
}

// NewRouter 空 engine + CORS；其余中间件由调用方按顺序挂载
func NewRouter(o Options) *gin.Engine {
	if o.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "X-Request-ID")
	cc.ExposeHeaders = []string{"X-Request-ID"}
	cc.AllowCredentials = true
	cc.MaxAge = 12 * time.Hour
	if len(o.CORSOrigins) == 0 {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = o.CORSOrigins
	}
	r.Use(cors.New(cc))
	return r
}

func BuildServer(h config.HTTP, handler http.Handler, errorLog *log.Logger) *http.Server {
	return &http.Server{
		Addr:           h.Addr(),
		Handler:        handler,
		ReadTimeout:    time.Duration(h.ReadTimeoutSec) * time.Second,
		WriteTimeout:   time.Duration(h.WriteTimeoutSec) * time.Second,
		IdleTimeout:    time.Duration(h.IdleTimeoutSec) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		ErrorLog:       errorLog,
	}
}

// Serve 启动并阻塞到 ctx 结束，然后在 grace 内优雅关闭
func Serve(ctx context.Context, srv *http.Server, l *zap.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("http starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	l.Info("http stopped gracefully")
	return nil
}

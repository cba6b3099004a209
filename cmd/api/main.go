package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"library-api/internal/app"
	"library-api/internal/core/config"
	"library-api/internal/core/logger"
	"library-api/internal/core/server"
	"library-api/internal/core/validate"
	"library-api/internal/transport/http/router"
)

func main() {
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.FromConfig(cfg.Log, cfg.App.Production())
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close resources", zap.Error(err))
		}
	}()

	if cfg.DB.AutoMigrate {
		if err := a.Migrate(ctx); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
	}

	// gin 自身的调试/错误输出也走 zap
	gin.DefaultWriter = logger.ToWriter(log.Named("gin"), zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(log.Named("gin"), zapcore.ErrorLevel)
	validate.RegisterGin()
	r := router.NewAPIEngine(router.Deps{
		Log:        log,
		Config:     cfg,
		Tokens:     a.Tokens,
		Cache:      a.Cache,
		Books:      a.Books,
		Members:    a.Members,
		Borrowings: a.Borrowings,
		Auth:       a.Auth,
		Checks:     a.Checks(),
	})

	// 逾期扫描
	if sec := cfg.Library.SweepIntervalSec; sec > 0 {
		go a.Sweeper.Run(ctx, time.Duration(sec)*time.Second)
		log.Info("overdue sweeper scheduled", zap.Int("interval_sec", sec))
	}

	errLog, err := logger.ToStdLogger(log.Named("http"), zapcore.WarnLevel)
	if err != nil {
		log.Fatal("http error logger", zap.Error(err))
	}
	srv := server.BuildServer(cfg.App.HTTP, r, errLog)

	log.Info("library api starting",
		zap.String("name", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("health", "http://"+cfg.App.HTTP.Addr()+"/health"),
	)
	if err := server.Serve(ctx, srv, log, 10*time.Second); err != nil {
		log.Error("http server", zap.Error(err))
	}
}

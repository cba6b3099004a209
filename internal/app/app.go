// Package app 组装 api 与 libctl 共用的依赖
package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"library-api/internal/core/auth"
	"library-api/internal/core/cache"
	"library-api/internal/core/config"
	"library-api/internal/core/database"
	"library-api/internal/repo"
	"library-api/internal/service"
	"library-api/internal/transport/http/handler"
)

type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	Store  *repo.Store
	Cache  *cache.Cache // Redis 未配置时为 nil
	Tokens *auth.Tokens

	Books      *service.BookService
	Members    *service.MemberService
	Borrowings *service.BorrowingService
	Auth       *service.AuthService
	Sweeper    *service.Sweeper
}

// Open 连接数据库（必须）与 Redis（可选），构建 service
func Open(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: l, DB: db, Store: repo.NewStore(db)}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	a.Tokens = auth.NewTokens(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.Issuer,
		cfg.JWT.AccessTTL(), cfg.JWT.RefreshTTL())

	if cfg.Redis.Enabled() {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := c.Ping(pctx); err != nil {
			// Redis 只是加速层，连不上就降级
			l.Warn("redis unavailable, cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = c.Close()
		} else {
			a.Cache = c
			a.Tokens.Revoker = c
			l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	d := service.Deps{Store: a.Store, Log: l}
	a.Books = service.NewBookService(d)
	a.Members = service.NewMemberService(d)
	a.Borrowings = service.NewBorrowingService(d, service.BorrowingOptions{
		DefaultLoanDays:        cfg.Library.DefaultLoanDays,
		EnforceReturnOwnership: cfg.Library.EnforceReturnOwnership,
	})
	a.Auth = service.NewAuthService(d, a.Tokens)
	a.Sweeper = service.NewSweeper(d)
	return a, nil
}

func (a *App) Migrate(ctx context.Context) error {
	if err := a.Store.Migrate(ctx); err != nil {
		return err
	}
	a.Log.Info("automigrate done")
	return nil
}

// Checks /health 使用的依赖探活
func (a *App) Checks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Cache != nil {
		checks["redis"] = a.Cache.Ping
	}
	return checks
}

func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	errs = append(errs, database.Close(a.DB))
	return errors.Join(errs...)
}

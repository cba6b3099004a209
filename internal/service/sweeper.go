package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"library-api/internal/repo"
)

// Sweeper 把已过期的 BORROWED 改为 OVERDUE；不改库存，可重复执行。
// 调度由调用方负责（cmd/api 定时器、libctl sweep、管理接口）
type Sweeper struct {
	store *repo.Store
	log   *zap.Logger
	now   Clock
}

func NewSweeper(d Deps) *Sweeper {
	d = d.withDefaults()
	return &Sweeper{store: d.Store, log: d.Log, now: d.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.Borrowings().MarkOverdue(ctx, s.now())
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
		return 0, wrapInternal("overdue sweep failed", err)
	}
	sweptTotal.Add(float64(n))
	s.log.Info("overdue sweep done", zap.Int64("updated", n))
	return n, nil
}

// Run 启动即扫一次，之后每 interval 一次，直到 ctx 结束
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		_, _ = s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

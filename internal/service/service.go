// Package service 业务用例：授权 -> 校验 -> 工作单元内读写
package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"library-api/internal/domain"
	"library-api/internal/repo"
)

// Clock 统一 UTC，便于 SQLite 按字符串比较时间
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

type Deps struct {
	Store *repo.Store
	Log   *zap.Logger
	Now   Clock
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = SystemClock
	}
	return d
}

// wrapInternal 业务错误原样返回，其余包装成 Internal（原始错误留给日志）
func wrapInternal(msg string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(msg, err)
}

// dupOr 唯一约束冲突转 Conflict
func dupOr(err error, conflictMsg, internalMsg string) error {
	if repo.IsDupKey(err) {
		return domain.Conflict(conflictMsg)
	}
	return wrapInternal(internalMsg, err)
}

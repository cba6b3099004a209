package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-api/internal/domain"
)

// Store 持有一个 *gorm.DB；事务内由 InTx 传入绑定到 tx 的 Store
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Users() *UserRepo           { return &UserRepo{db: s.db} }
func (s *Store) Books() *BookRepo           { return &BookRepo{db: s.db} }
func (s *Store) Members() *MemberRepo       { return &MemberRepo{db: s.db} }
func (s *Store) Borrowings() *BorrowingRepo { return &BorrowingRepo{db: s.db} }

// InTx 工作单元：fn 内所有读写共用同一事务，返回 error 即整体回滚
func InTx[T any](ctx context.Context, s *Store, fn func(tx *Store) (T, error)) (T, error) {
	var out T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, e := fn(&Store{db: tx})
		out = o
		return e
	})
	if err != nil {
		var zero T
		return zero, classify(err)
	}
	return out, nil
}

// Migrate 建表/补字段
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(domain.Models()...)
}

// 行锁；SQLite 方言会忽略 FOR 子句（整库写锁已串行化）
func forUpdate() clause.Locking { return clause.Locking{Strength: "UPDATE"} }
func forShare() clause.Locking  { return clause.Locking{Strength: "SHARE"} }

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(msg)
	}
	return err
}

// classify 把驱动层的并发冲突统一成 Retryable，业务错误原样返回
func classify(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if isRetryable(err) {
		return domain.Retryable(err)
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure / deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_DEADLOCK / ER_LOCK_WAIT_TIMEOUT
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsDupKey 唯一约束冲突。TranslateError 之外保留按文本兜底，兼容未翻译的驱动
func IsDupKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-api/internal/authz"
	"library-api/internal/core/database"
	"library-api/internal/domain"
	"library-api/internal/repo"
	"library-api/pkg/utils"
)

func init() { utils.PasswordCost = bcrypt.MinCost }

// testClock 可手动推进的时钟
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *repo.Store
	clock *testClock
	deps  Deps

	books      *BookService
	members    *MemberService
	borrowings *BorrowingService

	admin authz.Actor
	user  authz.Actor
}

func newFixture(t *testing.T, opts ...func(*BorrowingOptions)) *fixture {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:   "sqlite",
		DSN:      "file:" + filepath.Join(t.TempDir(), "library.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := repo.NewStore(db)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	clock := &testClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	d := Deps{Store: store, Now: clock.Now}
	var bo BorrowingOptions
	for _, o := range opts {
		o(&bo)
	}
	f := &fixture{
		t: t, ctx: ctx, store: store, clock: clock, deps: d,
		books:      NewBookService(d),
		members:    NewMemberService(d),
		borrowings: NewBorrowingService(d, bo),
	}
	f.admin = f.newActor("admin@library.com", domain.RoleAdmin)
	f.user = f.newActor("user@library.com", domain.RoleUser)
	return f
}

func (f *fixture) newActor(email string, role domain.Role) authz.Actor {
	f.t.Helper()
	u := &domain.User{Name: email, Email: email, Password: "x", Role: role}
	require.NoError(f.t, f.store.Users().Create(f.ctx, u))
	return authz.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}

var isbnSeq int

func (f *fixture) newBook(qty int) *domain.Book {
	f.t.Helper()
	isbnSeq++
	b, err := f.books.Create(f.ctx, f.admin, BookInput{
		Title:    fmt.Sprintf("Book %d", isbnSeq),
		Author:   "Author",
		ISBN:     fmt.Sprintf("978%010d", isbnSeq),
		Category: "Fiction",
		Quantity: &qty,
	})
	require.NoError(f.t, err)
	return b
}

var codeSeq int

func (f *fixture) newMember() *domain.Member {
	f.t.Helper()
	codeSeq++
	m, err := f.members.Create(f.ctx, f.admin, MemberInput{Code: fmt.Sprintf("M%04d", codeSeq), Name: "Member"})
	require.NoError(f.t, err)
	return m
}

func (f *fixture) book(id uint) *domain.Book {
	f.t.Helper()
	b, err := f.books.Get(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) borrow(bookID, memberID uint) (*domain.Borrowing, error) {
	return f.borrowings.Borrow(f.ctx, f.user, BorrowInput{BookID: bookID, MemberID: memberID})
}

func kindOf(err error) domain.Kind { return domain.KindOf(err) }

func ptr[T any](v T) *T { return &v }

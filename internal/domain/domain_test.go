package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to BorrowingStatus
		ok       bool
	}{
		{StatusBorrowed, StatusOverdue, true},
		{StatusBorrowed, StatusReturned, true},
		{StatusBorrowed, StatusLost, true},
		{StatusOverdue, StatusReturned, true},
		{StatusOverdue, StatusLost, true},
		{StatusOverdue, StatusBorrowed, false},
		{StatusReturned, StatusBorrowed, false},
		{StatusReturned, StatusLost, false},
		{StatusLost, StatusReturned, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
	assert.True(t, StatusOverdue.IsOpen())
	assert.True(t, StatusLost.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseBorrowingStatus(" overdue ")
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, s)
	_, err = ParseBorrowingStatus("gone")
	assert.Error(t, err)

	var m MemberStatus
	require.NoError(t, m.UnmarshalParam("inactive"))
	assert.Equal(t, MemberInactive, m)

	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
}

func TestRecomputeAvailable(t *testing.T) {
	assert.Equal(t, 4, RecomputeAvailable(5, 3, 6))
	assert.Equal(t, 0, RecomputeAvailable(5, 0, 3))
	assert.Equal(t, 1, RecomputeAvailable(2, 2, 1))
}

func TestIsPastDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &Borrowing{Status: StatusBorrowed, DueDate: now.Add(-time.Second)}
	assert.True(t, IsPastDue(b, now))
	b.Status = StatusOverdue
	assert.False(t, IsPastDue(b, now))
	b.Status, b.DueDate = StatusBorrowed, now
	assert.False(t, IsPastDue(b, now))
}

func TestPageQueryNormalize(t *testing.T) {
	p := PageQuery{Limit: 500, SortBy: "secret", Order: "DESC"}.Normalize([]string{"title"}, "title", "asc")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, "title", p.SortBy)
	assert.True(t, p.Desc())

	p = PageQuery{Page: 3, Limit: 10}.Normalize(nil, "id", "desc")
	assert.Equal(t, 20, p.Offset())

	pg := NewPagination(p, 25)
	assert.Equal(t, 3, pg.TotalPages)
	assert.False(t, pg.HasNext)
	assert.True(t, pg.HasPrev)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("deadlock")
	err := Retryable(cause)
	assert.True(t, IsKind(err, KindRetryable))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
	assert.Equal(t, "Book not found", NotFound("Book not found").Error())
}

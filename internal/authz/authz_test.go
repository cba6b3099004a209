package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"library-api/internal/domain"
)

func TestAuthorize(t *testing.T) {
	admin := Actor{UserID: 1, Role: domain.RoleAdmin}
	user := Actor{UserID: 2, Role: domain.RoleUser}

	cases := []struct {
		name  string
		actor Actor
		act   Action
		want  domain.Kind
		allow bool
	}{
		{"admin creates book", admin, BookCreate, 0, true},
		{"user creates book", user, BookCreate, domain.KindForbidden, false},
		{"anonymous creates book", Anonymous(), BookCreate, domain.KindUnauthorized, false},
		{"user borrows", user, BorrowingBorrow, 0, true},
		{"user returns", user, BorrowingReturn, 0, true},
		{"user creates member", user, MemberCreate, 0, true},
		{"user updates member", user, MemberUpdate, 0, true},
		{"user deletes member", user, MemberDelete, domain.KindForbidden, false},
		{"admin deletes member", admin, MemberDelete, 0, true},
		{"user marks lost", user, BorrowingLost, domain.KindForbidden, false},
		{"user sweeps", user, BorrowingSweep, domain.KindForbidden, false},
		{"unknown action", admin, Action("nope"), domain.KindForbidden, false},
		{"bad role string", Actor{UserID: 3, Role: "ROOT"}, ProfileRead, domain.KindUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.act)
			if tc.allow {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.want, domain.KindOf(err))
		})
	}
}

func TestAuthorizeOwner(t *testing.T) {
	owner := uint(7)
	other := uint(8)

	assert.NoError(t, AuthorizeOwner(Actor{UserID: 7, Role: domain.RoleUser}, &owner))
	assert.NoError(t, AuthorizeOwner(Actor{UserID: 1, Role: domain.RoleAdmin}, &other))
	assert.NoError(t, AuthorizeOwner(Actor{UserID: 1, Role: domain.RoleAdmin}, nil))

	err := AuthorizeOwner(Actor{UserID: 7, Role: domain.RoleUser}, &other)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	err = AuthorizeOwner(Actor{UserID: 7, Role: domain.RoleUser}, nil)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	err = AuthorizeOwner(Anonymous(), &owner)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
}

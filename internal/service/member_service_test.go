package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-api/internal/domain"
)

func TestCreateMember(t *testing.T) {
	f := newFixture(t)

	m, err := f.members.Create(f.ctx, f.user, MemberInput{Code: "M-1", Name: "Ann", Email: ptr(" Ann@Example.com ")})
	require.NoError(t, err)
	assert.Equal(t, domain.MemberActive, m.Status)
	require.NotNil(t, m.Email)
	assert.Equal(t, "ann@example.com", *m.Email)

	_, err = f.members.Create(f.ctx, f.user, MemberInput{Code: "M-1", Name: "Bob"})
	require.Error(t, err)
	assert.Equal(t, "Member code already exists", err.Error())

	_, err = f.members.Create(f.ctx, f.user, MemberInput{Code: "M-2", Name: "Bob", Email: ptr("ann@example.com")})
	require.Error(t, err)
	assert.Equal(t, "Email already exists", err.Error())

	_, err = f.members.Create(f.ctx, f.user, MemberInput{Code: "M-3", Name: "Bob", Email: ptr("not-an-email")})
	assert.Equal(t, domain.KindValidation, kindOf(err))
}

func TestUpdateMember(t *testing.T) {
	f := newFixture(t)
	a, err := f.members.Create(f.ctx, f.admin, MemberInput{Code: "A", Name: "A", Email: ptr("a@x.io")})
	require.NoError(t, err)
	b := f.newMember()

	_, err = f.members.Update(f.ctx, f.user, b.ID, MemberPatch{Email: ptr("a@x.io")})
	require.Error(t, err)
	assert.Equal(t, "Email already registered to another member", err.Error())

	_, err = f.members.Update(f.ctx, f.user, b.ID, MemberPatch{Code: ptr(a.Code)})
	assert.Equal(t, domain.KindConflict, kindOf(err))

	// 同一会员保留原邮箱不算冲突
	got, err := f.members.Update(f.ctx, f.user, a.ID, MemberPatch{Email: ptr("A@X.IO"), Phone: ptr("555")})
	require.NoError(t, err)
	assert.Equal(t, "555", *got.Phone)
}

func TestUpdateMemberRejectsBlankFields(t *testing.T) {
	f := newFixture(t)
	m := f.newMember()

	_, err := f.members.Update(f.ctx, f.user, m.ID, MemberPatch{Name: ptr("   ")})
	assert.Equal(t, domain.KindValidation, kindOf(err))
	_, err = f.members.Update(f.ctx, f.user, m.ID, MemberPatch{Code: ptr(" ")})
	assert.Equal(t, domain.KindValidation, kindOf(err))

	got, err := f.members.Update(f.ctx, f.user, m.ID, MemberPatch{Name: ptr(" Siti ")})
	require.NoError(t, err)
	assert.Equal(t, "Siti", got.Name)
	assert.Equal(t, m.Code, got.Code)
}

func TestDeleteMember(t *testing.T) {
	f := newFixture(t)
	book, m := f.newBook(1), f.newMember()
	b, err := f.borrow(book.ID, m.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.KindForbidden, kindOf(f.members.Delete(f.ctx, f.user, m.ID)))

	err = f.members.Delete(f.ctx, f.admin, m.ID)
	require.Error(t, err)
	assert.Equal(t, "Cannot delete member with active borrowings", err.Error())

	_, err = f.borrowings.Return(f.ctx, f.user, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.members.Delete(f.ctx, f.admin, m.ID))

	_, err = f.members.Get(f.ctx, m.ID)
	assert.Equal(t, domain.KindNotFound, kindOf(err))
	assert.Equal(t, 1, f.book(book.ID).Available)
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	_, err := f.members.Create(f.ctx, f.admin, MemberInput{Code: "LIB-01", Name: "Alice"})
	require.NoError(t, err)
	off, err := f.members.Create(f.ctx, f.admin, MemberInput{Code: "LIB-02", Name: "Bruno", Status: domain.MemberInactive})
	require.NoError(t, err)

	items, _, err := f.members.List(f.ctx, MemberListQuery{Status: domain.MemberInactive})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, off.ID, items[0].ID)

	items, page, err := f.members.List(f.ctx, MemberListQuery{Search: "ali"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Alice", items[0].Name)
}

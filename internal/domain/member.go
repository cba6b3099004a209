package domain

import (
	"fmt"
	"strings"
	"time"
)

type MemberStatus string

const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberInactive MemberStatus = "INACTIVE"
)

func ParseMemberStatus(s string) (MemberStatus, error) {
	switch st := MemberStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case MemberActive, MemberInactive:
		return st, nil
	}
	return "", fmt.Errorf("unknown member status %q", s)
}

func (s *MemberStatus) UnmarshalText(b []byte) error {
	v, err := ParseMemberStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalParam gin query/form 绑定
func (s *MemberStatus) UnmarshalParam(p string) error { return s.UnmarshalText([]byte(p)) }

type Member struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name      string       `gorm:"size:100;not null" json:"name"`
	Email     *string      `gorm:"uniqueIndex;size:191" json:"email"`
	Phone     *string      `gorm:"size:32" json:"phone"`
	Address   *string      `gorm:"size:255" json:"address"`
	Status    MemberStatus `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (Member) TableName() string { return "members" }

func (m *Member) CanBorrow() bool { return m.Status == MemberActive }

package domain

import (
	"fmt"
	"strings"
	"time"
)

type BorrowingStatus string

const (
	StatusBorrowed BorrowingStatus = "BORROWED"
	StatusOverdue  BorrowingStatus = "OVERDUE"
	StatusReturned BorrowingStatus = "RETURNED"
	StatusLost     BorrowingStatus = "LOST"
)

// OpenStatuses 仍占用库存的状态
var OpenStatuses = []BorrowingStatus{StatusBorrowed, StatusOverdue}

func ParseBorrowingStatus(s string) (BorrowingStatus, error) {
	switch st := BorrowingStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusBorrowed, StatusOverdue, StatusReturned, StatusLost:
		return st, nil
	}
	return "", fmt.Errorf("unknown borrowing status %q", s)
}

func (s *BorrowingStatus) UnmarshalText(b []byte) error {
	v, err := ParseBorrowingStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s *BorrowingStatus) UnmarshalParam(p string) error { return s.UnmarshalText([]byte(p)) }

func (s BorrowingStatus) IsOpen() bool { return s == StatusBorrowed || s == StatusOverdue }

func (s BorrowingStatus) IsTerminal() bool { return s == StatusReturned || s == StatusLost }

// 状态迁移表；终态没有出边
var transitions = map[BorrowingStatus][]BorrowingStatus{
	StatusBorrowed: {StatusOverdue, StatusReturned, StatusLost},
	StatusOverdue:  {StatusReturned, StatusLost},
}

func CanTransition(from, to BorrowingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Borrowing struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	BookID     uint            `gorm:"not null;index:idx_borrowings_book_member" json:"bookId"`
	MemberID   uint            `gorm:"not null;index:idx_borrowings_book_member;index" json:"memberId"`
	UserID     *uint           `gorm:"index" json:"userId"`
	BorrowedAt time.Time       `gorm:"not null;index" json:"borrowedAt"`
	DueDate    time.Time       `gorm:"not null;index:idx_borrowings_status_due,priority:2" json:"dueDate"`
	ReturnedAt *time.Time      `json:"returnedAt"`
	Status     BorrowingStatus `gorm:"size:16;not null;default:BORROWED;index:idx_borrowings_status_due,priority:1" json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`

	Book   *Book   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"book,omitempty"`
	Member *Member `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"member,omitempty"`
	User   *User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

func (Borrowing) TableName() string { return "borrowings" }

// IsPastDue 扫描判定：仅 BORROWED 且已过期
func IsPastDue(b *Borrowing, now time.Time) bool {
	return b.Status == StatusBorrowed && b.DueDate.Before(now)
}

// Models 供 AutoMigrate 使用，按依赖顺序
func Models() []any {
	return []any{&User{}, &Book{}, &Member{}, &Borrowing{}}
}

package domain

import "time"

type Book struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Author      string     `gorm:"size:100;not null;index" json:"author"`
	ISBN        string     `gorm:"column:isbn;uniqueIndex;size:13;not null" json:"isbn"`
	Category    string     `gorm:"size:50;not null;index" json:"category"`
	Description *string    `gorm:"size:500" json:"description"`
	Quantity    int        `gorm:"not null;default:1;check:quantity >= 0" json:"quantity"`
	Available   int        `gorm:"not null;default:1;check:available >= 0" json:"available"`
	PublishedAt *time.Time `json:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Book) TableName() string { return "books" }

// Borrowed 当前借出数量（由计数推导）
func (b *Book) Borrowed() int { return b.Quantity - b.Available }

// RecomputeAvailable 修改馆藏数量后的可借数；借出数超过新数量时截断为 0
func RecomputeAvailable(oldQuantity, oldAvailable, newQuantity int) int {
	borrowed := oldQuantity - oldAvailable
	return max(0, newQuantity-borrowed)
}

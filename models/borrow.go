// models/borrow.go
package models

import "time"

const BorrowTable = "borrow"

// Borrow 一条借用记录：ReturnedAt 为 nil 表示仍在借出（open），设置后即关闭，不可重开
type Borrow struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ItemID     uint       `gorm:"index;not null" json:"item_id"`
	BorrowerID uint       `gorm:"not null" json:"borrower_id"`
	OwnerID    uint       `gorm:"index;not null" json:"owner_id"` // 借出时物品主人的快照
	BorrowedAt time.Time  `gorm:"not null" json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

func (Borrow) TableName() string { return BorrowTable }

func (b *Borrow) IsOpen() bool { return b.ReturnedAt == nil }

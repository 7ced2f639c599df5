// models/item.go
package models

import "time"

const ItemTable = "items"
const ItemImageTable = "item_images"

type Item struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	OwnerID     uint    `gorm:"index;not null" json:"owner_id"`
	Name        string  `gorm:"size:200;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	Category    string  `gorm:"size:120;index" json:"category"`
	Price       float64 `gorm:"not null;default:0" json:"price"`
	// 冗余列：没有未归还的 borrow 时为 true，只能由借还事务改写
	Available bool      `gorm:"not null;default:true;index" json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ItemImage struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ItemID   uint   `gorm:"index;not null" json:"item_id"`
	ImageURL string `gorm:"size:1024;not null" json:"image_url"`
}

func (Item) TableName() string      { return ItemTable }
func (ItemImage) TableName() string { return ItemImageTable }

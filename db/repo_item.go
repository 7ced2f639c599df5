// db/repo_item.go
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"borrowbuddy/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemView 物品 + 图片地址
type ItemView struct {
	models.Item
	Images []string `json:"images"`
}

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusOnLoan    ItemStatus = "on_loan"
	ItemStatusAll       ItemStatus = "all"
)

// ParseItemStatus 空串默认 available（与原先只列出可借物品一致）
func ParseItemStatus(s string) (ItemStatus, error) {
	switch st := ItemStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return ItemStatusAvailable, nil
	case ItemStatusAvailable, ItemStatusOnLoan, ItemStatusAll:
		return st, nil
	default:
		return "", fmt.Errorf("unknown item status %q", s)
	}
}

type ItemsQuery struct {
	Status   ItemStatus
	Category string
	OwnerID  uint // 0 = 不限
}

type ItemUpdate struct {
	Name        string
	Description string
	Category    string
	Price       float64
}

// CreateItem 新物品总是 available；图片与物品同一事务写入
func (r *Repo) CreateItem(ctx context.Context, it *models.Item, images []string) (*ItemView, error) {
	it.ID = 0
	it.Available = true
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(it).Error; err != nil {
			return err
		}
		rows := make([]models.ItemImage, 0, len(images))
		for _, u := range images {
			if u = strings.TrimSpace(u); u != "" {
				rows = append(rows, models.ItemImage{ItemID: it.ID, ImageURL: u})
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, classify("create item", err)
	}
	view := &ItemView{Item: *it, Images: make([]string, 0, len(images))}
	for _, u := range images {
		if u = strings.TrimSpace(u); u != "" {
			view.Images = append(view.Images, u)
		}
	}
	return view, nil
}

func (r *Repo) GetItem(ctx context.Context, id uint) (*ItemView, error) {
	var it models.Item
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, classify("get item", err)
	}
	imgs, err := r.GetImages(ctx, []uint{id})
	if err != nil {
		return nil, err
	}
	return &ItemView{Item: it, Images: orEmpty(imgs[id])}, nil
}

// GetItems 一次查询按 id 批量取物品
func (r *Repo) GetItems(ctx context.Context, ids []uint) (map[uint]models.Item, error) {
	out := make(map[uint]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Item
	if err := r.DB.WithContext(ctx).Where("id IN ?", uniqueIDs(ids)).Find(&items).Error; err != nil {
		return nil, classify("get items", err)
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// GetImages 一次查询取多件物品的图片，避免 N+1
func (r *Repo) GetImages(ctx context.Context, ids []uint) (map[uint][]string, error) {
	out := make(map[uint][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ItemImage
	if err := r.DB.WithContext(ctx).
		Where("item_id IN ?", uniqueIDs(ids)).
		Order("item_id, id").
		Find(&rows).Error; err != nil {
		return nil, classify("get images", err)
	}
	for _, row := range rows {
		out[row.ItemID] = append(out[row.ItemID], row.ImageURL)
	}
	return out, nil
}

func (r *Repo) ListItems(ctx context.Context, q ItemsQuery) ([]ItemView, error) {
	tx := r.DB.WithContext(ctx).Model(&models.Item{})
	switch q.Status {
	case ItemStatusAvailable, "":
		tx = tx.Where("available = ?", true)
	case ItemStatusOnLoan:
		tx = tx.Where("available = ?", false)
	case ItemStatusAll:
	default:
		return nil, fmt.Errorf("unknown item status %q", q.Status)
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		tx = tx.Where("category = ?", c)
	}
	if q.OwnerID != 0 {
		tx = tx.Where("owner_id = ?", q.OwnerID)
	}

	var items []models.Item
	if err := tx.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, classify("list items", err)
	}
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	imgs, err := r.GetImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = ItemView{Item: it, Images: orEmpty(imgs[it.ID])}
	}
	return out, nil
}

// UpdateItem 只有主人能改；available 不在可写字段里
func (r *Repo) UpdateItem(ctx context.Context, id, ownerID uint, in ItemUpdate) (*ItemView, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, err := lockItem(tx, id)
		if err != nil {
			return err
		}
		if it.OwnerID != ownerID {
			return ErrUnauthorized
		}
		return tx.Model(&models.Item{ID: id}).
			Select("name", "description", "category", "price", "updated_at").
			Updates(models.Item{
				Name:        in.Name,
				Description: in.Description,
				Category:    in.Category,
				Price:       in.Price,
				UpdatedAt:   r.Now(),
			}).Error
	})
	if err != nil {
		return nil, classify("update item", err)
	}
	return r.GetItem(ctx, id)
}

// DeleteItem 借出中的物品不能删；借用记录保留
func (r *Repo) DeleteItem(ctx context.Context, id, ownerID uint) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, err := lockItem(tx, id)
		if err != nil {
			return err
		}
		if it.OwnerID != ownerID {
			return ErrUnauthorized
		}
		if !it.Available {
			return ErrItemOnLoan
		}
		if err := tx.Where("item_id = ?", id).Delete(&models.ItemImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Item{}, id).Error
	})
	return classify("delete item", err)
}

// lockItem SELECT ... FOR UPDATE 锁住单行物品
func lockItem(tx *gorm.DB, id uint) (*models.Item, error) {
	var it models.Item
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// setAvailability 条件更新（CAS）：只有当前值为 from 时才改成 to
func setAvailability(tx *gorm.DB, itemID uint, from, to bool, now func() time.Time) (bool, error) {
	res := tx.Model(&models.Item{}).
		Where("id = ? AND available = ?", itemID, from).
		Updates(map[string]any{"available": to, "updated_at": now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

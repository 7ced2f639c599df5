// db/repo_borrow.go
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"borrowbuddy/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BorrowHistoryRow 借用记录 + 物品信息 + 图片
type BorrowHistoryRow struct {
	models.Borrow
	ItemName    string   `json:"item_name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
}

// RentedOutRow 主人视角：借出中的物品 + 当前借用人
type RentedOutRow struct {
	ItemID       uint       `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Available    bool       `json:"available"`
	BorrowID     uint       `json:"borrow_id"`
	BorrowerID   uint       `json:"borrower_id"`
	BorrowerName string     `json:"borrower_name"`
	BorrowedAt   time.Time  `json:"borrowed_at"`
	ReturnedAt   *time.Time `json:"returned_at"`
	Images       []string   `json:"images" gorm:"-"`
}

// 借出：原子操作 = 锁住 item → 占用 available → 新建 borrow
func (r *Repo) CreateBorrow(ctx context.Context, itemID, borrowerID uint) (*models.Borrow, error) {
	var b *models.Borrow
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁住该物品
		it, err := lockItem(tx, itemID)
		if err != nil {
			return err
		}
		// 2) 已借出则拒绝
		if !it.Available {
			return ErrAlreadyBorrowed
		}
		// 3) 先占位：UPDATE ... WHERE available = true
		ok, err := setAvailability(tx, it.ID, true, false, r.Now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyBorrowed
		}
		// 4) 新建 borrow，部分唯一索引兜底
		nb := &models.Borrow{
			ItemID:     it.ID,
			BorrowerID: borrowerID,
			OwnerID:    it.OwnerID,
			BorrowedAt: r.now(),
		}
		if err := tx.Create(nb).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyBorrowed
			}
			return err
		}
		b = nb
		return nil
	})
	if err != nil {
		return nil, classify("create borrow", err)
	}
	return b, nil
}

// 归还：原子操作 = 关闭 borrow → 释放 available
// 记录不存在、不属于 requester、已归还，一律 ErrNotFound
func (r *Repo) ReturnBorrow(ctx context.Context, borrowID, requesterID uint) (*models.Borrow, error) {
	// 先取 item_id，锁顺序与借出一致：item → borrow
	var probe models.Borrow
	if err := r.DB.WithContext(ctx).
		Select("id", "item_id", "borrower_id", "returned_at").
		First(&probe, "id = ?", borrowID).Error; err != nil {
		return nil, classify("return borrow", err)
	}
	if probe.BorrowerID != requesterID || probe.ReturnedAt != nil {
		return nil, ErrNotFound
	}

	var b models.Borrow
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockItem(tx, probe.ItemID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND borrower_id = ? AND returned_at IS NULL", borrowID, requesterID).
			First(&b).Error; err != nil {
			return err
		}

		now := r.now()
		res := tx.Model(&models.Borrow{}).
			Where("id = ? AND returned_at IS NULL", b.ID).
			Update("returned_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		b.ReturnedAt = &now

		ok, err := setAvailability(tx, b.ItemID, false, true, r.Now)
		if err != nil {
			return err
		}
		if !ok {
			// open borrow 存在时 available 必为 false，走到这里说明数据已漂移
			return &StoreError{Op: "return borrow", Err: fmt.Errorf("item %d marked available while borrow %d open", b.ItemID, b.ID)}
		}
		return nil
	})
	if err != nil {
		return nil, classify("return borrow", err)
	}
	return &b, nil
}

// ListBorrowHistory 按 borrowed_at 倒序；物品与图片各一次批量查询，并发取回
func (r *Repo) ListBorrowHistory(ctx context.Context, userID uint) ([]BorrowHistoryRow, error) {
	var bs []models.Borrow
	if err := r.DB.WithContext(ctx).
		Where("borrower_id = ?", userID).
		Order("borrowed_at DESC, id DESC").
		Find(&bs).Error; err != nil {
		return nil, classify("list borrow history", err)
	}
	out := make([]BorrowHistoryRow, 0, len(bs))
	if len(bs) == 0 {
		return out, nil
	}

	ids := make([]uint, len(bs))
	for i, b := range bs {
		ids[i] = b.ItemID
	}
	var (
		items map[uint]models.Item
		imgs  map[uint][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = r.GetItems(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		imgs, err = r.GetImages(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, b := range bs {
		row := BorrowHistoryRow{Borrow: b, Images: orEmpty(imgs[b.ItemID])}
		if it, ok := items[b.ItemID]; ok {
			row.ItemName = it.Name
			row.Description = it.Description
			row.Category = it.Category
		}
		out = append(out, row)
	}
	return out, nil
}

// ListRentedOut 主人名下借出中的物品，连同 open borrow 与借用人
func (r *Repo) ListRentedOut(ctx context.Context, ownerID uint) ([]RentedOutRow, error) {
	var rows []RentedOutRow
	if err := r.DB.WithContext(ctx).
		Table(models.ItemTable+" i").
		Select(`
			i.id AS item_id, i.name, i.description, i.category, i.available,
			b.id          AS borrow_id,
			b.borrower_id,
			u.username    AS borrower_name,
			b.borrowed_at,
			b.returned_at
		`).
		Joins("JOIN "+models.BorrowTable+" b ON b.item_id = i.id AND b.returned_at IS NULL").
		Joins("JOIN "+models.UserTable+" u ON u.id = b.borrower_id").
		Where("i.owner_id = ? AND i.available = ?", ownerID, false).
		Order("b.borrowed_at DESC, b.id DESC").
		Scan(&rows).Error; err != nil {
		return nil, classify("list rented out", err)
	}
	if len(rows) == 0 {
		return []RentedOutRow{}, nil
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ItemID
	}
	imgs, err := r.GetImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Images = orEmpty(imgs[rows[i].ItemID])
	}
	return rows, nil
}

// AuditAvailability 返回 available 与 open borrow 不一致的物品 id（正常应为空）
func (r *Repo) AuditAvailability(ctx context.Context) ([]uint, error) {
	var ids []uint
	open := fmt.Sprintf("EXISTS (SELECT 1 FROM %s b WHERE b.item_id = i.id AND b.returned_at IS NULL)", models.BorrowTable)
	if err := r.DB.WithContext(ctx).
		Table(models.ItemTable+" i").
		Where("(i.available = ? AND "+open+") OR (i.available = ? AND NOT "+open+")", true, false).
		Order("i.id").
		Pluck("i.id", &ids).Error; err != nil {
		return nil, classify("audit availability", err)
	}
	return ids, nil
}

// postgres 只保留到微秒，先截断，返回值与落库一致
func (r *Repo) now() time.Time { return r.Now().Truncate(time.Microsecond) }

// controllers/item_controller.go
package controllers

import (
	"net/http"
	"strings"

	"borrowbuddy/app"
	"borrowbuddy/db"
	"borrowbuddy/models"

	"github.com/gin-gonic/gin"
)

type ItemController struct{ *Srv }

func NewItemController(s *Srv) *ItemController { return &ItemController{Srv: s} }

type itemInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
}

// POST /api/items
func (ic *ItemController) CreateItem(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var in itemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(c, "name is required")
		return
	}
	if in.Price < 0 {
		badRequest(c, "price must not be negative")
		return
	}

	it, err := ic.Repo.CreateItem(c.Request.Context(), &models.Item{
		OwnerID:     uid,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
	}, in.Images)
	if err != nil {
		writeError(c, "create item", err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"success": true, "itemId": it.ID, "item": it})
}

// GET /api/items?status=available|on_loan|all&category=
func (ic *ItemController) ListItems(c *gin.Context) {
	st, err := db.ParseItemStatus(c.Query("status"))
	if err != nil {
		badRequest(c, "status must be one of available, on_loan, all")
		return
	}
	ic.list(c, db.ItemsQuery{Status: st, Category: c.Query("category")})
}

// GET /api/items/category/:category 只列可借的
func (ic *ItemController) ListByCategory(c *gin.Context) {
	ic.list(c, db.ItemsQuery{Status: db.ItemStatusAvailable, Category: c.Param("category")})
}

// GET /api/items/listed 我发布的全部物品
func (ic *ItemController) ListListed(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	ic.list(c, db.ItemsQuery{Status: db.ItemStatusAll, OwnerID: uid})
}

func (ic *ItemController) list(c *gin.Context, q db.ItemsQuery) {
	items, err := ic.Repo.ListItems(c.Request.Context(), q)
	if err != nil {
		writeError(c, "list items", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/items/rented 我借出去、尚未归还的
func (ic *ItemController) ListRented(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	rows, err := ic.Repo.ListRentedOut(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "list rented out", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GET /api/items/:id
func (ic *ItemController) GetItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, "invalid item id")
		return
	}
	it, err := ic.Repo.GetItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, "get item", err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// PUT /api/items/:id 只有主人能改；available 不接受客户端写入
func (ic *ItemController) UpdateItem(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, "invalid item id")
		return
	}
	var in itemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		badRequest(c, "name is required")
		return
	}
	if in.Price < 0 {
		badRequest(c, "price must not be negative")
		return
	}

	it, err := ic.Repo.UpdateItem(c.Request.Context(), id, uid, db.ItemUpdate{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
	})
	if err != nil {
		writeError(c, "update item", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"success": true, "updatedItem": it})
}

// DELETE /api/items/:id
func (ic *ItemController) DeleteItem(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, "invalid item id")
		return
	}
	if err := ic.Repo.DeleteItem(c.Request.Context(), id, uid); err != nil {
		writeError(c, "delete item", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"success": true, "message": "Item deleted successfully"})
}

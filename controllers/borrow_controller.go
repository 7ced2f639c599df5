// controllers/borrow_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type BorrowController struct{ *Srv }

func NewBorrowController(s *Srv) *BorrowController { return &BorrowController{Srv: s} }

// POST /api/borrow {"item_id": 5}
func (bc *BorrowController) Borrow(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var in struct {
		ItemID uint `json:"item_id"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if in.ItemID == 0 {
		badRequest(c, "item_id is required")
		return
	}

	b, err := bc.Repo.CreateBorrow(c.Request.Context(), in.ItemID, uid)
	bc.Metrics.ObserveLedger("borrow", err)
	if err != nil {
		writeError(c, "create borrow", err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GET /api/borrow 我的借用记录，最新的在前
func (bc *BorrowController) History(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	rows, err := bc.Repo.ListBorrowHistory(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "borrow history", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// PATCH /api/borrow/:id/return
// 记录不存在、不是自己的、已归还：统一 404
func (bc *BorrowController) Return(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		badRequest(c, "invalid borrow id")
		return
	}

	b, err := bc.Repo.ReturnBorrow(c.Request.Context(), id, uid)
	bc.Metrics.ObserveLedger("return", err)
	if err != nil {
		writeError(c, "return borrow", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

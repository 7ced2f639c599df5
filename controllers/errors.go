package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"borrowbuddy/app"
	"borrowbuddy/db"

	"github.com/gin-gonic/gin"
)

// writeError 把 db 的错误分类映射成状态码；内部细节只进日志
func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, app.H{"error": "not found"})
	case errors.Is(err, db.ErrAlreadyBorrowed):
		c.JSON(http.StatusConflict, app.H{"error": "item is already borrowed"})
	case errors.Is(err, db.ErrItemOnLoan):
		c.JSON(http.StatusConflict, app.H{"error": "item is currently on loan"})
	case errors.Is(err, db.ErrEmailTaken):
		c.JSON(http.StatusConflict, app.H{"error": "email already registered"})
	case errors.Is(err, db.ErrConflict):
		c.JSON(http.StatusConflict, app.H{"error": "conflict, please retry"})
	case errors.Is(err, db.ErrUnauthorized):
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
	default:
		slog.Error(op, "err", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, app.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg})
}

// callerID 已过 AuthRequired 的路由才调用
func callerID(c *gin.Context) (uint, bool) {
	uid, ok := app.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
	}
	return uid, ok
}

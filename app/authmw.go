package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"borrowbuddy/auth"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "userID"

// IdentityProvider turns a request credential into a user id.
type IdentityProvider interface {
	VerifyCaller(ctx context.Context, credential string) (uint, error)
}

func AuthRequired(id IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := id.VerifyCaller(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
				return
			}
			// redis 不可用等
			slog.Error("verify caller", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, H{"error": "service unavailable"})
			return
		}
		// 把 userID 放进上下文，后续 handler 可用
		c.Set(ctxUserID, uid)
		c.Next()
	}
}

// UserID 取 AuthRequired 放进来的用户 id
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	uid, ok := v.(uint)
	return uid, ok && uid != 0
}

// app/seenmw.go
package app

import (
	"fmt"
	"log/slog"
	"time"

	"borrowbuddy/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen 节流更新 last_seen_at：每个用户每个 throttle 窗口最多写一次库
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("user:lastseen:%d", uid)
		if ok, _ := rdb.SetNX(ctx, key, "1", throttle).Result(); ok {
			if err := repo.TouchUserSeen(ctx, uid); err != nil { // 不阻塞请求
				slog.Debug("touch last seen", "user_id", uid, "err", err)
			}
		}
		c.Next()
	}
}

package routes

import (
	"context"
	"net/http"
	"time"

	"borrowbuddy/app"
	"borrowbuddy/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	authCtl := controllers.NewAuthController(s)
	itemCtl := controllers.NewItemController(s)
	borrowCtl := controllers.NewBorrowController(s)

	// 复用的中间件
	authMW := app.AuthRequired(a.Identity)
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, 5*time.Minute)

	// Health：DB 不通返回 503
	r.GET("/healthz", func(c *app.Ctx) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.Repo.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, app.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, app.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	// ------------------------------
	// 账号：密码注册/登录
	// ------------------------------
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", authCtl.Register)
		authGroup.POST("/login", authCtl.Login)
	}
	authPriv := authGroup.Group("", authMW, seenMW)
	{
		authPriv.GET("/user", authCtl.CurrentUser)
		authPriv.POST("/logout", authCtl.Logout) // ?all=true
	}

	// ------------------------------
	// WebAuthn 登录（公开）
	// ------------------------------
	wa := r.Group("/webauthn")
	{
		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	// 已登录用户添加新凭据（绑定手机等）
	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// 物品
	// ------------------------------
	items := r.Group("/api/items")
	{
		items.GET("", itemCtl.ListItems) // ?status=available|on_loan|all&category=
		items.GET("/category/:category", itemCtl.ListByCategory)
		items.GET("/:id", itemCtl.GetItem)
	}
	itemsPriv := items.Group("", authMW, seenMW)
	{
		itemsPriv.POST("", itemCtl.CreateItem)
		itemsPriv.GET("/listed", itemCtl.ListListed)
		itemsPriv.GET("/rented", itemCtl.ListRented)
		itemsPriv.PUT("/:id", itemCtl.UpdateItem)
		itemsPriv.DELETE("/:id", itemCtl.DeleteItem)
	}

	// ------------------------------
	// 借还
	// ------------------------------
	borrow := r.Group("/api/borrow", authMW, seenMW)
	{
		borrow.POST("", borrowCtl.Borrow)
		borrow.GET("", borrowCtl.History)
		borrow.PATCH("/:id/return", borrowCtl.Return)
	}
}

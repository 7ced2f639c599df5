package controllers

import (
	"errors"
	"net/http"

	"borrowbuddy/app"
	"borrowbuddy/auth"

	"github.com/gin-gonic/gin"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := ac.Passwords.Register(c.Request.Context(), in.Username, in.Email, in.Password)
	switch {
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, auth.ErrMissingFields):
		badRequest(c, err.Error())
		return
	case err != nil:
		writeError(c, "register", err)
		return
	}

	token, err := ac.issueToken(c.Request.Context(), u.ID)
	if err != nil {
		writeError(c, "issue token", err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"message": "User registered successfully", "token": token})
}

// POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	u, err := ac.Passwords.Authenticate(c.Request.Context(), in.Email, in.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, app.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		writeError(c, "login", err)
		return
	}
	token, err := ac.issueToken(c.Request.Context(), u.ID)
	if err != nil {
		writeError(c, "issue token", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Login successful", "token": token})
}

// GET /api/auth/user
func (ac *AuthController) CurrentUser(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	u, err := ac.Repo.FindUserByID(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "current user", err)
		return
	}
	n, _ := ac.Repo.CountCredentials(c.Request.Context(), uid)
	c.JSON(http.StatusOK, app.H{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"passkeys":    n,
		"login_count": u.LoginCount,
	})
}

// POST /api/auth/logout?all=true 撤销全部设备
func (ac *AuthController) Logout(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var err error
	if c.Query("all") == "true" {
		err = ac.Identity.RevokeAll(c.Request.Context(), uid)
	} else {
		err = ac.Identity.Revoke(c.Request.Context(), c.GetHeader("Authorization"))
	}
	if err != nil {
		writeError(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

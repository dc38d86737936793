package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"growrack/auth"
	"growrack/internal/web/middleware"
	webmodels "growrack/internal/web/models"
)

// RegisterAuthRoutes wires login, registration, and logout.
func RegisterAuthRoutes(router *gin.Engine, svc *auth.Service) {
	r := router.Group("/auth")
	{
		r.POST("/register", func(c *gin.Context) {
			var req webmodels.RegisterRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			user, token, err := svc.Register(c.Request.Context(), req.Username, req.Password, req.Email)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, webmodels.TokenResponse{Token: token, User: user})
		})

		r.POST("/login", func(c *gin.Context) {
			var req webmodels.LoginRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			user, token, err := svc.Login(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, webmodels.TokenResponse{Token: token, User: user})
		})

		r.POST("/logout", func(c *gin.Context) {
			token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
			if err := svc.Logout(c.Request.Context(), token); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

// RegisterUserRoutes wires the account endpoints.
func RegisterUserRoutes(router *gin.Engine, m *middleware.Manager, svc *auth.Service, users auth.UserStore) {
	r := router.Group("/users")
	r.Use(m.RequireAuth())
	{
		r.GET("/me", func(c *gin.Context) {
			user, err := users.GetUserByID(c.Request.Context(), middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, user)
		})

		r.POST("/me/password", func(c *gin.Context) {
			var req webmodels.ChangePasswordRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			if err := svc.ChangePassword(c.Request.Context(), middleware.UserID(c), req.OldPassword, req.NewPassword); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

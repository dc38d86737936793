package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"growrack/internal/db"
	"growrack/internal/web/middleware"
)

// RegisterNotificationRoutes wires the notification feed.
func RegisterNotificationRoutes(router *gin.Engine, m *middleware.Manager, database *db.DB) {
	r := router.Group("/notifications")
	r.Use(m.RequireAuth())
	{
		r.GET("", func(c *gin.Context) {
			unreadOnly := c.Query("unread") == "true"
			notifications, err := database.ListNotificationsByOwner(
				c.Request.Context(), middleware.UserID(c), unreadOnly, queryInt(c, "limit", 50))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, notifications)
		})

		r.POST("/:id/read", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			if err := database.MarkNotificationRead(c.Request.Context(), id, middleware.UserID(c)); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

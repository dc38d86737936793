package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"growrack/internal/apperr"
	"growrack/internal/db"
	"growrack/internal/models"
	"growrack/internal/web/middleware"
	webmodels "growrack/internal/web/models"
)

// ownedPlant resolves a plant and enforces ownership through its rack.
func ownedPlant(ctx context.Context, database *db.DB, plantID, userID int64) (*models.Plant, error) {
	plant, err := database.GetPlantByID(ctx, plantID)
	if err != nil {
		return nil, err
	}
	rack, err := database.GetRackByID(ctx, plant.RackID)
	if err != nil {
		return nil, err
	}
	if rack.OwnerID != userID {
		return nil, apperr.New(apperr.KindForbidden, "plant belongs to another user")
	}
	return plant, nil
}

// RegisterPlantRoutes wires plant management under racks.
func RegisterPlantRoutes(router *gin.Engine, m *middleware.Manager, database *db.DB) {
	racks := router.Group("/racks")
	racks.Use(m.RequireAuth())
	{
		racks.GET("/:id/plants", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			plants, err := database.ListPlantsByRack(c.Request.Context(), rack.ID)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, plants)
		})

		racks.POST("/:id/plants", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			var req webmodels.CreatePlantRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			plant := &models.Plant{
				RackID:  rack.ID,
				Name:    req.Name,
				Species: req.Species,
			}
			if err := database.CreatePlant(c.Request.Context(), plant); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, plant)
		})
	}

	plants := router.Group("/plants")
	plants.Use(m.RequireAuth())
	{
		plants.GET("/:id", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			plant, err := ownedPlant(c.Request.Context(), database, id, middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, plant)
		})

		plants.DELETE("/:id", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			plant, err := ownedPlant(c.Request.Context(), database, id, middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}

			if err := database.DeletePlant(c.Request.Context(), plant.ID); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

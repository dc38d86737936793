package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"growrack/internal/apperr"
	"growrack/internal/cache"
	"growrack/internal/db"
	"growrack/internal/ingest"
	"growrack/internal/message"
	"growrack/internal/models"
	"growrack/internal/web/middleware"
	webmodels "growrack/internal/web/models"
)

const (
	defaultWindowHours = 24
	maxWindowReadings  = 1000
)

// ownedRack loads the rack from the :id parameter and enforces
// ownership. On failure the response is already written.
func ownedRack(c *gin.Context, database *db.DB) (*models.Rack, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	rack, err := database.GetRackByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if rack.OwnerID != middleware.UserID(c) {
		respondError(c, apperr.New(apperr.KindForbidden, "rack belongs to another user"))
		return nil, false
	}
	return rack, true
}

// RegisterRackRoutes wires rack management, telemetry reads, and the
// manual reading refresh.
func RegisterRackRoutes(router *gin.Engine, m *middleware.Manager, database *db.DB, live *cache.Cache, pub CommandPublisher) {
	r := router.Group("/racks")
	r.Use(m.RequireAuth())
	{
		r.GET("", func(c *gin.Context) {
			racks, err := database.ListRacksByOwner(c.Request.Context(), middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, racks)
		})

		r.POST("", func(c *gin.Context) {
			var req webmodels.CreateRackRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			addr, err := message.NormalizeHardwareAddr(req.HardwareAddr)
			if err != nil {
				respondError(c, err)
				return
			}

			rack := &models.Rack{
				HardwareAddr: addr,
				Name:         req.Name,
				Status:       models.StatusOffline,
				OwnerID:      middleware.UserID(c),
			}
			if err := database.CreateRack(c.Request.Context(), rack); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, rack)
		})

		r.GET("/:id", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, rack)
		})

		r.PATCH("/:id", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			var req webmodels.UpdateRackRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			if err := database.UpdateRackName(c.Request.Context(), rack.ID, req.Name); err != nil {
				respondError(c, err)
				return
			}
			rack.Name = req.Name
			c.JSON(http.StatusOK, rack)
		})

		r.DELETE("/:id", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			if err := database.DeleteRack(c.Request.Context(), rack.ID); err != nil {
				respondError(c, err)
				return
			}
			if err := live.InvalidateLiveState(c.Request.Context(), rack.HardwareAddr); err != nil {
				log.Warn().Str("hardware_addr", rack.HardwareAddr).Err(err).Msg("could not drop live state")
			}
			c.Status(http.StatusNoContent)
		})

		r.PUT("/:id/plant", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			var req webmodels.SetActivePlantRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			if req.PlantID != nil {
				plant, err := database.GetPlantByID(c.Request.Context(), *req.PlantID)
				if err != nil {
					respondError(c, err)
					return
				}
				if plant.RackID != rack.ID {
					respondError(c, apperr.New(apperr.KindBadRequest, "plant belongs to another rack"))
					return
				}
			}

			if err := database.SetRackActivePlant(c.Request.Context(), rack.ID, req.PlantID); err != nil {
				respondError(c, err)
				return
			}
			rack.ActivePlantID = req.PlantID
			c.JSON(http.StatusOK, rack)
		})

		r.GET("/:id/live", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			state, err := live.GetLiveState(c.Request.Context(), rack.HardwareAddr)
			if err != nil {
				respondError(c, err)
				return
			}
			if state == nil {
				// Cache miss, rebuild the snapshot from the store.
				state = &cache.LiveState{RackID: rack.ID, Status: rack.Status}
				if rack.LastSeenAt != nil {
					state.UpdatedAt = *rack.LastSeenAt
				}
				reading, err := database.LatestReading(c.Request.Context(), rack.ID)
				if err != nil && !apperr.Is(err, apperr.KindNotFound) {
					respondError(c, err)
					return
				}
				state.Reading = reading
			}
			c.JSON(http.StatusOK, state)
		})

		r.GET("/:id/readings", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			from, to := readingWindow(c)
			limit := queryInt(c, "limit", maxWindowReadings)
			if limit > maxWindowReadings {
				limit = maxWindowReadings
			}

			readings, err := database.ReadingsInWindow(c.Request.Context(), rack.ID, from, to, limit)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, readings)
		})

		r.GET("/:id/readings/latest", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			reading, err := database.LatestReading(c.Request.Context(), rack.ID)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, reading)
		})

		r.GET("/:id/readings/stats", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			from, to := readingWindow(c)
			readings, err := database.ReadingsInWindow(c.Request.Context(), rack.ID, from, to, maxWindowReadings)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, ingest.BuildWindowStats(readings, from, to))
		})

		r.POST("/:id/readings/refresh", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			topic := message.CommandTopic(pub.Namespace(), rack.HardwareAddr, message.CommandSensors)
			cmd := message.SensorsCommand{Action: message.SensorsReadAction}
			if err := pub.Publish(c.Request.Context(), topic, cmd); err != nil {
				respondError(c, apperr.Wrap(apperr.KindUnavailable, "device link unavailable", err))
				return
			}

			activity := models.Activity{
				RackID: rack.ID,
				Type:   models.ActivityReadingRequested,
				Detail: "manual reading requested",
			}
			if err := database.InsertActivity(c.Request.Context(), &activity); err != nil {
				log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not record refresh activity")
			}
			c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
		})

		r.GET("/:id/activities", func(c *gin.Context) {
			rack, ok := ownedRack(c, database)
			if !ok {
				return
			}

			activities, err := database.ListActivitiesByRack(c.Request.Context(), rack.ID, queryInt(c, "limit", 50))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, activities)
		})
	}
}

// readingWindow resolves the requested time window, defaulting to the
// trailing 24 hours.
func readingWindow(c *gin.Context) (time.Time, time.Time) {
	hours := queryInt(c, "hours", defaultWindowHours)
	to := time.Now().UTC()
	return to.Add(-time.Duration(hours) * time.Hour), to
}

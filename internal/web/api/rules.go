package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"growrack/internal/automation"
	"growrack/internal/db"
	"growrack/internal/models"
	"growrack/internal/web/middleware"
	webmodels "growrack/internal/web/models"
)

// ownedRule resolves a rule and enforces ownership through its plant's
// rack.
func ownedRule(ctx context.Context, database *db.DB, ruleID, userID int64) (*models.Rule, error) {
	rule, err := database.GetRuleByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if _, err := ownedPlant(ctx, database, rule.PlantID, userID); err != nil {
		return nil, err
	}
	return rule, nil
}

// RegisterRuleRoutes wires automation rule CRUD.
func RegisterRuleRoutes(router *gin.Engine, m *middleware.Manager, database *db.DB) {
	plants := router.Group("/plants")
	plants.Use(m.RequireAuth())
	{
		plants.GET("/:id/rules", func(c *gin.Context) {
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

			rules, err := database.ListRulesByPlant(c.Request.Context(), plant.ID)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, rules)
		})

		plants.POST("/:id/rules", func(c *gin.Context) {
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

			var req webmodels.RuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			rule := ruleFromRequest(&req, plant.ID)
			if err := automation.ValidateRule(rule); err != nil {
				respondError(c, err)
				return
			}

			if err := database.CreateRule(c.Request.Context(), rule); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, rule)
		})
	}

	rules := router.Group("/rules")
	rules.Use(m.RequireAuth())
	{
		rules.GET("/:id", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			rule, err := ownedRule(c.Request.Context(), database, id, middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, rule)
		})

		rules.PUT("/:id", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			existing, err := ownedRule(c.Request.Context(), database, id, middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}

			var req webmodels.RuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			rule := ruleFromRequest(&req, existing.PlantID)
			rule.ID = existing.ID
			if err := automation.ValidateRule(rule); err != nil {
				respondError(c, err)
				return
			}

			// Trigger state survives edits; only the definition changes.
			if err := database.UpdateRule(c.Request.Context(), rule); err != nil {
				respondError(c, err)
				return
			}
			rule.LastTriggeredAt = existing.LastTriggeredAt
			rule.TriggerCount = existing.TriggerCount
			rule.CreatedAt = existing.CreatedAt
			c.JSON(http.StatusOK, rule)
		})

		rules.PATCH("/:id/enabled", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			rule, err := ownedRule(c.Request.Context(), database, id, middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}

			var req webmodels.SetRuleEnabledRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}

			if err := database.SetRuleEnabled(c.Request.Context(), rule.ID, *req.Enabled); err != nil {
				respondError(c, err)
				return
			}
			rule.Enabled = *req.Enabled
			c.JSON(http.StatusOK, rule)
		})

		rules.DELETE("/:id", func(c *gin.Context) {
			id, err := pathID(c, "id")
			if err != nil {
				respondError(c, err)
				return
			}

			rule, err := ownedRule(c.Request.Context(), database, id, middleware.UserID(c))
			if err != nil {
				respondError(c, err)
				return
			}

			if err := database.DeleteRule(c.Request.Context(), rule.ID); err != nil {
				respondError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}

func ruleFromRequest(req *webmodels.RuleRequest, plantID int64) *models.Rule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &models.Rule{
		PlantID:         plantID,
		Name:            req.Name,
		Conditions:      req.Conditions,
		Actions:         req.Actions,
		CooldownMinutes: req.CooldownMinutes,
		Enabled:         enabled,
	}
}

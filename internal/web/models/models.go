// Package models holds the request and response shapes of the web API.
package models

import (
	"growrack/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Email    string `json:"email" binding:"required,email"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type CreateRackRequest struct {
	HardwareAddr string `json:"hardware_addr" binding:"required"`
	Name         string `json:"name" binding:"required,max=64"`
}

type UpdateRackRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

// SetActivePlantRequest clears the active plant when plant_id is null.
type SetActivePlantRequest struct {
	PlantID *int64 `json:"plant_id"`
}

type CreatePlantRequest struct {
	Name    string `json:"name" binding:"required,max=64"`
	Species string `json:"species" binding:"max=64"`
}

type RuleRequest struct {
	Name            string             `json:"name" binding:"required,max=64"`
	Conditions      []models.Condition `json:"conditions" binding:"required"`
	Actions         []models.Action    `json:"actions" binding:"required"`
	CooldownMinutes int                `json:"cooldown_minutes"`
	Enabled         *bool              `json:"enabled"`
}

type SetRuleEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

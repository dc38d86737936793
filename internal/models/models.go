// Package models holds the domain types shared across the pipeline.
package models

import "time"

// DeviceStatus is the liveness state of a rack.
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "ONLINE"
	StatusOffline DeviceStatus = "OFFLINE"
	StatusError   DeviceStatus = "ERROR"
)

// Rack is a physical sensor-and-actuator unit identified by its
// hardware address (canonical colon-uppercase form).
type Rack struct {
	ID             int64        `json:"id"`
	HardwareAddr   string       `json:"hardware_addr"`
	Name           string       `json:"name"`
	Status         DeviceStatus `json:"status"`
	LastSeenAt     *time.Time   `json:"last_seen_at"`
	LastActivityAt *time.Time   `json:"last_activity_at"`
	ActivePlantID  *int64       `json:"active_plant_id"`
	OwnerID        int64        `json:"owner_id"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Plant is the subject currently governed by a rack's automation.
type Plant struct {
	ID        int64     `json:"id"`
	RackID    int64     `json:"rack_id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	CreatedAt time.Time `json:"created_at"`
}

// Reading is one immutable measurement tuple owned by a rack.
type Reading struct {
	ID          int64     `json:"id"`
	RackID      int64     `json:"rack_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Moisture    float64   `json:"moisture"`
	Light       float64   `json:"light"`
	MeasuredAt  time.Time `json:"measured_at"`
}

// SensorField names one measured quantity of a reading.
type SensorField string

const (
	FieldTemperature SensorField = "temperature"
	FieldHumidity    SensorField = "humidity"
	FieldMoisture    SensorField = "moisture"
	FieldLight       SensorField = "light"
)

// KnownSensorField reports whether f is a measurable field.
func KnownSensorField(f SensorField) bool {
	switch f {
	case FieldTemperature, FieldHumidity, FieldMoisture, FieldLight:
		return true
	}

	return false
}

// Value returns the reading's value for the given field. The second
// result is false for unknown fields.
func (r Reading) Value(f SensorField) (float64, bool) {
	switch f {
	case FieldTemperature:
		return r.Temperature, true
	case FieldHumidity:
		return r.Humidity, true
	case FieldMoisture:
		return r.Moisture, true
	case FieldLight:
		return r.Light, true
	}

	return 0, false
}

// CompareOp is a threshold comparison in a rule condition.
type CompareOp string

const (
	// OpLessThan holds while the value is strictly below the threshold.
	OpLessThan CompareOp = "lt"
	// OpGreaterThan holds while the value is strictly above the threshold.
	OpGreaterThan CompareOp = "gt"
)

// Condition is a single threshold bound over one sensor field.
type Condition struct {
	Field     SensorField `json:"field"`
	Op        CompareOp   `json:"op"`
	Threshold float64     `json:"threshold"`
}

// ActionType selects the actuator an action drives.
type ActionType string

const (
	ActionWatering  ActionType = "watering"
	ActionGrowLight ActionType = "growLight"
)

// Actuator command verbs.
const (
	WateringStart = "start"
	WateringStop  = "stop"
	LightOn       = "on"
	LightOff      = "off"
)

// Action is one actuator command a rule dispatches when it fires.
// DurationMs applies to watering starts only.
type Action struct {
	Type       ActionType `json:"type"`
	Command    string     `json:"command"`
	DurationMs int        `json:"duration_ms,omitempty"`
}

// Rule pairs a condition set with an action set for one plant.
// The engine mutates only LastTriggeredAt and TriggerCount.
type Rule struct {
	ID              int64       `json:"id"`
	PlantID         int64       `json:"plant_id"`
	Name            string      `json:"name"`
	Conditions      []Condition `json:"conditions"`
	Actions         []Action    `json:"actions"`
	CooldownMinutes int         `json:"cooldown_minutes"`
	Enabled         bool        `json:"enabled"`
	LastTriggeredAt *time.Time  `json:"last_triggered_at"`
	TriggerCount    int64       `json:"trigger_count"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Cooldown returns the rule's cooldown as a duration.
func (r Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// ActivityType tags an audit entry.
type ActivityType string

const (
	ActivityDeviceOnline     ActivityType = "DEVICE_ONLINE"
	ActivityDeviceOffline    ActivityType = "DEVICE_OFFLINE"
	ActivityDeviceError      ActivityType = "DEVICE_ERROR"
	ActivityRuleTriggered    ActivityType = "RULE_TRIGGERED"
	ActivityWateringOn       ActivityType = "WATERING_ON"
	ActivityWateringOff      ActivityType = "WATERING_OFF"
	ActivityLightOn          ActivityType = "LIGHT_ON"
	ActivityLightOff         ActivityType = "LIGHT_OFF"
	ActivityReadingRequested ActivityType = "READING_REQUESTED"
)

// Activity is an append-only audit entry for one rack.
type Activity struct {
	ID        int64          `json:"id"`
	RackID    int64          `json:"rack_id"`
	Type      ActivityType   `json:"type"`
	Detail    string         `json:"detail"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NotificationLevel separates alert pushes from plain warnings.
type NotificationLevel string

const (
	NotifyAlert   NotificationLevel = "alert"
	NotifyWarning NotificationLevel = "warning"
)

// Notification is a persisted user-facing message about one rack.
type Notification struct {
	ID        int64             `json:"id"`
	RackID    int64             `json:"rack_id"`
	Level     NotificationLevel `json:"level"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
}

// User owns racks and authenticates against the web API.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

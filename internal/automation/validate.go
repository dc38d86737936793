package automation

import (
	"fmt"
	"strings"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

// Bounds accepted for rule thresholds, per sensor field.
const (
	minTemperature = -50.0
	maxTemperature = 100.0
	minPercent     = 0.0
	maxPercent     = 100.0

	minWateringMs = 1000
	maxWateringMs = 60000
)

// ValidateRule checks a rule definition at create/update time. Every
// violation is collected and reported in one error.
func ValidateRule(r *models.Rule) error {
	var problems []string

	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if r.CooldownMinutes < 0 {
		problems = append(problems, "cooldown_minutes must not be negative")
	}
	if len(r.Conditions) == 0 {
		problems = append(problems, "at least one condition is required")
	}
	if len(r.Actions) == 0 {
		problems = append(problems, "at least one action is required")
	}

	for i, c := range r.Conditions {
		problems = append(problems, validateCondition(i, c)...)
	}
	for i, a := range r.Actions {
		problems = append(problems, validateAction(i, a)...)
	}

	if len(problems) > 0 {
		return apperr.New(apperr.KindBadRequest, "invalid rule: "+strings.Join(problems, "; "))
	}
	return nil
}

func validateCondition(i int, c models.Condition) []string {
	var problems []string

	if !models.KnownSensorField(c.Field) {
		problems = append(problems, fmt.Sprintf("conditions[%d]: unknown field %q", i, c.Field))
		return problems
	}
	if c.Op != models.OpLessThan && c.Op != models.OpGreaterThan {
		problems = append(problems, fmt.Sprintf("conditions[%d]: op must be %q or %q", i, models.OpLessThan, models.OpGreaterThan))
	}

	switch c.Field {
	case models.FieldMoisture, models.FieldHumidity:
		if c.Threshold < minPercent || c.Threshold > maxPercent {
			problems = append(problems, fmt.Sprintf("conditions[%d]: %s threshold must be within [%.0f, %.0f]", i, c.Field, minPercent, maxPercent))
		}
	case models.FieldTemperature:
		if c.Threshold < minTemperature || c.Threshold > maxTemperature {
			problems = append(problems, fmt.Sprintf("conditions[%d]: temperature threshold must be within [%.0f, %.0f]", i, minTemperature, maxTemperature))
		}
	case models.FieldLight:
		if c.Threshold < 0 {
			problems = append(problems, fmt.Sprintf("conditions[%d]: light threshold must not be negative", i))
		}
	}

	return problems
}

func validateAction(i int, a models.Action) []string {
	var problems []string

	switch a.Type {
	case models.ActionWatering:
		if a.Command != models.WateringStart && a.Command != models.WateringStop {
			problems = append(problems, fmt.Sprintf("actions[%d]: watering command must be %q or %q", i, models.WateringStart, models.WateringStop))
		}
		if a.DurationMs != 0 && (a.DurationMs < minWateringMs || a.DurationMs > maxWateringMs) {
			problems = append(problems, fmt.Sprintf("actions[%d]: watering duration must be within [%d, %d] ms", i, minWateringMs, maxWateringMs))
		}
		if a.Command == models.WateringStop && a.DurationMs != 0 {
			problems = append(problems, fmt.Sprintf("actions[%d]: watering stop takes no duration", i))
		}
	case models.ActionGrowLight:
		if a.Command != models.LightOn && a.Command != models.LightOff {
			problems = append(problems, fmt.Sprintf("actions[%d]: grow light command must be %q or %q", i, models.LightOn, models.LightOff))
		}
	default:
		problems = append(problems, fmt.Sprintf("actions[%d]: unknown action type %q", i, a.Type))
	}

	return problems
}

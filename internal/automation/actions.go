package automation

import (
	"context"
	"fmt"

	"growrack/internal/message"
	"growrack/internal/metrics"
	"growrack/internal/models"
)

// executeActions dispatches every action of a fired rule in order.
// The first publish failure aborts the remaining actions and
// propagates, which keeps the rule's trigger state untouched.
func (e *Engine) executeActions(ctx context.Context, rack *models.Rack, rule *models.Rule) ([]string, error) {
	executed := make([]string, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		descriptor, err := e.executeAction(ctx, rack, rule, action)
		if err != nil {
			metrics.PublishFailures.Inc()
			return executed, err
		}
		executed = append(executed, descriptor)
	}
	return executed, nil
}

func (e *Engine) executeAction(ctx context.Context, rack *models.Rack, rule *models.Rule, action models.Action) (string, error) {
	switch action.Type {
	case models.ActionWatering:
		return e.executeWatering(ctx, rack, rule, action)
	case models.ActionGrowLight:
		return e.executeGrowLight(ctx, rack, rule, action)
	default:
		return "", fmt.Errorf("unknown action type %q in rule %d", action.Type, rule.ID)
	}
}

func (e *Engine) executeWatering(ctx context.Context, rack *models.Rack, rule *models.Rule, action models.Action) (string, error) {
	cmd := message.WateringCommand{Action: action.Command}
	if action.Command == models.WateringStart {
		cmd.DurationMs = action.DurationMs
	}

	topic := message.CommandTopic(e.pub.Namespace(), rack.HardwareAddr, message.CommandWatering)
	if err := e.pub.Publish(ctx, topic, cmd); err != nil {
		return "", fmt.Errorf("watering command: %w", err)
	}
	metrics.CommandsPublished.WithLabelValues(string(message.CommandWatering)).Inc()

	activityType := models.ActivityWateringOff
	detail := fmt.Sprintf("watering stopped by rule %q", rule.Name)
	descriptor := "watering:stop"
	if action.Command == models.WateringStart {
		activityType = models.ActivityWateringOn
		detail = fmt.Sprintf("watering started by rule %q", rule.Name)
		descriptor = fmt.Sprintf("watering:start(%dms)", cmd.DurationMs)
	}

	activity := models.Activity{
		RackID: rack.ID,
		Type:   activityType,
		Detail: detail,
		Metadata: map[string]any{
			"rule_id":     rule.ID,
			"rule_name":   rule.Name,
			"duration_ms": cmd.DurationMs,
		},
	}
	if err := e.store.InsertActivity(ctx, &activity); err != nil {
		// The command is already on the wire; the missing audit row
		// is logged rather than undoing anything.
		e.log.Warn().Int64("rule_id", rule.ID).Err(err).Msg("could not record watering activity")
	}

	return descriptor, nil
}

func (e *Engine) executeGrowLight(ctx context.Context, rack *models.Rack, rule *models.Rule, action models.Action) (string, error) {
	cmd := message.LightingCommand{Action: action.Command}

	topic := message.CommandTopic(e.pub.Namespace(), rack.HardwareAddr, message.CommandLighting)
	if err := e.pub.Publish(ctx, topic, cmd); err != nil {
		return "", fmt.Errorf("lighting command: %w", err)
	}
	metrics.CommandsPublished.WithLabelValues(string(message.CommandLighting)).Inc()

	activityType := models.ActivityLightOff
	detail := fmt.Sprintf("grow light turned off by rule %q", rule.Name)
	if action.Command == models.LightOn {
		activityType = models.ActivityLightOn
		detail = fmt.Sprintf("grow light turned on by rule %q", rule.Name)
	}

	activity := models.Activity{
		RackID: rack.ID,
		Type:   activityType,
		Detail: detail,
		Metadata: map[string]any{
			"rule_id":   rule.ID,
			"rule_name": rule.Name,
		},
	}
	if err := e.store.InsertActivity(ctx, &activity); err != nil {
		e.log.Warn().Int64("rule_id", rule.ID).Err(err).Msg("could not record light activity")
	}

	return "growLight:" + action.Command, nil
}

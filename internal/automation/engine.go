// Package automation evaluates per-plant rules against fresh sensor
// readings and dispatches actuator commands when they fire.
package automation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"growrack/internal/apperr"
	"growrack/internal/logging"
	"growrack/internal/metrics"
	"growrack/internal/models"
)

// RuleStore is the slice of persistence the engine needs.
type RuleStore interface {
	GetActivePlant(ctx context.Context, rackID int64) (*models.Plant, error)
	ListEnabledRulesByPlant(ctx context.Context, plantID int64) ([]models.Rule, error)
	MarkRuleTriggered(ctx context.Context, id int64, at time.Time) error
	InsertActivity(ctx context.Context, a *models.Activity) error
}

// Publisher sends actuator commands to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Namespace() string
}

// Events receives one summary per fired rule.
type Events interface {
	RackAutomation(rackID int64, s ExecutionSummary)
}

// ExecutionSummary describes one completed rule firing.
type ExecutionSummary struct {
	RuleID   int64     `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	RackID   int64     `json:"rack_id"`
	Actions  []string  `json:"actions"`
	At       time.Time `json:"at"`
}

type lockKey struct {
	rackID int64
	ruleID int64
}

// Engine runs rule evaluation. Evaluation for one (rack, rule) pair
// is serialized so an overlapping cycle cannot double-fire a rule
// whose trigger state is still being written.
type Engine struct {
	log    zerolog.Logger
	store  RuleStore
	pub    Publisher
	events Events

	lockMu sync.Mutex
	locks  map[lockKey]*sync.Mutex

	// fired carries trigger times ahead of their persistence so the
	// cooldown gate sees them before the DB write lands.
	firedMu sync.Mutex
	fired   map[lockKey]time.Time

	now func() time.Time
}

// NewEngine wires the rule engine.
func NewEngine(store RuleStore, pub Publisher, events Events) *Engine {
	return &Engine{
		log:    logging.WithComponent("automation"),
		store:  store,
		pub:    pub,
		events: events,
		locks:  make(map[lockKey]*sync.Mutex),
		fired:  make(map[lockKey]time.Time),
		now:    time.Now,
	}
}

// EvaluateRules runs every enabled rule of the rack's active plant
// against the reading. All failures are contained here: evaluation
// never returns an error and never panics into the caller.
func (e *Engine) EvaluateRules(ctx context.Context, rack *models.Rack, reading models.Reading) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RulesEvaluated.WithLabelValues("error").Inc()
			e.log.Error().Int64("rack_id", rack.ID).Interface("panic", rec).Msg("recovered panic in rule evaluation")
		}
	}()

	plant, err := e.store.GetActivePlant(ctx, rack.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			e.log.Debug().Int64("rack_id", rack.ID).Msg("no active plant, nothing to automate")
			return
		}
		e.log.Error().Int64("rack_id", rack.ID).Err(err).Msg("could not resolve active plant")
		return
	}

	rules, err := e.store.ListEnabledRulesByPlant(ctx, plant.ID)
	if err != nil {
		e.log.Error().Int64("plant_id", plant.ID).Err(err).Msg("could not load rules")
		return
	}
	if len(rules) == 0 {
		return
	}

	for i := range rules {
		e.evaluateRule(ctx, rack, &rules[i], reading)
	}
}

// evaluateRule applies the cooldown gate and conditions, then fires.
// Rules are independent: one failing rule does not stop the others.
func (e *Engine) evaluateRule(ctx context.Context, rack *models.Rack, rule *models.Rule, reading models.Reading) {
	key := lockKey{rackID: rack.ID, ruleID: rule.ID}
	unlock := e.lock(key)
	defer unlock()

	now := e.now().UTC()

	if last, ok := e.lastFired(key, rule.LastTriggeredAt); ok && now.Sub(last) < rule.Cooldown() {
		metrics.RulesEvaluated.WithLabelValues("cooldown").Inc()
		e.log.Debug().Int64("rule_id", rule.ID).Time("last_triggered", last).Msg("rule in cooldown, skipping")
		return
	}

	if !conditionsMet(rule.Conditions, reading) {
		metrics.RulesEvaluated.WithLabelValues("not_met").Inc()
		return
	}

	executed, err := e.executeActions(ctx, rack, rule)
	if err != nil {
		// Dispatch failed; the rule did not fire, so the cooldown
		// clock and counter stay untouched for the next cycle.
		metrics.RulesEvaluated.WithLabelValues("error").Inc()
		e.log.Error().
			Int64("rule_id", rule.ID).
			Int64("rack_id", rack.ID).
			Err(err).
			Msg("action dispatch failed, trigger state not updated")
		return
	}

	e.markFired(key, now)
	if err := e.store.MarkRuleTriggered(ctx, rule.ID, now); err != nil {
		e.log.Error().Int64("rule_id", rule.ID).Err(err).Msg("could not persist trigger state")
	}

	activity := models.Activity{
		RackID: rack.ID,
		Type:   models.ActivityRuleTriggered,
		Detail: "rule \"" + rule.Name + "\" fired",
		Metadata: map[string]any{
			"rule_id":    rule.ID,
			"conditions": rule.Conditions,
			"actions":    rule.Actions,
			"reading": map[string]any{
				"temperature": reading.Temperature,
				"humidity":    reading.Humidity,
				"moisture":    reading.Moisture,
				"light":       reading.Light,
				"measured_at": reading.MeasuredAt,
			},
		},
	}
	if err := e.store.InsertActivity(ctx, &activity); err != nil {
		e.log.Error().Int64("rule_id", rule.ID).Err(err).Msg("could not record trigger activity")
	}

	e.events.RackAutomation(rack.ID, ExecutionSummary{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		RackID:   rack.ID,
		Actions:  executed,
		At:       now,
	})

	metrics.RulesEvaluated.WithLabelValues("triggered").Inc()
	e.log.Info().
		Int64("rule_id", rule.ID).
		Int64("rack_id", rack.ID).
		Strs("actions", executed).
		Msg("rule fired")
}

// conditionsMet folds the rule's bounds with logical AND. An empty
// condition list never fires. Bounds are strict: a value equal to
// the threshold does not satisfy either op.
func conditionsMet(conditions []models.Condition, reading models.Reading) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, c := range conditions {
		value, ok := reading.Value(c.Field)
		if !ok {
			return false
		}
		switch c.Op {
		case models.OpLessThan:
			if !(value < c.Threshold) {
				return false
			}
		case models.OpGreaterThan:
			if !(value > c.Threshold) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (e *Engine) lock(key lockKey) func() {
	e.lockMu.Lock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	e.lockMu.Unlock()

	m.Lock()
	return m.Unlock
}

// lastFired merges the persisted trigger time with the in-memory one,
// preferring whichever is later. The in-memory value covers the gap
// between dispatch and the trigger-state write becoming visible.
func (e *Engine) lastFired(key lockKey, persisted *time.Time) (time.Time, bool) {
	e.firedMu.Lock()
	mem, memOK := e.fired[key]
	e.firedMu.Unlock()

	switch {
	case memOK && persisted != nil:
		if mem.After(*persisted) {
			return mem, true
		}
		return *persisted, true
	case memOK:
		return mem, true
	case persisted != nil:
		return *persisted, true
	}
	return time.Time{}, false
}

func (e *Engine) markFired(key lockKey, at time.Time) {
	e.firedMu.Lock()
	e.fired[key] = at
	e.firedMu.Unlock()
}

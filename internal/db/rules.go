package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

// Conditions and actions live in jsonb columns; they are opaque to
// SQL and always read or written whole.

func marshalRuleParts(r *models.Rule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal actions: %w", err)
	}
	return conditions, actions, nil
}

func scanRule(row interface{ Scan(dest ...any) error }) (*models.Rule, error) {
	var (
		r          models.Rule
		conditions []byte
		actions    []byte
	)
	err := row.Scan(&r.ID, &r.PlantID, &r.Name, &conditions, &actions,
		&r.CooldownMinutes, &r.Enabled, &r.LastTriggeredAt, &r.TriggerCount, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions of rule %d: %w", r.ID, err)
	}
	if err := json.Unmarshal(actions, &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions of rule %d: %w", r.ID, err)
	}
	return &r, nil
}

const ruleColumns = "id, plant_id, name, conditions, actions, cooldown_minutes, enabled, last_triggered_at, trigger_count, created_at"

// CreateRule inserts a rule with zeroed trigger state.
func (d *DB) CreateRule(ctx context.Context, r *models.Rule) error {
	conditions, actions, err := marshalRuleParts(r)
	if err != nil {
		return err
	}
	return d.pool.QueryRow(ctx,
		`INSERT INTO rules (plant_id, name, conditions, actions, cooldown_minutes, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		r.PlantID, r.Name, conditions, actions, r.CooldownMinutes, r.Enabled).
		Scan(&r.ID, &r.CreatedAt)
}

// GetRuleByID fetches a rule by primary key.
func (d *DB) GetRuleByID(ctx context.Context, id int64) (*models.Rule, error) {
	row := d.pool.QueryRow(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE id = $1", id)
	r, err := scanRule(row)
	if err != nil {
		return nil, mapNoRows(err, "rule %d not found", id)
	}
	return r, nil
}

// ListRulesByPlant fetches all rules attached to a plant.
func (d *DB) ListRulesByPlant(ctx context.Context, plantID int64) ([]models.Rule, error) {
	return d.queryRules(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE plant_id = $1 ORDER BY id", plantID)
}

// ListEnabledRulesByPlant fetches only the rules the engine should
// evaluate.
func (d *DB) ListEnabledRulesByPlant(ctx context.Context, plantID int64) ([]models.Rule, error) {
	return d.queryRules(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE plant_id = $1 AND enabled ORDER BY id", plantID)
}

func (d *DB) queryRules(ctx context.Context, q string, args ...any) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

// UpdateRule replaces a rule's definition. Trigger state is left
// untouched so editing a rule does not reset its cooldown.
func (d *DB) UpdateRule(ctx context.Context, r *models.Rule) error {
	conditions, actions, err := marshalRuleParts(r)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx,
		`UPDATE rules SET name = $1, conditions = $2, actions = $3, cooldown_minutes = $4, enabled = $5
		 WHERE id = $6`,
		r.Name, conditions, actions, r.CooldownMinutes, r.Enabled, r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "rule %d not found", r.ID)
	}
	return nil
}

// SetRuleEnabled toggles a rule without touching its definition.
func (d *DB) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := d.pool.Exec(ctx, "UPDATE rules SET enabled = $1 WHERE id = $2", enabled, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "rule %d not found", id)
	}
	return nil
}

// DeleteRule removes a rule.
func (d *DB) DeleteRule(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM rules WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "rule %d not found", id)
	}
	return nil
}

// MarkRuleTriggered records a successful firing: stamps the cooldown
// clock and bumps the counter.
func (d *DB) MarkRuleTriggered(ctx context.Context, id int64, at time.Time) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE rules SET last_triggered_at = $1, trigger_count = trigger_count + 1 WHERE id = $2",
		at, id)
	return err
}

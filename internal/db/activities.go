package db

import (
	"context"
	"encoding/json"
	"fmt"

	"growrack/internal/models"
)

// InsertActivity appends one audit entry. Activities are never
// updated or deleted by the application.
func (d *DB) InsertActivity(ctx context.Context, a *models.Activity) error {
	var metadata []byte
	if a.Metadata != nil {
		var err error
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal activity metadata: %w", err)
		}
	}
	return d.pool.QueryRow(ctx,
		`INSERT INTO activities (rack_id, type, detail, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		a.RackID, a.Type, a.Detail, metadata).
		Scan(&a.ID, &a.CreatedAt)
}

// ListActivitiesByRack fetches a rack's newest audit entries.
func (d *DB) ListActivitiesByRack(ctx context.Context, rackID int64, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, rack_id, type, detail, metadata, created_at
		 FROM activities WHERE rack_id = $1
		 ORDER BY created_at DESC LIMIT $2`, rackID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var (
			a        models.Activity
			metadata []byte
		)
		if err := rows.Scan(&a.ID, &a.RackID, &a.Type, &a.Detail, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata of activity %d: %w", a.ID, err)
			}
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

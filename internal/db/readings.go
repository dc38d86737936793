package db

import (
	"context"
	"time"

	"growrack/internal/models"
)

// InsertReading appends one reading. Readings are never updated.
func (d *DB) InsertReading(ctx context.Context, r *models.Reading) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO readings (rack_id, temperature, humidity, moisture, light, measured_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.RackID, r.Temperature, r.Humidity, r.Moisture, r.Light, r.MeasuredAt).
		Scan(&r.ID)
}

// LatestReading fetches a rack's most recent reading.
func (d *DB) LatestReading(ctx context.Context, rackID int64) (*models.Reading, error) {
	var r models.Reading
	err := d.pool.QueryRow(ctx,
		`SELECT id, rack_id, temperature, humidity, moisture, light, measured_at
		 FROM readings WHERE rack_id = $1
		 ORDER BY measured_at DESC LIMIT 1`, rackID).
		Scan(&r.ID, &r.RackID, &r.Temperature, &r.Humidity, &r.Moisture, &r.Light, &r.MeasuredAt)
	if err != nil {
		return nil, mapNoRows(err, "rack %d has no readings", rackID)
	}
	return &r, nil
}

// ReadingsInWindow fetches a rack's readings inside [from, to],
// oldest first. Limit 0 means no limit.
func (d *DB) ReadingsInWindow(ctx context.Context, rackID int64, from, to time.Time, limit int) ([]models.Reading, error) {
	q := `SELECT id, rack_id, temperature, humidity, moisture, light, measured_at
	      FROM readings
	      WHERE rack_id = $1 AND measured_at >= $2 AND measured_at <= $3
	      ORDER BY measured_at`
	args := []any{rackID, from, to}
	if limit > 0 {
		q += " LIMIT $4"
		args = append(args, limit)
	}

	rows, err := d.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.RackID, &r.Temperature, &r.Humidity, &r.Moisture, &r.Light, &r.MeasuredAt); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// PruneReadingsBefore deletes readings older than the cutoff and
// returns how many went away.
func (d *DB) PruneReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.pool.Exec(ctx, "DELETE FROM readings WHERE measured_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package db

import (
	"context"
	"time"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

const rackColumns = "id, hardware_addr, name, status, last_seen_at, last_activity_at, active_plant_id, owner_id, created_at"

func scanRack(row interface{ Scan(dest ...any) error }) (*models.Rack, error) {
	var r models.Rack
	err := row.Scan(&r.ID, &r.HardwareAddr, &r.Name, &r.Status, &r.LastSeenAt,
		&r.LastActivityAt, &r.ActivePlantID, &r.OwnerID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRackByAddr fetches a rack by its canonical hardware address.
func (d *DB) GetRackByAddr(ctx context.Context, hardwareAddr string) (*models.Rack, error) {
	row := d.pool.QueryRow(ctx,
		"SELECT "+rackColumns+" FROM racks WHERE hardware_addr = $1", hardwareAddr)
	r, err := scanRack(row)
	if err != nil {
		return nil, mapNoRows(err, "rack %s not registered", hardwareAddr)
	}
	return r, nil
}

// GetRackByID fetches a rack by primary key.
func (d *DB) GetRackByID(ctx context.Context, id int64) (*models.Rack, error) {
	row := d.pool.QueryRow(ctx,
		"SELECT "+rackColumns+" FROM racks WHERE id = $1", id)
	r, err := scanRack(row)
	if err != nil {
		return nil, mapNoRows(err, "rack %d not found", id)
	}
	return r, nil
}

// ListRacksByOwner fetches all racks owned by one user.
func (d *DB) ListRacksByOwner(ctx context.Context, ownerID int64) ([]models.Rack, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT "+rackColumns+" FROM racks WHERE owner_id = $1 ORDER BY id", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var racks []models.Rack
	for rows.Next() {
		r, err := scanRack(rows)
		if err != nil {
			return nil, err
		}
		racks = append(racks, *r)
	}
	return racks, rows.Err()
}

// CreateRack registers a new rack. The address must already be in
// canonical form. A duplicate address is a conflict.
func (d *DB) CreateRack(ctx context.Context, r *models.Rack) error {
	err := d.pool.QueryRow(ctx,
		`INSERT INTO racks (hardware_addr, name, status, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		r.HardwareAddr, r.Name, r.Status, r.OwnerID).
		Scan(&r.ID, &r.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Newf(apperr.KindConflict, "rack %s already registered", r.HardwareAddr)
	}
	return err
}

// RecordRackSeen marks a rack online and refreshes both liveness
// timestamps in one statement.
func (d *DB) RecordRackSeen(ctx context.Context, id int64, at time.Time) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE racks SET status = $1, last_seen_at = $2, last_activity_at = $2 WHERE id = $3",
		models.StatusOnline, at, id)
	return err
}

// SetRackStatus updates a rack's status and last-seen timestamp.
func (d *DB) SetRackStatus(ctx context.Context, id int64, status models.DeviceStatus, at time.Time) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE racks SET status = $1, last_seen_at = $2 WHERE id = $3",
		status, at, id)
	return err
}

// UpdateRackName renames a rack.
func (d *DB) UpdateRackName(ctx context.Context, id int64, name string) error {
	tag, err := d.pool.Exec(ctx, "UPDATE racks SET name = $1 WHERE id = $2", name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "rack %d not found", id)
	}
	return nil
}

// SetRackActivePlant points a rack at the plant its automation now
// governs. Pass nil to clear.
func (d *DB) SetRackActivePlant(ctx context.Context, id int64, plantID *int64) error {
	tag, err := d.pool.Exec(ctx, "UPDATE racks SET active_plant_id = $1 WHERE id = $2", plantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "rack %d not found", id)
	}
	return nil
}

// DeleteRack removes a rack and, via FK cascade, its readings,
// plants, rules, activities and notifications.
func (d *DB) DeleteRack(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM racks WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "rack %d not found", id)
	}
	return nil
}

// MarkStaleRacksOffline flips every rack that has been silent since
// the cutoff from ONLINE to OFFLINE and returns the racks it flipped.
func (d *DB) MarkStaleRacksOffline(ctx context.Context, cutoff time.Time) ([]models.Rack, error) {
	rows, err := d.pool.Query(ctx,
		`UPDATE racks SET status = $1
		 WHERE status = $2 AND (last_seen_at IS NULL OR last_seen_at < $3)
		 RETURNING `+rackColumns,
		models.StatusOffline, models.StatusOnline, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var racks []models.Rack
	for rows.Next() {
		r, err := scanRack(rows)
		if err != nil {
			return nil, err
		}
		racks = append(racks, *r)
	}
	return racks, rows.Err()
}

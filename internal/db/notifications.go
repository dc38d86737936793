package db

import (
	"context"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

// InsertNotification persists one user-facing message.
func (d *DB) InsertNotification(ctx context.Context, n *models.Notification) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO notifications (rack_id, level, title, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		n.RackID, n.Level, n.Title, n.Message).
		Scan(&n.ID, &n.CreatedAt)
}

// ListNotificationsByOwner fetches the newest notifications across
// all racks a user owns. Unread only when unreadOnly is set.
func (d *DB) ListNotificationsByOwner(ctx context.Context, ownerID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT n.id, n.rack_id, n.level, n.title, n.message, n.created_at, n.read_at
	      FROM notifications n
	      JOIN racks r ON r.id = n.rack_id
	      WHERE r.owner_id = $1`
	if unreadOnly {
		q += " AND n.read_at IS NULL"
	}
	q += " ORDER BY n.created_at DESC LIMIT $2"

	rows, err := d.pool.Query(ctx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RackID, &n.Level, &n.Title, &n.Message, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead stamps a notification as read, scoped to the
// owner's racks. A notification of someone else's rack reads as not
// found. Reading twice keeps the first timestamp.
func (d *DB) MarkNotificationRead(ctx context.Context, id, ownerID int64) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE notifications n SET read_at = NOW()
		 FROM racks r
		 WHERE n.id = $1 AND r.id = n.rack_id AND r.owner_id = $2 AND n.read_at IS NULL`,
		id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or already read; distinguish for the caller.
		var exists bool
		if err := d.pool.QueryRow(ctx,
			`SELECT EXISTS(
			   SELECT 1 FROM notifications n
			   JOIN racks r ON r.id = n.rack_id
			   WHERE n.id = $1 AND r.owner_id = $2)`, id, ownerID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.Newf(apperr.KindNotFound, "notification %d not found", id)
		}
	}
	return nil
}

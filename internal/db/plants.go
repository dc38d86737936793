package db

import (
	"context"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

// CreatePlant adds a plant to a rack.
func (d *DB) CreatePlant(ctx context.Context, p *models.Plant) error {
	return d.pool.QueryRow(ctx,
		`INSERT INTO plants (rack_id, name, species)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		p.RackID, p.Name, p.Species).
		Scan(&p.ID, &p.CreatedAt)
}

// GetPlantByID fetches a plant by primary key.
func (d *DB) GetPlantByID(ctx context.Context, id int64) (*models.Plant, error) {
	var p models.Plant
	err := d.pool.QueryRow(ctx,
		"SELECT id, rack_id, name, species, created_at FROM plants WHERE id = $1", id).
		Scan(&p.ID, &p.RackID, &p.Name, &p.Species, &p.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err, "plant %d not found", id)
	}
	return &p, nil
}

// ListPlantsByRack fetches every plant belonging to a rack.
func (d *DB) ListPlantsByRack(ctx context.Context, rackID int64) ([]models.Plant, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT id, rack_id, name, species, created_at FROM plants WHERE rack_id = $1 ORDER BY id", rackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plants []models.Plant
	for rows.Next() {
		var p models.Plant
		if err := rows.Scan(&p.ID, &p.RackID, &p.Name, &p.Species, &p.CreatedAt); err != nil {
			return nil, err
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

// GetActivePlant resolves the plant a rack's automation currently
// governs. A rack with no active plant yields not-found.
func (d *DB) GetActivePlant(ctx context.Context, rackID int64) (*models.Plant, error) {
	var p models.Plant
	err := d.pool.QueryRow(ctx,
		`SELECT p.id, p.rack_id, p.name, p.species, p.created_at
		 FROM plants p
		 JOIN racks r ON r.active_plant_id = p.id
		 WHERE r.id = $1`, rackID).
		Scan(&p.ID, &p.RackID, &p.Name, &p.Species, &p.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err, "rack %d has no active plant", rackID)
	}
	return &p, nil
}

// DeletePlant removes a plant and its rules.
func (d *DB) DeletePlant(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM plants WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.KindNotFound, "plant %d not found", id)
	}
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/machinehub/machinehub/internal/models"
)

// ErrAmbiguousMachine is returned when an IP address matches more than one
// registered machine. Ambiguous registration is a configuration error and
// is surfaced, never silently resolved.
var ErrAmbiguousMachine = errors.New("ip address matches multiple machines")

const machineColumns = `id, name, hostname, ip_address, mac_address, ha_entity_id,
	description, is_active, os_name, os_version, last_seen, created_at, updated_at`

func scanMachine(row pgx.Row) (*models.Machine, error) {
	var m models.Machine
	err := row.Scan(
		&m.ID, &m.Name, &m.Hostname, &m.IPAddress, &m.MACAddress, &m.HAEntityID,
		&m.Description, &m.IsActive, &m.OSName, &m.OSVersion, &m.LastSeen,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMachine inserts a new machine.
func (db *DB) CreateMachine(ctx context.Context, m *models.Machine) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO machines (id, name, hostname, ip_address, mac_address, ha_entity_id,
			description, is_active, os_name, os_version, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, m.ID, m.Name, m.Hostname, m.IPAddress, m.MACAddress, m.HAEntityID,
		m.Description, m.IsActive, m.OSName, m.OSVersion, m.LastSeen, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create machine: %w", err)
	}
	return nil
}

// GetMachineByID returns a machine by its ID.
func (db *DB) GetMachineByID(ctx context.Context, id uuid.UUID) (*models.Machine, error) {
	m, err := scanMachine(db.Pool.QueryRow(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get machine by ID: %w", err)
	}
	return m, nil
}

// GetAllMachines returns all machines ordered by name.
func (db *DB) GetAllMachines(ctx context.Context) ([]*models.Machine, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+machineColumns+` FROM machines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []*models.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// GetActiveMachines returns all active machines ordered by name.
func (db *DB) GetActiveMachines(ctx context.Context) ([]*models.Machine, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list active machines: %w", err)
	}
	defer rows.Close()

	var machines []*models.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// ResolveMachineByIP returns the single machine registered at the given IP
// address. Zero matches return ErrNotFound; more than one match returns
// ErrAmbiguousMachine.
func (db *DB) ResolveMachineByIP(ctx context.Context, ip string) (*models.Machine, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE ip_address = $1`, ip)
	if err != nil {
		return nil, fmt.Errorf("resolve machine by IP: %w", err)
	}
	defer rows.Close()

	var matches []*models.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve machine by IP: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguousMachine
	}
}

// UpdateMachine updates a machine's editable fields.
func (db *DB) UpdateMachine(ctx context.Context, m *models.Machine) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE machines
		SET name = $2, hostname = $3, ip_address = $4, mac_address = $5,
			ha_entity_id = $6, description = $7, is_active = $8,
			os_name = $9, os_version = $10, updated_at = NOW()
		WHERE id = $1
	`, m.ID, m.Name, m.Hostname, m.IPAddress, m.MACAddress,
		m.HAEntityID, m.Description, m.IsActive, m.OSName, m.OSVersion)
	if err != nil {
		return fmt.Errorf("update machine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMachine removes a machine. Its snapshots cascade.
func (db *DB) DeleteMachine(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM machines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete machine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/machinehub/machinehub/internal/models"
)

const snapshotColumns = `id, machine_id, source,
	cpu_percent, cpu_user, cpu_system, cpu_iowait, cpu_count,
	memory_percent, memory_used, memory_total,
	swap_percent, swap_used, swap_total, swap_free,
	uptime_seconds, load_avg, battery_percent, battery_status,
	fs_entries, network_entries, sensors, alerts, created_at`

func scanSnapshot(row pgx.Row) (*models.Snapshot, error) {
	var s models.Snapshot
	var fsData, netData, sensorData, alertData []byte
	err := row.Scan(
		&s.ID, &s.MachineID, &s.Source,
		&s.CPUPercent, &s.CPUUser, &s.CPUSystem, &s.CPUIOWait, &s.CPUCount,
		&s.MemoryPercent, &s.MemoryUsed, &s.MemoryTotal,
		&s.SwapPercent, &s.SwapUsed, &s.SwapTotal, &s.SwapFree,
		&s.UptimeSeconds, &s.LoadAvg, &s.BatteryPercent, &s.BatteryStatus,
		&fsData, &netData, &sensorData, &alertData, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := s.SetFSEntries(fsData); err != nil {
		return nil, fmt.Errorf("decode fs entries: %w", err)
	}
	if err := s.SetNetworkEntries(netData); err != nil {
		return nil, fmt.Errorf("decode network entries: %w", err)
	}
	if err := s.SetSensors(sensorData); err != nil {
		return nil, fmt.Errorf("decode sensors: %w", err)
	}
	if err := s.SetAlerts(alertData); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	return &s, nil
}

// InsertSnapshot stores a snapshot and updates the owning machine in a
// single transaction. last_seen only ever moves forward: a snapshot with
// an older embedded timestamp never regresses it. Identity fields
// (hostname, os name/version) are set on first write and never
// overwritten by later snapshots.
func (db *DB) InsertSnapshot(ctx context.Context, s *models.Snapshot, hostname, osName, osVersion string) error {
	fsData, err := s.FSEntriesJSON()
	if err != nil {
		return fmt.Errorf("encode fs entries: %w", err)
	}
	netData, err := s.NetworkEntriesJSON()
	if err != nil {
		return fmt.Errorf("encode network entries: %w", err)
	}
	sensorData, err := s.SensorsJSON()
	if err != nil {
		return fmt.Errorf("encode sensors: %w", err)
	}
	alertData, err := s.AlertsJSON()
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}

	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO snapshots (id, machine_id, source,
				cpu_percent, cpu_user, cpu_system, cpu_iowait, cpu_count,
				memory_percent, memory_used, memory_total,
				swap_percent, swap_used, swap_total, swap_free,
				uptime_seconds, load_avg, battery_percent, battery_status,
				fs_entries, network_entries, sensors, alerts, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		`, s.ID, s.MachineID, string(s.Source),
			s.CPUPercent, s.CPUUser, s.CPUSystem, s.CPUIOWait, s.CPUCount,
			s.MemoryPercent, s.MemoryUsed, s.MemoryTotal,
			s.SwapPercent, s.SwapUsed, s.SwapTotal, s.SwapFree,
			s.UptimeSeconds, s.LoadAvg, s.BatteryPercent, s.BatteryStatus,
			fsData, netData, sensorData, alertData, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE machines SET
				last_seen = GREATEST(COALESCE(last_seen, $2), $2),
				hostname = CASE WHEN hostname = '' THEN $3 ELSE hostname END,
				os_name = CASE WHEN os_name = '' THEN $4 ELSE os_name END,
				os_version = CASE WHEN os_version = '' THEN $5 ELSE os_version END,
				updated_at = NOW()
			WHERE id = $1
		`, s.MachineID, s.CreatedAt, hostname, osName, osVersion)
		if err != nil {
			return fmt.Errorf("update machine last_seen: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetSnapshotsByMachine returns snapshots for a machine, newest first.
func (db *DB) GetSnapshotsByMachine(ctx context.Context, machineID uuid.UUID, limit, offset int) ([]*models.Snapshot, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE machine_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, machineID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetLatestSnapshot returns the most recent snapshot for a machine.
func (db *DB) GetLatestSnapshot(ctx context.Context, machineID uuid.UUID) (*models.Snapshot, error) {
	s, err := scanSnapshot(db.Pool.QueryRow(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE machine_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, machineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return s, nil
}

// GetSnapshotsInRange returns snapshots for a machine within [start, end],
// oldest first.
func (db *DB) GetSnapshotsInRange(ctx context.Context, machineID uuid.UUID, start, end time.Time) ([]*models.Snapshot, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots
		WHERE machine_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at
	`, machineID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list snapshots in range: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// CountSnapshots returns the total number of stored snapshots.
func (db *DB) CountSnapshots(ctx context.Context) (int64, error) {
	var count int64
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

// CountSnapshotsBySource returns snapshot counts grouped by provenance.
func (db *DB) CountSnapshotsBySource(ctx context.Context) (map[models.SnapshotSource]int64, error) {
	rows, err := db.Pool.Query(ctx, `SELECT source, COUNT(*) FROM snapshots GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("count snapshots by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SnapshotSource]int64)
	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan snapshot count: %w", err)
		}
		counts[models.SnapshotSource(source)] = count
	}
	return counts, rows.Err()
}

// DeleteSnapshotsOlderThan deletes snapshots created before the cutoff.
// Returns the number of rows removed.
func (db *DB) DeleteSnapshotsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM snapshots WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TrimSnapshotsPerMachine deletes all but the newest keep snapshots for
// every machine. Returns the number of rows removed.
func (db *DB) TrimSnapshotsPerMachine(ctx context.Context, keep int) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM snapshots WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY machine_id ORDER BY created_at DESC
				) AS rn
				FROM snapshots
			) ranked
			WHERE ranked.rn > $1
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("trim snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

package logging

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists activation logs to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS device_activations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT,
    start_tick INTEGER,
    household_key TEXT,
    device_name TEXT,
    device_guid TEXT,
    affordance_name TEXT,
    activator_name TEXT,
    load_type_name TEXT,
    load_type_guid TEXT,
    total_energy REAL,
    step_count INTEGER
);
CREATE INDEX IF NOT EXISTS idx_device_activations_tick ON device_activations(start_tick);
CREATE TABLE IF NOT EXISTS device_archive (
    device_guid TEXT PRIMARY KEY,
    device_name TEXT,
    household_key TEXT,
    device_type TEXT,
    category TEXT,
    location_name TEXT
);
CREATE TABLE IF NOT EXISTS profile_activations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_name TEXT,
    profile_name TEXT,
    profile_source TEXT,
    load_type_name TEXT,
    activation_count INTEGER
);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// AppendActivation writes the record to the database.
func (s *SQLiteStore) AppendActivation(ctx context.Context, rec ActivationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_activations (run_id, start_tick, household_key, device_name, device_guid,
            affordance_name, activator_name, load_type_name, load_type_guid, total_energy, step_count)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.StartTick, rec.HouseholdKey, rec.DeviceName, rec.DeviceGUID,
		rec.AffordanceName, rec.ActivatorName, rec.LoadTypeName, rec.LoadTypeGUID, rec.TotalEnergy, rec.StepCount)
	return err
}

// AppendArchive stores the device description. Repeated devices are ignored.
func (s *SQLiteStore) AppendArchive(ctx context.Context, a DeviceArchive) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO device_archive (device_guid, device_name, household_key, device_type, category, location_name)
         VALUES (?, ?, ?, ?, ?, ?)`,
		a.DeviceGUID, a.DeviceName, a.HouseholdKey, a.DeviceType, a.Category, a.LocationName)
	return err
}

// AppendProfileActivations stores the profile activation report in one transaction.
func (s *SQLiteStore) AppendProfileActivations(ctx context.Context, entries []ProfileActivation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_activations (device_name, profile_name, profile_source, load_type_name, activation_count)
             VALUES (?, ?, ?, ?, ?)`,
			e.DeviceName, e.ProfileName, e.ProfileSource, e.LoadTypeName, e.ActivationCount); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns activation records matching q ordered by start tick.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]ActivationRecord, error) {
	args := []any{q.FromTick}
	query := `SELECT run_id, start_tick, household_key, device_name, device_guid, affordance_name,
        activator_name, load_type_name, load_type_guid, total_energy, step_count
        FROM device_activations WHERE start_tick >= ?`
	if q.ToTick >= 0 {
		query += ` AND start_tick <= ?`
		args = append(args, q.ToTick)
	}
	if q.DeviceGUID != "" {
		query += ` AND device_guid = ?`
		args = append(args, q.DeviceGUID)
	}
	if q.LoadTypeName != "" {
		query += ` AND load_type_name = ?`
		args = append(args, q.LoadTypeName)
	}
	query += ` ORDER BY start_tick, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []ActivationRecord
	for rows.Next() {
		var r ActivationRecord
		if err := rows.Scan(&r.RunID, &r.StartTick, &r.HouseholdKey, &r.DeviceName, &r.DeviceGUID,
			&r.AffordanceName, &r.ActivatorName, &r.LoadTypeName, &r.LoadTypeGUID, &r.TotalEnergy, &r.StepCount); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ProfileActivations returns the stored profile report.
func (s *SQLiteStore) ProfileActivations(ctx context.Context) ([]ProfileActivation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_name, profile_name, profile_source, load_type_name, activation_count
         FROM profile_activations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []ProfileActivation
	for rows.Next() {
		var e ProfileActivation
		if err := rows.Scan(&e.DeviceName, &e.ProfileName, &e.ProfileSource, &e.LoadTypeName, &e.ActivationCount); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

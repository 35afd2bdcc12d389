// Package kpi keeps daily energy totals per household and load type in
// SQLite, alongside the summary of every finished run.
package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
)

// Record is the energy a load type drew on one day.
type Record struct {
	HouseholdKey string
	LoadType     string
	Date         time.Time
	// Sum is the raw total of the summed rows.
	Sum float64
	// Energy is Sum converted with the load type factor.
	Energy float64
	Peak   float64
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SQLiteStore persists KPI records in a SQLite database. It implements
// metrics.MetricsSink and metrics.SummaryRecorder.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := []string{`CREATE TABLE IF NOT EXISTS daily_energy (
        household TEXT,
        load_type TEXT,
        day INTEGER,
        raw REAL,
        energy REAL,
        peak REAL,
        PRIMARY KEY(household, load_type, day)
    );`, `CREATE TABLE IF NOT EXISTS run_summary (
        run_id TEXT,
        household TEXT,
        load_type TEXT,
        steps INTEGER,
        total REAL,
        mean REAL,
        peak REAL,
        energy REAL,
        trips_routed INTEGER,
        trips_blocked INTEGER,
        trips_abandoned INTEGER,
        PRIMARY KEY(run_id, load_type)
    );`}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// RecordRows adds the row totals to their day bucket.
func (s *SQLiteStore) RecordRows(rows []coremetrics.RowEvent) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, r := range rows {
		_, err := tx.Exec(`INSERT INTO daily_energy (household, load_type, day, raw, energy, peak)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(household, load_type, day) DO UPDATE SET
            raw = raw + excluded.raw,
            energy = energy + excluded.energy,
            peak = MAX(peak, excluded.peak)`,
			r.HouseholdKey, r.LoadType.Name, Day(r.Time).Unix(), r.Sum, r.Sum*r.LoadType.ConversionFactor, r.Sum)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecordSummary stores one line per load type of the run.
func (s *SQLiteStore) RecordSummary(sum coremetrics.RunSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, lt := range sum.LoadTypes {
		_, err := tx.Exec(`INSERT OR REPLACE INTO run_summary
        (run_id, household, load_type, steps, total, mean, peak, energy, trips_routed, trips_blocked, trips_abandoned)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.RunID, sum.HouseholdKey, lt.Name, sum.Steps, lt.Total, lt.Mean, lt.Peak, lt.Energy,
			sum.TripsRouted, sum.TripsBlocked, sum.TripsAbandoned)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(household, loadType string, start, end time.Time) ([]Record, error) {
	start = Day(start)
	end = Day(end)
	rows, err := s.db.Query(`SELECT household, load_type, day, raw, energy, peak
        FROM daily_energy WHERE household = ? AND load_type = ? AND day >= ? AND day <= ? ORDER BY day`,
		household, loadType, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var r Record
		var ts int64
		if err := rows.Scan(&r.HouseholdKey, &r.LoadType, &ts, &r.Sum, &r.Energy, &r.Peak); err != nil {
			return nil, err
		}
		r.Date = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Summaries returns the stored summary lines of a run keyed by load type.
func (s *SQLiteStore) Summaries(runID string) (map[string]coremetrics.LoadTypeSummary, error) {
	rows, err := s.db.Query(`SELECT load_type, total, mean, peak, energy FROM run_summary WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := make(map[string]coremetrics.LoadTypeSummary)
	for rows.Next() {
		var lt coremetrics.LoadTypeSummary
		if err := rows.Scan(&lt.Name, &lt.Total, &lt.Mean, &lt.Peak, &lt.Energy); err != nil {
			return nil, err
		}
		res[lt.Name] = lt
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Package obsdb is a SQLite index of the run list, the alt/az group
// membership and the history of model builds. The schema is managed by
// embedded migrations.
package obsdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
)

// ErrUnknownGroup is returned when a group ID has no row in observation_groups.
var ErrUnknownGroup = errors.New("unknown observation group")

// DB wraps the index connection.
type DB struct {
	*sql.DB
}

// pragmas are applied to every pooled connection through the DSN.
const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Open connects to the index at path without touching the schema; run
// MigrateUp before use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?"+pragmas)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &DB{db}, nil
}

// OpenMigrated opens the index and applies pending migrations.
func OpenMigrated(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// UpsertObservations inserts or updates every row of t in one transaction.
func (db *DB) UpsertObservations(t *obs.Table) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO observations (
			obs_id, observatory, time_start, time_stop, time_observation,
			livetime, alt_deg, az_deg, n_tels, muon_efficiency
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(obs_id) DO UPDATE SET
			observatory = excluded.observatory,
			time_start = excluded.time_start,
			time_stop = excluded.time_stop,
			time_observation = excluded.time_observation,
			livetime = excluded.livetime,
			alt_deg = excluded.alt_deg,
			az_deg = excluded.az_deg,
			n_tels = excluded.n_tels,
			muon_efficiency = excluded.muon_efficiency,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range t.Rows {
		if _, err := stmt.Exec(r.ObsID, t.Observatory, r.TimeStart, r.TimeStop, r.TimeObservation,
			r.Livetime, r.AltDeg, r.AzDeg, r.NTels, r.MuonEfficiency); err != nil {
			return fmt.Errorf("failed to upsert obs %d: %w", r.ObsID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	monitoring.Logf("[Index] upserted %d observations", t.Len())
	return nil
}

// Observations returns every indexed run of observatory ordered by ID,
// with GroupID taken from the current membership (-1 when ungrouped).
func (db *DB) Observations(observatory string) (*obs.Table, error) {
	rows, err := db.Query(`
		SELECT o.obs_id, o.time_start, o.time_stop, o.time_observation, o.livetime,
		       o.alt_deg, o.az_deg, o.n_tels, o.muon_efficiency,
		       COALESCE(m.group_id, -1)
		FROM observations o
		LEFT JOIN group_members m ON m.obs_id = o.obs_id
		WHERE o.observatory = ?
		ORDER BY o.obs_id
	`, observatory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &obs.Table{Observatory: observatory}
	for rows.Next() {
		var r obs.Observation
		if err := rows.Scan(&r.ObsID, &r.TimeStart, &r.TimeStop, &r.TimeObservation, &r.Livetime,
			&r.AltDeg, &r.AzDeg, &r.NTels, &r.MuonEfficiency, &r.GroupID); err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, r)
	}
	return t, rows.Err()
}

// ReplaceGroups rewrites the group boxes and membership in one transaction.
// Every member must already be indexed.
func (db *DB) ReplaceGroups(g *obs.Groups, members []obs.GroupTable) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_members`); err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM observation_groups`); err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}
	for _, box := range g.Describe() {
		if _, err := tx.Exec(`
			INSERT INTO observation_groups (group_id, alt_min, alt_max, az_min, az_max)
			VALUES (?, ?, ?, ?, ?)
		`, box.ID, box.AltMin, box.AltMax, box.AzMin, box.AzMax); err != nil {
			return fmt.Errorf("failed to insert group %d: %w", box.ID, err)
		}
	}
	var n int
	for _, gt := range members {
		for _, id := range gt.Table.IDs() {
			if _, err := tx.Exec(`INSERT INTO group_members (group_id, obs_id) VALUES (?, ?)`, gt.ID, id); err != nil {
				return fmt.Errorf("failed to add obs %d to group %d: %w", id, gt.ID, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	monitoring.Logf("[Index] stored %d groups with %d members", g.Len(), n)
	return nil
}

// GroupMembers returns the observation IDs of one group in ascending order.
func (db *DB) GroupMembers(groupID int) ([]int64, error) {
	var exists bool
	if err := db.QueryRow(`SELECT COUNT(*) > 0 FROM observation_groups WHERE group_id = ?`, groupID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrUnknownGroup)
	}

	rows, err := db.Query(`SELECT obs_id FROM group_members WHERE group_id = ? ORDER BY obs_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupSummary is one group box with its membership totals.
type GroupSummary struct {
	obs.Group
	Observations int
	Livetime     float64 // s
}

// GroupSummaries lists every stored group, including empty ones.
func (db *DB) GroupSummaries() ([]GroupSummary, error) {
	rows, err := db.Query(`
		SELECT g.group_id, g.alt_min, g.alt_max, g.az_min, g.az_max,
		       COUNT(m.obs_id), COALESCE(SUM(o.livetime), 0)
		FROM observation_groups g
		LEFT JOIN group_members m ON m.group_id = g.group_id
		LEFT JOIN observations o ON o.obs_id = m.obs_id
		GROUP BY g.group_id
		ORDER BY g.group_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupSummary
	for rows.Next() {
		var s GroupSummary
		if err := rows.Scan(&s.ID, &s.AltMin, &s.AltMax, &s.AzMin, &s.AzMax, &s.Observations, &s.Livetime); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// BuildRecord is one row of the model build history.
type BuildRecord struct {
	ID              string
	GroupID         int
	Method          string
	Observations    int
	EnergyBins      int
	SpatialBins     int
	EnergyMin       float64
	EnergyMax       float64
	TotalCounts     float64
	SmoothingPasses int
	OutputPath      string
	StartedAt       time.Time
	Duration        time.Duration
}

// NewBuildRecord summarises a finished group build.
func NewBuildRecord(groupID int, outputPath string, stats bgmodel.BuildStats) BuildRecord {
	return BuildRecord{
		GroupID:         groupID,
		Method:          stats.Method,
		Observations:    stats.Observations,
		EnergyBins:      stats.EnergyBins,
		SpatialBins:     stats.SpatialBins,
		EnergyMin:       stats.EnergyMin,
		EnergyMax:       stats.EnergyMax,
		TotalCounts:     stats.Smooth.TotalCounts,
		SmoothingPasses: stats.Smooth.Passes,
		OutputPath:      outputPath,
		StartedAt:       stats.Started,
		Duration:        stats.Duration,
	}
}

// RecordBuild stores r, assigning a random UUID when r.ID is empty, and
// returns the ID used.
func (db *DB) RecordBuild(r BuildRecord) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO model_builds (
			build_id, group_id, method, n_obs, energy_bins, spatial_bins,
			energy_min, energy_max, total_counts, smoothing_passes,
			output_path, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.GroupID, r.Method, r.Observations, r.EnergyBins, r.SpatialBins,
		r.EnergyMin, r.EnergyMax, r.TotalCounts, r.SmoothingPasses,
		r.OutputPath, r.StartedAt.UTC().Format(timeLayout), r.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("failed to record build %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// ListBuilds returns the build history, newest first. A negative groupID
// lists every group.
func (db *DB) ListBuilds(groupID int) ([]BuildRecord, error) {
	query := `
		SELECT build_id, group_id, method, n_obs, energy_bins, spatial_bins,
		       energy_min, energy_max, total_counts, smoothing_passes,
		       output_path, started_at, duration_ms
		FROM model_builds`
	var args []any
	if groupID >= 0 {
		query += ` WHERE group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY started_at DESC, build_id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildRecord
	for rows.Next() {
		var (
			r       BuildRecord
			started string
			ms      int64
		)
		if err := rows.Scan(&r.ID, &r.GroupID, &r.Method, &r.Observations, &r.EnergyBins, &r.SpatialBins,
			&r.EnergyMin, &r.EnergyMax, &r.TotalCounts, &r.SmoothingPasses,
			&r.OutputPath, &started, &ms); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("build %s: bad started_at %q: %w", r.ID, started, err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

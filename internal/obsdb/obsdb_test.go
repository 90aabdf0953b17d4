package obsdb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bgcube/internal/bgmodel"
	"github.com/banshee-data/bgcube/internal/monitoring"
	"github.com/banshee-data/bgcube/internal/obs"
)

func init() {
	monitoring.SetLogger(nil)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleTable() *obs.Table {
	return &obs.Table{
		Observatory: "HESS",
		Rows: []obs.Observation{
			{ObsID: 11, TimeStart: 0, TimeStop: 1800, TimeObservation: 1800, Livetime: 1500, AltDeg: 50, AzDeg: 10, NTels: 4, MuonEfficiency: 0.8},
			{ObsID: 12, TimeStart: 2000, TimeStop: 3800, TimeObservation: 1800, Livetime: 1400, AltDeg: 51, AzDeg: 20, NTels: 3, MuonEfficiency: 0.7},
			{ObsID: 13, TimeStart: 4000, TimeStop: 5800, TimeObservation: 1800, Livetime: 1300, AltDeg: 65, AzDeg: 200, NTels: 4, MuonEfficiency: 0.9},
		},
	}
}

func TestMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	latest, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), latest)

	require.NoError(t, db.MigrateUp())
	v, dirty, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, v)
	assert.False(t, dirty)

	// Up is idempotent.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='model_builds'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateForce(3))
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}

func TestUpsertObservations(t *testing.T) {
	db := setupTestDB(t)
	table := sampleTable()
	require.NoError(t, db.UpsertObservations(table))

	got, err := db.Observations("HESS")
	require.NoError(t, err)
	want := sampleTable()
	for i := range want.Rows {
		want.Rows[i].GroupID = -1
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Observations mismatch (-want +got):\n%s", diff)
	}

	table.Rows[1].Livetime = 999
	require.NoError(t, db.UpsertObservations(table))
	got, err = db.Observations("HESS")
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, 999.0, got.Rows[1].Livetime)

	other, err := db.Observations("VERITAS")
	require.NoError(t, err)
	assert.Empty(t, other.Rows)
}

func TestReplaceGroups(t *testing.T) {
	db := setupTestDB(t)
	table := sampleTable()
	require.NoError(t, db.UpsertObservations(table))

	groups := obs.DefaultGroups()
	split, unmatched := groups.Split(table)
	require.Empty(t, unmatched)
	require.NoError(t, db.ReplaceGroups(groups, split))

	ids, err := db.GroupMembers(18)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, ids)

	ids, err = db.GroupMembers(25)
	require.NoError(t, err)
	assert.Equal(t, []int64{13}, ids)

	ids, err = db.GroupMembers(0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = db.GroupMembers(99)
	assert.True(t, errors.Is(err, ErrUnknownGroup))

	got, err := db.Observations("HESS")
	require.NoError(t, err)
	assert.Equal(t, []int{18, 18, 25}, []int{got.Rows[0].GroupID, got.Rows[1].GroupID, got.Rows[2].GroupID})

	summaries, err := db.GroupSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, groups.Len())
	assert.Equal(t, 2, summaries[18].Observations)
	assert.Equal(t, 2900.0, summaries[18].Livetime)
	assert.Equal(t, 49.0, summaries[18].AltMin)
	assert.Equal(t, 53.0, summaries[18].AltMax)
	assert.Zero(t, summaries[0].Observations)

	// Replacing drops the previous membership.
	require.NoError(t, db.ReplaceGroups(groups, split[:1]))
	ids, err = db.GroupMembers(25)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReplaceGroups_UnknownObservation(t *testing.T) {
	db := setupTestDB(t)
	groups := obs.DefaultGroups()
	split, _ := groups.Split(sampleTable())

	err := db.ReplaceGroups(groups, split)
	require.Error(t, err)

	summaries, err := db.GroupSummaries()
	require.NoError(t, err)
	assert.Empty(t, summaries, "failed replace must roll back")
}

func TestRecordAndListBuilds(t *testing.T) {
	db := setupTestDB(t)
	start := time.Date(2026, 3, 1, 20, 0, 0, 123456789, time.UTC)

	stats := bgmodel.BuildStats{
		Method:       "default",
		Observations: 30,
		EnergyBins:   13,
		SpatialBins:  32,
		EnergyMin:    0.1,
		EnergyMax:    80,
		Smooth:       bgmodel.SmoothStats{Passes: 5, TotalCounts: 12000},
		Started:      start,
		Duration:     1500 * time.Millisecond,
	}
	id, err := db.RecordBuild(NewBuildRecord(18, "out/bg_cube_model_group18.fits", stats))
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	stats.Started = start.Add(time.Hour)
	id2, err := db.RecordBuild(NewBuildRecord(25, "out/bg_cube_model_group25.fits", stats))
	require.NoError(t, err)

	_, err = db.RecordBuild(BuildRecord{ID: id, Method: "default", StartedAt: start})
	assert.Error(t, err, "duplicate build IDs are rejected")

	all, err := db.ListBuilds(-1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id2, all[0].ID, "newest first")
	assert.Equal(t, id, all[1].ID)

	only, err := db.ListBuilds(18)
	require.NoError(t, err)
	require.Len(t, only, 1)
	want := BuildRecord{
		ID:              id,
		GroupID:         18,
		Method:          "default",
		Observations:    30,
		EnergyBins:      13,
		SpatialBins:     32,
		EnergyMin:       0.1,
		EnergyMax:       80,
		TotalCounts:     12000,
		SmoothingPasses: 5,
		OutputPath:      "out/bg_cube_model_group18.fits",
		StartedAt:       start,
		Duration:        1500 * time.Millisecond,
	}
	if diff := cmp.Diff(want, only[0]); diff != "" {
		t.Errorf("ListBuilds mismatch (-want +got):\n%s", diff)
	}
}

package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
	"github.com/kilianp07/lpgsim/core/model"
)

func TestDailyEnergyAccumulates(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kpi.db"))
	require.NoError(t, err)
	defer s.Close()

	lt := model.LoadType{Name: "Electricity", ConversionFactor: 0.5}
	day1 := time.Date(2024, 1, 1, 23, 58, 0, 0, time.UTC)
	rows := []coremetrics.RowEvent{
		{HouseholdKey: "HH1", LoadType: lt, Time: day1, Sum: 2},
		{HouseholdKey: "HH1", LoadType: lt, Time: day1.Add(time.Minute), Sum: 4},
		{HouseholdKey: "HH1", LoadType: lt, Time: day1.Add(2 * time.Minute), Sum: 1},
	}
	require.NoError(t, s.RecordRows(rows))
	require.NoError(t, s.RecordRows(nil))

	recs, err := s.Query("HH1", "Electricity", day1, day1.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, Day(day1), recs[0].Date)
	assert.InDelta(t, 6, recs[0].Sum, 1e-9)
	assert.InDelta(t, 3, recs[0].Energy, 1e-9)
	assert.InDelta(t, 4, recs[0].Peak, 1e-9)
	assert.InDelta(t, 1, recs[1].Sum, 1e-9)

	recs, err = s.Query("HH2", "Electricity", day1, day1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunSummaryStored(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kpi.db"))
	require.NoError(t, err)
	defer s.Close()

	sum := coremetrics.RunSummary{
		RunID:        "run-1",
		HouseholdKey: "HH1",
		Steps:        10,
		LoadTypes: []coremetrics.LoadTypeSummary{
			{Name: "Electricity", Total: 7, Mean: 0.7, Peak: 3, Energy: 3.5},
			{Name: "Water", Total: 32, Mean: 3.2, Peak: 8, Energy: 32},
		},
		TripsRouted: 2,
	}
	require.NoError(t, s.RecordSummary(sum))
	require.NoError(t, s.RecordSummary(sum))

	got, err := s.Summaries("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sum.LoadTypes[0], got["Electricity"])
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	d := Day(time.Date(2024, 3, 5, 0, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), d)
}

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/zone"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sunfield.db"))
	require.NoError(t, err)
	return db
}

func testZone(t *testing.T, name string) zone.Zone {
	t.Helper()
	z, err := zone.New(name, geo.Bounds{North: 52.5203, South: 52.5200, East: 13.4055, West: 13.4050})
	require.NoError(t, err)
	return z
}

func TestZoneRoundTrip(t *testing.T) {
	db := testDB(t)

	z := testZone(t, "herb bed")
	z.SetLight(6.5)
	require.NoError(t, db.SaveZone(z))

	got, err := db.GetZone(z.ID)
	require.NoError(t, err)
	assert.Equal(t, z, got)

	zones, err := db.ListZones()
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, zone.FullSun, zones[0].Category)
}

func TestSaveZone_Updates(t *testing.T) {
	db := testDB(t)

	z := testZone(t, "bed")
	require.NoError(t, db.SaveZone(z))

	z.SetLight(3.1)
	require.NoError(t, db.SaveZone(z))

	got, err := db.GetZone(z.ID)
	require.NoError(t, err)
	assert.Equal(t, zone.PartShade, got.Category)

	zones, err := db.ListZones()
	require.NoError(t, err)
	assert.Len(t, zones, 1, "Save of an existing ID must not duplicate")
}

func TestGetZone_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetZone("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteZone(t *testing.T) {
	db := testDB(t)

	z := testZone(t, "bed")
	require.NoError(t, db.SaveZone(z))
	require.NoError(t, db.SaveAnalysis(AnalysisRecord{
		ZoneID: z.ID, Date: "2024-06-21",
		TheoreticalSunHours: 16, EffectiveSunHours: 11, PercentBlocked: 31.25,
		ObstacleHash: "deadbeef",
	}))

	require.NoError(t, db.DeleteZone(z.ID))

	_, err := db.GetZone(z.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := db.ListAnalyses(z.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history, "deleting a zone clears its history")

	assert.ErrorIs(t, db.DeleteZone(z.ID), ErrNotFound)
}

func TestAnalysisHistory(t *testing.T) {
	db := testDB(t)
	z := testZone(t, "bed")
	require.NoError(t, db.SaveZone(z))

	for _, date := range []string{"2024-06-19", "2024-06-20", "2024-06-21"} {
		require.NoError(t, db.SaveAnalysis(AnalysisRecord{
			ZoneID: z.ID, Date: date,
			TheoreticalSunHours: 16, EffectiveSunHours: 12, PercentBlocked: 25,
			ObstacleHash: "cafe",
		}))
	}

	history, err := db.ListAnalyses(z.ID, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	all, err := db.ListAnalyses(z.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

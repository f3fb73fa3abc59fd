package dataset

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRaw() Raw {
	return Raw{
		Buildings: []Building{
			{ID: 1, Name: "A", Color: "#fff", ExtinguisherCount: 2},
			{ID: 2, Name: "Warehouse", Color: "#000", ExtinguisherCount: 1},
		},
		Extinguishers: []Extinguisher{
			{ID: "FE-1", Building: 1, X: 10, Y: 20, Status: StatusGood, Type: "CO2", Manufacturer: "Amerex"},
			{ID: "FE-2", Building: 1, X: 30, Y: 60, Status: StatusOverdue, Type: "ABC Dry Chemical", Manufacturer: "Kidde"},
			{ID: "FE-3", Building: 2, X: 5, Y: 5, Status: StatusMaintenanceRequired, Type: "Water", Manufacturer: "Badger"},
			{ID: "FE-4", Building: 9, X: 1, Y: 1, Status: "retired", Type: "Foam", Manufacturer: "Amerex"},
		},
	}
}

func TestNormalizeJoinsBuildings(t *testing.T) {
	raw := sampleRaw()
	snap := Normalize(raw, "json", time.Unix(0, 0))

	ext, ok := snap.FindByID("FE-1")
	require.True(t, ok)
	assert.Equal(t, "A", ext.BuildingName)
	assert.Equal(t, "#fff", ext.BuildingColor)

	orphan, ok := snap.FindByID("FE-4")
	require.True(t, ok)
	assert.Equal(t, UnknownBuildingName, orphan.BuildingName)
	assert.Equal(t, DefaultColor, orphan.BuildingColor)

	assert.Empty(t, raw.Extinguishers[0].BuildingName, "input must not be mutated")
	assert.Equal(t, raw.Buildings, snap.Buildings)
}

func TestSynthesizeBuildingsCyclesPalette(t *testing.T) {
	var exts []Extinguisher
	for i := 0; i < 8; i++ {
		exts = append(exts, Extinguisher{ID: fmt.Sprintf("FE-%d", i), Building: 100 - i})
	}
	exts = append(exts, Extinguisher{ID: "FE-x", Building: 100})

	buildings := SynthesizeBuildings(exts)
	require.Len(t, buildings, 8)
	for i, b := range buildings {
		assert.Equal(t, 100-i, b.ID, "first-seen order")
		assert.Equal(t, fmt.Sprintf("Building-%d", b.ID), b.Name)
		assert.Equal(t, BuildingPalette[i%len(BuildingPalette)], b.Color)
	}
	assert.Equal(t, 2, buildings[0].ExtinguisherCount)
	assert.Equal(t, buildings[0].Color, buildings[6].Color)
}

func TestFindByIDUnknown(t *testing.T) {
	snap := Normalize(sampleRaw(), "json", time.Now())
	_, ok := snap.FindByID("FE-999")
	assert.False(t, ok)
	_, ok = snap.FindByID("fe-1")
	assert.False(t, ok, "lookup is exact")
}

func TestSearch(t *testing.T) {
	snap := Normalize(sampleRaw(), "json", time.Now())

	res, ok := snap.Search("   ")
	assert.False(t, ok)
	assert.Nil(t, res)

	res, ok = snap.Search("zzz-nonexistent")
	assert.True(t, ok)
	assert.Empty(t, res)

	res, ok = snap.Search("amerex")
	require.True(t, ok)
	require.Len(t, res, 2)
	assert.Equal(t, "FE-1", res[0].ID)
	assert.Equal(t, "FE-4", res[1].ID)

	res, ok = snap.Search("WAREHOUSE")
	require.True(t, ok)
	require.Len(t, res, 1)
	assert.Equal(t, "FE-3", res[0].ID)
}

func TestSearchCapsResults(t *testing.T) {
	raw := Raw{}
	for i := 0; i < 40; i++ {
		raw.Extinguishers = append(raw.Extinguishers, Extinguisher{ID: fmt.Sprintf("FE-%d", i), Type: "CO2"})
	}
	snap := Normalize(raw, "json", time.Now())
	res, ok := snap.Search("fe-")
	require.True(t, ok)
	require.Len(t, res, SearchLimit)
	assert.Equal(t, "FE-0", res[0].ID)
	assert.Equal(t, "FE-9", res[9].ID)
}

func TestStatusCounts(t *testing.T) {
	snap := Normalize(sampleRaw(), "json", time.Now())
	c := snap.StatusCounts()
	assert.Equal(t, StatusCounts{Good: 1, Overdue: 1, MaintenanceRequired: 1, Total: 4}, c)

	known := snap.Extinguishers[:3]
	kc := CountStatuses(known)
	sum := 0
	for _, s := range Statuses {
		sum += kc.Get(s)
	}
	assert.Equal(t, len(known), sum)

	empty := CountStatuses(nil)
	assert.Equal(t, StatusCounts{}, empty)
}

func TestBoundingCenter(t *testing.T) {
	_, ok := BoundingCenter(nil)
	assert.False(t, ok)

	p, ok := BoundingCenter([]Extinguisher{{X: 3, Y: 4}})
	require.True(t, ok)
	assert.Equal(t, Point{X: 3, Y: 4}, p)

	snap := Normalize(sampleRaw(), "json", time.Now())
	p, ok = BoundingCenter(snap.ByBuilding(1))
	require.True(t, ok)
	assert.Equal(t, Point{X: 20, Y: 40}, p)
}

func TestBuildingSummaries(t *testing.T) {
	raw := sampleRaw()
	raw.Buildings = append(raw.Buildings, Building{ID: 3, Name: "Empty"})
	snap := Normalize(raw, "json", time.Now())

	sums := snap.BuildingSummaries()
	require.Len(t, sums, 3)
	assert.Equal(t, 2, sums[0].Counts.Total)
	require.NotNil(t, sums[0].Center)
	assert.Nil(t, sums[2].Center)

	_, ok := snap.BuildingSummary(42)
	assert.False(t, ok)
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "#4CAF50", StatusGood.Color())
	assert.Equal(t, DefaultColor, Status("unknown").Color())
	assert.False(t, Status("").Known())
}

package dataset

import (
	"fmt"
	"time"
)

// Normalize joins every extinguisher to its building and returns a new
// snapshot. The raw slices are copied, never mutated.
func Normalize(raw Raw, source string, loadedAt time.Time) *Snapshot {
	buildings := make([]Building, len(raw.Buildings))
	copy(buildings, raw.Buildings)

	byID := make(map[int]Building, len(buildings))
	for _, b := range buildings {
		if _, dup := byID[b.ID]; !dup {
			byID[b.ID] = b
		}
	}

	exts := make([]Extinguisher, len(raw.Extinguishers))
	for i, e := range raw.Extinguishers {
		if b, ok := byID[e.Building]; ok {
			e.BuildingName = b.Name
			e.BuildingColor = b.Color
		} else {
			e.BuildingName = UnknownBuildingName
			e.BuildingColor = DefaultColor
		}
		exts[i] = e
	}

	return &Snapshot{Buildings: buildings, Extinguishers: exts, Source: source, LoadedAt: loadedAt}
}

// SynthesizeBuildings derives one building per distinct building id in
// first-seen order, for sources that carry no building list.
func SynthesizeBuildings(exts []Extinguisher) []Building {
	order := make([]int, 0)
	counts := make(map[int]int)
	for _, e := range exts {
		if _, seen := counts[e.Building]; !seen {
			order = append(order, e.Building)
		}
		counts[e.Building]++
	}
	buildings := make([]Building, len(order))
	for i, id := range order {
		buildings[i] = Building{
			ID:                id,
			Name:              fmt.Sprintf("Building-%d", id),
			ExtinguisherCount: counts[id],
			Color:             BuildingPalette[i%len(BuildingPalette)],
		}
	}
	return buildings
}

package dataset

import "strings"

// SearchLimit caps the number of search results.
const SearchLimit = 10

// StatusCounts aggregates records per recognized status. Total is the size
// of the counted list, so it can exceed the bucket sum when unknown statuses
// are present.
type StatusCounts struct {
	Good                int `json:"good"`
	InspectionDueSoon   int `json:"inspection_due_soon"`
	Overdue             int `json:"overdue"`
	MaintenanceRequired int `json:"maintenance_required"`
	Total               int `json:"total"`
}

// Get returns the bucket for s, zero for unrecognized statuses.
func (c StatusCounts) Get(s Status) int {
	switch s {
	case StatusGood:
		return c.Good
	case StatusInspectionDueSoon:
		return c.InspectionDueSoon
	case StatusOverdue:
		return c.Overdue
	case StatusMaintenanceRequired:
		return c.MaintenanceRequired
	}
	return 0
}

// BuildingSummary is a building with its status breakdown.
type BuildingSummary struct {
	Building
	Counts StatusCounts `json:"counts"`
	Center *Point       `json:"center,omitempty"`
}

// FindByID returns the extinguisher with the given id.
func (s *Snapshot) FindByID(id string) (Extinguisher, bool) {
	for _, e := range s.Extinguishers {
		if e.ID == id {
			return e, true
		}
	}
	return Extinguisher{}, false
}

// Search matches query case-insensitively against id, building name, type
// and manufacturer. The boolean is false when the query is blank, which is
// distinct from a query with zero matches.
func (s *Snapshot) Search(query string) ([]Extinguisher, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, false
	}
	matches := make([]Extinguisher, 0, SearchLimit)
	for _, e := range s.Extinguishers {
		if containsFold(e.ID, q) || containsFold(e.BuildingName, q) ||
			containsFold(e.Type, q) || containsFold(e.Manufacturer, q) {
			matches = append(matches, e)
			if len(matches) == SearchLimit {
				break
			}
		}
	}
	return matches, true
}

func containsFold(field, lowered string) bool {
	return strings.Contains(strings.ToLower(field), lowered)
}

// ByBuilding returns the extinguishers referencing building id, in list order.
func (s *Snapshot) ByBuilding(id int) []Extinguisher {
	out := make([]Extinguisher, 0)
	for _, e := range s.Extinguishers {
		if e.Building == id {
			out = append(out, e)
		}
	}
	return out
}

// FindBuilding returns the building with the given id.
func (s *Snapshot) FindBuilding(id int) (Building, bool) {
	for _, b := range s.Buildings {
		if b.ID == id {
			return b, true
		}
	}
	return Building{}, false
}

// BuildingSummaries returns every building with its counts and center.
func (s *Snapshot) BuildingSummaries() []BuildingSummary {
	out := make([]BuildingSummary, 0, len(s.Buildings))
	for _, b := range s.Buildings {
		out = append(out, s.summarize(b))
	}
	return out
}

// BuildingSummary returns the summary for one building.
func (s *Snapshot) BuildingSummary(id int) (BuildingSummary, bool) {
	b, ok := s.FindBuilding(id)
	if !ok {
		return BuildingSummary{}, false
	}
	return s.summarize(b), true
}

func (s *Snapshot) summarize(b Building) BuildingSummary {
	exts := s.ByBuilding(b.ID)
	sum := BuildingSummary{Building: b, Counts: CountStatuses(exts)}
	if c, ok := BoundingCenter(exts); ok {
		sum.Center = &c
	}
	return sum
}

// CountStatuses aggregates the given list per status.
func CountStatuses(exts []Extinguisher) StatusCounts {
	c := StatusCounts{Total: len(exts)}
	for _, e := range exts {
		switch e.Status {
		case StatusGood:
			c.Good++
		case StatusInspectionDueSoon:
			c.InspectionDueSoon++
		case StatusOverdue:
			c.Overdue++
		case StatusMaintenanceRequired:
			c.MaintenanceRequired++
		}
	}
	return c
}

// StatusCounts aggregates the whole snapshot.
func (s *Snapshot) StatusCounts() StatusCounts {
	return CountStatuses(s.Extinguishers)
}

// BoundingCenter returns the midpoint of the bounding box of the positions.
// It reports false for an empty list.
func BoundingCenter(exts []Extinguisher) (Point, bool) {
	if len(exts) == 0 {
		return Point{}, false
	}
	minX, maxX := exts[0].X, exts[0].X
	minY, maxY := exts[0].Y, exts[0].Y
	for _, e := range exts[1:] {
		minX = min(minX, e.X)
		maxX = max(maxX, e.X)
		minY = min(minY, e.Y)
		maxY = max(maxY, e.Y)
	}
	return Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}, true
}

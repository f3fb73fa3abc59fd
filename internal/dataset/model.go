package dataset

import "time"

// Status is the inspection state of an extinguisher.
type Status string

const (
	StatusGood                Status = "good"
	StatusInspectionDueSoon   Status = "inspection_due_soon"
	StatusOverdue             Status = "overdue"
	StatusMaintenanceRequired Status = "maintenance_required"
)

// Statuses lists the recognized statuses in display order.
var Statuses = []Status{StatusGood, StatusInspectionDueSoon, StatusOverdue, StatusMaintenanceRequired}

// Display colors.
const (
	DefaultColor        = "#999999"
	UnknownBuildingName = "Unknown Building"
)

var statusColors = map[Status]string{
	StatusGood:                "#4CAF50",
	StatusInspectionDueSoon:   "#FF9800",
	StatusOverdue:             "#F44336",
	StatusMaintenanceRequired: "#FF5722",
}

// BuildingPalette is cycled by first-seen order when buildings are synthesized.
var BuildingPalette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57", "#FF9FF3"}

// Known reports whether s is one of the recognized statuses.
func (s Status) Known() bool {
	_, ok := statusColors[s]
	return ok
}

// Color returns the marker color for s, DefaultColor when unrecognized.
func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return DefaultColor
}

// Building groups extinguishers under a facility building id.
type Building struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// ExtinguisherCount is the count at load time; it is not kept in sync.
	ExtinguisherCount int    `json:"extinguishers"`
	Color             string `json:"color"`
}

// Extinguisher is one inspection record. BuildingName and BuildingColor are
// filled by Normalize.
type Extinguisher struct {
	ID             string  `json:"id"`
	Building       int     `json:"building"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Status         Status  `json:"status"`
	Type           string  `json:"type"`
	Size           string  `json:"size"`
	Manufacturer   string  `json:"manufacturer"`
	LastInspection string  `json:"lastInspection"`
	NextDue        string  `json:"nextDue"`
	BuildingName   string  `json:"buildingName"`
	BuildingColor  string  `json:"buildingColor"`
}

// Raw is what a loader strategy produces before normalization.
type Raw struct {
	Buildings     []Building     `json:"buildings"`
	Extinguishers []Extinguisher `json:"extinguishers"`
	// SkippedRows counts source rows dropped for unparsable required fields.
	SkippedRows int `json:"-"`
}

// Snapshot is an immutable, normalized view of one loaded dataset.
type Snapshot struct {
	Buildings     []Building
	Extinguishers []Extinguisher
	Source        string
	LoadedAt      time.Time
}

// Empty returns a snapshot with no records.
func Empty() *Snapshot {
	return &Snapshot{Buildings: []Building{}, Extinguishers: []Extinguisher{}, Source: "empty"}
}

// Point is a planar position (bottom-left origin).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

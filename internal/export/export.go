package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"extinguisher_map/internal/dataset"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Header is the column order of the CSV and XLSX exports.
var Header = []string{"id", "building", "buildingName", "x", "y", "status", "type", "size", "manufacturer", "lastInspection", "nextDue"}

var contentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatJSON: "application/json",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentType returns the MIME type for format and whether it is supported.
func ContentType(format string) (string, bool) {
	ct, ok := contentTypes[format]
	return ct, ok
}

// Filename is fire_extinguishers_<YYYY-MM-DD>.<format>.
func Filename(format string, at time.Time) string {
	return fmt.Sprintf("fire_extinguishers_%s.%s", at.Format("2006-01-02"), format)
}

// Document is the JSON export body.
type Document struct {
	ExportedAt        time.Time              `json:"exported_at"`
	TotalCount        int                    `json:"total_count"`
	Buildings         []dataset.Building     `json:"buildings"`
	FireExtinguishers []dataset.Extinguisher `json:"fire_extinguishers"`
}

func record(e dataset.Extinguisher) []string {
	return []string{
		e.ID,
		strconv.Itoa(e.Building),
		e.BuildingName,
		strconv.FormatFloat(e.X, 'f', -1, 64),
		strconv.FormatFloat(e.Y, 'f', -1, 64),
		string(e.Status),
		e.Type,
		e.Size,
		e.Manufacturer,
		e.LastInspection,
		e.NextDue,
	}
}

// WriteCSV writes the header and one row per extinguisher.
func WriteCSV(w io.Writer, snap *dataset.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range snap.Extinguishers {
		if err := cw.Write(record(e)); err != nil {
			return fmt.Errorf("write row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an indented Document.
func WriteJSON(w io.Writer, snap *dataset.Snapshot, at time.Time) error {
	doc := Document{
		ExportedAt:        at.UTC(),
		TotalCount:        len(snap.Extinguishers),
		Buildings:         snap.Buildings,
		FireExtinguishers: snap.Extinguishers,
	}
	if doc.Buildings == nil {
		doc.Buildings = []dataset.Building{}
	}
	if doc.FireExtinguishers == nil {
		doc.FireExtinguishers = []dataset.Extinguisher{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Write renders snap in format.
func Write(w io.Writer, format string, snap *dataset.Snapshot, at time.Time) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, snap)
	case FormatJSON:
		return WriteJSON(w, snap, at)
	case FormatXLSX:
		body, err := XLSX(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

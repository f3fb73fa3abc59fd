package floorplan

import (
	"strconv"
	"strings"

	"extinguisher_map/internal/dataset"
)

// Marker is the display payload for one extinguisher.
type Marker struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	Position      SurfacePoint   `json:"position"`
	Status        dataset.Status `json:"status"`
	Color         string         `json:"color"`
	TextColor     string         `json:"textColor"`
	Building      int            `json:"building"`
	BuildingName  string         `json:"buildingName"`
	BuildingColor string         `json:"buildingColor"`
}

// Markers builds one marker per extinguisher, in list order.
func Markers(exts []dataset.Extinguisher, m Mapper) []Marker {
	out := make([]Marker, 0, len(exts))
	for _, e := range exts {
		color := e.Status.Color()
		out = append(out, Marker{
			ID:            e.ID,
			Label:         Label(e.ID),
			Position:      m.ToSurface(e.X, e.Y),
			Status:        e.Status,
			Color:         color,
			TextColor:     ContrastColor(color),
			Building:      e.Building,
			BuildingName:  e.BuildingName,
			BuildingColor: e.BuildingColor,
		})
	}
	return out
}

// Label returns the second '-'-separated segment of id ("FE-12" is "12"),
// or id itself when that segment is missing or empty.
func Label(id string) string {
	_, suffix, ok := strings.Cut(id, "-")
	if !ok || suffix == "" {
		return id
	}
	if rest, _, found := strings.Cut(suffix, "-"); found {
		if rest == "" {
			return id
		}
		return rest
	}
	return suffix
}

// ContrastColor picks black or white text for a #RRGGBB background.
func ContrastColor(hex string) string {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return "#000000"
	}
	luminance := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 255
	if luminance > 0.5 {
		return "#000000"
	}
	return "#FFFFFF"
}

func parseHex(hex string) (r, g, b uint8, ok bool) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}

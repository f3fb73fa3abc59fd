package floorplan

// Mapper converts planar positions (bottom-left origin) to display-surface
// positions (top-left origin) for a floor plan of fixed pixel size.
type Mapper struct {
	Width  float64
	Height float64
}

// NewMapper returns a mapper for a width x height floor plan.
func NewMapper(width, height int) Mapper {
	return Mapper{Width: float64(width), Height: float64(height)}
}

// SurfacePoint is a display-surface position in row/column order.
type SurfacePoint struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// ToSurface maps (x, y) to (H - y, x).
func (m Mapper) ToSurface(x, y float64) SurfacePoint {
	return SurfacePoint{Row: m.Height - y, Col: x}
}

// FromSurface is the inverse of ToSurface. x comes back unchanged; y is
// exact only when H - y is exactly representable, otherwise within one ulp
// of H.
func (m Mapper) FromSurface(p SurfacePoint) (x, y float64) {
	return p.Col, m.Height - p.Row
}

// Bounds returns the image bounds as [[0, 0], [H, W]].
func (m Mapper) Bounds() [2][2]float64 {
	return [2][2]float64{{0, 0}, {m.Height, m.Width}}
}

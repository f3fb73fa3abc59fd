package floorplan

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extinguisher_map/internal/dataset"
)

func TestToSurface(t *testing.T) {
	m := NewMapper(200, 100)
	assert.Equal(t, SurfacePoint{Row: 80, Col: 10}, m.ToSurface(10, 20))
	assert.Equal(t, [2][2]float64{{0, 0}, {100, 200}}, m.Bounds())
}

func TestSurfaceRoundTrip(t *testing.T) {
	m := NewMapper(7972, 5905)
	for _, p := range [][2]float64{{0, 0}, {10, 20}, {7972, 5905}, {-3.25, 9000.5}, {1234.5678, 0.125}} {
		x, y := m.FromSurface(m.ToSurface(p[0], p[1]))
		assert.Equal(t, p[0], x)
		assert.Equal(t, p[1], y)
	}
}

func TestSurfaceRoundTripInexact(t *testing.T) {
	m := NewMapper(7972, 5905)
	for _, p := range [][2]float64{{0.1, 0.1}, {12.3, 4567.89}, {0.7, 1e-9}} {
		x, y := m.FromSurface(m.ToSurface(p[0], p[1]))
		assert.Equal(t, p[0], x)
		assert.InDelta(t, p[1], y, 1e-9)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "12", Label("FE-12"))
	assert.Equal(t, "12", Label("FE-12-B"))
	assert.Equal(t, "NOPREFIX", Label("NOPREFIX"))
	assert.Equal(t, "FE-", Label("FE-"))
	assert.Equal(t, "FE--12", Label("FE--12"))
}

func TestContrastColor(t *testing.T) {
	assert.Equal(t, "#000000", ContrastColor("#4CAF50"))
	assert.Equal(t, "#FFFFFF", ContrastColor("#F44336"))
	assert.Equal(t, "#000000", ContrastColor("#fff"))
	assert.Equal(t, "#000000", ContrastColor("not-a-color"))
}

func TestMarkers(t *testing.T) {
	exts := []dataset.Extinguisher{
		{ID: "FE-7", X: 10, Y: 20, Status: dataset.StatusOverdue, BuildingName: "A"},
		{ID: "FE-8", X: 0, Y: 0, Status: "weird"},
	}
	ms := Markers(exts, NewMapper(100, 100))
	require.Len(t, ms, 2)
	assert.Equal(t, "7", ms[0].Label)
	assert.Equal(t, SurfacePoint{Row: 80, Col: 10}, ms[0].Position)
	assert.Equal(t, "#F44336", ms[0].Color)
	assert.Equal(t, dataset.DefaultColor, ms[1].Color)
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{0x10, 0x20, 0x30, 0xFF})
		}
	}
	path := filepath.Join(t.TempDir(), "plan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestProbe(t *testing.T) {
	info, err := Probe(writePNG(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 40, Height: 30, Format: "png"}, info)

	_, err = Probe(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestRenderOverlayPaintsMarker(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	m := NewMapper(100, 50)
	markers := Markers([]dataset.Extinguisher{{ID: "FE-1", X: 50, Y: 25, Status: dataset.StatusOverdue}}, m)

	out := RenderOverlay(src, markers, m, 50)
	assert.Equal(t, image.Rect(0, 0, 50, 25), out.Bounds())
	assert.Equal(t, color.RGBA{0xF4, 0x43, 0x36, 0xFF}, out.RGBAAt(25, 12))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 0))
}

func TestPlanWriteOverlay(t *testing.T) {
	path := writePNG(t, 64, 32)
	plan := NewPlan(path, NewMapper(64, 32))

	var buf bytes.Buffer
	require.NoError(t, plan.WriteOverlay(&buf, nil, 0))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	plan.Invalidate()
	buf.Reset()
	require.NoError(t, plan.WriteOverlay(&buf, nil, 16))
	img, err = png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

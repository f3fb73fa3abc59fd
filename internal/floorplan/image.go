package floorplan

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxOverlayWidth bounds rendered overlays and the cached base image.
const MaxOverlayWidth = 2048

// markerRadius is the marker radius in floor-plan pixels.
const markerRadius = 15.0

// Info describes a floor-plan image file.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Probe reads only the image header.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("decode floor plan header: %w", err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Plan holds the floor-plan image and renders marker overlays on it. The
// decoded image is downscaled once to MaxOverlayWidth and cached.
type Plan struct {
	path   string
	mapper Mapper

	mu   sync.Mutex
	base image.Image
}

// NewPlan returns a plan for the image at path.
func NewPlan(path string, m Mapper) *Plan {
	return &Plan{path: path, mapper: m}
}

// Path is the image location on disk.
func (p *Plan) Path() string { return p.path }

// Mapper returns the coordinate mapper for this plan.
func (p *Plan) Mapper() Mapper { return p.mapper }

func (p *Plan) loadBase() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.base != nil {
		return p.base, nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode floor plan: %w", err)
	}
	p.base = scaleToWidth(src, MaxOverlayWidth)
	return p.base, nil
}

// Invalidate drops the cached base image.
func (p *Plan) Invalidate() {
	p.mu.Lock()
	p.base = nil
	p.mu.Unlock()
}

// WriteOverlay renders markers over the floor plan scaled to width and
// encodes the result as PNG.
func (p *Plan) WriteOverlay(w io.Writer, markers []Marker, width int) error {
	base, err := p.loadBase()
	if err != nil {
		return err
	}
	img := RenderOverlay(base, markers, p.mapper, width)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

// RenderOverlay scales src to width (clamped to src width and
// MaxOverlayWidth) and paints one disc per marker. Marker positions are in
// the mapper's surface space and are rescaled to the output size.
func RenderOverlay(src image.Image, markers []Marker, m Mapper, width int) *image.RGBA {
	scaled := scaleToWidth(src, width)
	b := scaled.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), scaled, b.Min, draw.Src)

	if m.Width <= 0 || m.Height <= 0 {
		return dst
	}
	sx := float64(b.Dx()) / m.Width
	sy := float64(b.Dy()) / m.Height
	r := max(markerRadius*sx, 3)
	border := max(r/7.5, 1)
	white := color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	for _, mk := range markers {
		cx := mk.Position.Col * sx
		cy := mk.Position.Row * sy
		fillDisc(dst, cx, cy, r, white)
		fillDisc(dst, cx, cy, r-border, hexColor(mk.Color))
	}
	return dst
}

func scaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	if width <= 0 || width > b.Dx() {
		width = b.Dx()
	}
	width = min(width, MaxOverlayWidth)
	if width == b.Dx() {
		return src
	}
	height := max(b.Dy()*width/b.Dx(), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func fillDisc(dst *image.RGBA, cx, cy, r float64, c color.RGBA) {
	if r <= 0 {
		return
	}
	bounds := dst.Bounds()
	x0, x1 := int(cx-r), int(cx+r)+1
	y0, y1 := int(cy-r), int(cy+r)+1
	r2 := r * r
	for y := max(y0, bounds.Min.Y); y < min(y1, bounds.Max.Y); y++ {
		for x := max(x0, bounds.Min.X); x < min(x1, bounds.Max.X); x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r2 {
				dst.SetRGBA(x, y, c)
			}
		}
	}
}

func hexColor(hex string) color.RGBA {
	r, g, b, ok := parseHex(hex)
	if !ok {
		r, g, b, _ = parseHex("#999999")
	}
	return color.RGBA{r, g, b, 0xFF}
}

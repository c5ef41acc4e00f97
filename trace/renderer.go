package trace

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FloorRenderer rasterizes one floor result to a PNG: background (floor
// image when given), heat dots, ground-truth tracks and a legend.
type FloorRenderer struct {
	Result *FloorResult

	// Background is drawn under everything when non-nil; it is expected to be
	// the floor image at the metadata's pixel dimensions.
	Background image.Image

	Scale   float64 // output pixels per floor pixel
	Padding int

	// DotRadius is the heat sample dot radius in output pixels.
	DotRadius int

	// PointSampleEvery draws every Nth track vertex as a marker; 0 disables.
	PointSampleEvery int
}

// NewFloorRenderer creates a renderer with default settings.
func NewFloorRenderer(result *FloorResult) *FloorRenderer {
	return &FloorRenderer{
		Result:    result,
		Scale:     1.0,
		Padding:   30,
		DotRadius: 2,
	}
}

const maxImageDim = 4000

// Render creates the floor image.
func (r *FloorRenderer) Render() *image.RGBA {
	fw, fh := r.Result.Width, r.Result.Height

	width := int(fw*r.Scale) + 2*r.Padding
	height := int(fh*r.Scale) + 2*r.Padding

	// Limit size
	if width > maxImageDim {
		r.Scale *= float64(maxImageDim) / float64(width)
		width = maxImageDim
		height = int(fh*r.Scale) + 2*r.Padding
	}
	if height > maxImageDim {
		r.Scale *= float64(maxImageDim) / float64(height)
		height = maxImageDim
		width = int(fw*r.Scale) + 2*r.Padding
	}
	if width <= 0 || height <= 0 {
		width, height = 2*r.Padding+1, 2*r.Padding+1
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{240, 240, 240, 255})
		}
	}

	toImage := func(p Point) (int, int) {
		return int(p.X*r.Scale) + r.Padding, int(p.Y*r.Scale) + r.Padding
	}

	if r.Background != nil {
		r.drawBackground(img, width, height)
	}

	// Heat under the tracks so the ground truth stays readable.
	for _, h := range r.Result.Heat {
		ix, iy := toImage(Point{X: h.Lon, Y: h.Lat})
		drawCircle(img, ix, iy, r.DotRadius, heatColor(h.Weight))
	}

	for i, track := range r.Result.Tracks {
		c := parseHexColor(trackPalette[i%len(trackPalette)])
		for j := 1; j < len(track); j++ {
			x0, y0 := toImage(track[j-1])
			x1, y1 := toImage(track[j])
			drawLine(img, x0, y0, x1, y1, c)
		}
		if r.PointSampleEvery > 0 {
			for j := 0; j < len(track); j += r.PointSampleEvery {
				ix, iy := toImage(track[j])
				drawCircle(img, ix, iy, 2, color.RGBA{51, 51, 51, 255})
			}
		}
	}

	r.drawLegend(img)
	return img
}

// drawBackground scales the floor image into the padded drawing area with
// nearest-neighbor sampling.
func (r *FloorRenderer) drawBackground(img *image.RGBA, width, height int) {
	b := r.Background.Bounds()
	sx := float64(b.Dx()) / r.Result.Width
	sy := float64(b.Dy()) / r.Result.Height

	for y := r.Padding; y < height-r.Padding; y++ {
		for x := r.Padding; x < width-r.Padding; x++ {
			fx := float64(x-r.Padding) / r.Scale * sx
			fy := float64(y-r.Padding) / r.Scale * sy
			px := b.Min.X + int(fx)
			py := b.Min.Y + int(fy)
			if px >= b.Min.X && px < b.Max.X && py >= b.Min.Y && py < b.Max.Y {
				img.Set(x, y, r.Background.At(px, py))
			}
		}
	}
}

// SavePNG renders and writes the image to a file.
func (r *FloorRenderer) SavePNG(path string) error {
	img := r.Render()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, img)
}

// heatColor maps a [0,1] weight onto a blue-to-red ramp.
func heatColor(w float64) color.RGBA {
	if w < 0 {
		w = 0
	} else if w > 1 {
		w = 1
	}
	// blue (cold) -> green -> red (hot)
	switch {
	case w < 0.5:
		t := w * 2
		return color.RGBA{0, uint8(255 * t), uint8(255 * (1 - t)), 200}
	default:
		t := (w - 0.5) * 2
		return color.RGBA{uint8(255 * t), uint8(255 * (1 - t)), 0, 200}
	}
}

// drawLine draws a 1px line using Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := int(math.Abs(float64(x1 - x0)))
	dy := -int(math.Abs(float64(y1 - y0)))
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	bounds := img.Bounds()
	for {
		if x0 >= bounds.Min.X && x0 < bounds.Max.X && y0 >= bounds.Min.Y && y0 < bounds.Max.Y {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawLegend lists the track names with their colors in the top-left corner.
func (r *FloorRenderer) drawLegend(img *image.RGBA) {
	y := 15
	for i, name := range r.Result.TrackNames {
		c := parseHexColor(trackPalette[i%len(trackPalette)])

		// Draw color swatch (12x12 square)
		for dy := 0; dy < 12; dy++ {
			for dx := 0; dx < 12; dx++ {
				img.Set(10+dx, y+dy-6, c)
			}
		}

		drawText(img, 28, y, name, color.RGBA{0, 0, 0, 255})

		y += 18
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// parseHexColor parses a hex color string like "#1f77b4" to color.RGBA
func parseHexColor(hex string) color.RGBA {
	// Default to red if parsing fails
	defaultColor := color.RGBA{255, 0, 0, 255}

	if len(hex) == 0 {
		return defaultColor
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return defaultColor
	}

	var r, g, b uint8
	_, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return defaultColor
	}

	return color.RGBA{r, g, b, 255}
}

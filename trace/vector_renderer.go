package trace

import (
	"encoding/json"
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer renders a floor result as vector graphics: the GeoJSON map
// outline, ground-truth tracks and heat dots in floor pixel coordinates.
type VectorRenderer struct {
	Result *FloorResult

	Padding    float64 // padding in floor pixels
	Resolution canvas.Resolution

	// DotRadius is the heat dot radius in floor pixels.
	DotRadius float64

	// TrackWidth is the polyline stroke width in floor pixels.
	TrackWidth float64
}

// NewVectorRenderer creates a vector renderer with default settings.
func NewVectorRenderer(result *FloorResult) *VectorRenderer {
	return &VectorRenderer{
		Result:     result,
		Padding:    20.0,
		Resolution: canvas.DPI(96),
		DotRadius:  2.0,
		TrackWidth: 3.0,
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the floor as an SVG to the provided writer.
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	width := r.Result.Width + 2*r.Padding
	height := r.Result.Height + 2*r.Padding

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the floor as a PNG to the provided writer.
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	width := r.Result.Width + 2*r.Padding
	height := r.Result.Height + 2*r.Padding

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)

	// Rasterizer implements draw.Image interface, which embeds image.Image
	return png.Encode(w, rast)
}

// renderToCanvas renders the floor to a canvas renderer (shared logic for SVG and PNG)
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	// White background
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// Canvas Y grows upward; floor pixel Y grows downward.
	toCanvas := func(p Point) (float64, float64) {
		return p.X + r.Padding, height - (p.Y + r.Padding)
	}

	// GeoJSON outline first so tracks and heat draw over it.
	if r.Result.GeoJSON != nil {
		mapStyle := canvas.DefaultStyle
		mapStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		mapStyle.Stroke = canvas.Paint{Color: color.RGBA{120, 120, 120, 255}}
		mapStyle.StrokeWidth = 1.0

		for _, ring := range collectRings(r.Result.GeoJSON) {
			if len(ring) < 2 {
				continue
			}
			cp := &canvas.Path{}
			for i, pt := range ring {
				cx, cy := toCanvas(pt)
				if i == 0 {
					cp.MoveTo(cx, cy)
				} else {
					cp.LineTo(cx, cy)
				}
			}
			renderer.RenderPath(cp, mapStyle, canvas.Identity)
		}
	}

	// Heat dots colored by weight.
	for _, h := range r.Result.Heat {
		c := heatColor(h.Weight)
		dotStyle := canvas.DefaultStyle
		dotStyle.Fill = canvas.Paint{Color: color.RGBA{c.R, c.G, c.B, 255}}
		dotStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

		cx, cy := toCanvas(Point{X: h.Lon, Y: h.Lat})
		dot := canvas.Circle(r.DotRadius)
		dot = dot.Translate(cx, cy)
		renderer.RenderPath(dot, dotStyle, canvas.Identity)
	}

	// Ground-truth tracks on top.
	for i, track := range r.Result.Tracks {
		if len(track) < 2 {
			continue
		}
		trackStyle := canvas.DefaultStyle
		trackStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		trackStyle.Stroke = canvas.Paint{Color: parseHexColor(trackPalette[i%len(trackPalette)])}
		trackStyle.StrokeWidth = r.TrackWidth

		cp := &canvas.Path{}
		for j, pt := range track {
			cx, cy := toCanvas(pt)
			if j == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		renderer.RenderPath(cp, trackStyle, canvas.Identity)
	}
}

// collectRings flattens a transformed feature collection into pixel-space
// polylines: each LineString and polygon ring becomes one ring.
func collectRings(fc *FeatureCollection) [][]Point {
	var rings [][]Point

	var visit func(node interface{})
	visit = func(node interface{}) {
		arr, ok := node.([]interface{})
		if !ok || len(arr) == 0 {
			return
		}
		// A ring is an array whose children are coordinate pairs.
		if first, ok := arr[0].([]interface{}); ok && len(first) >= 2 {
			if _, isNum := first[0].(float64); isNum {
				ring := make([]Point, 0, len(arr))
				for _, child := range arr {
					pair, ok := child.([]interface{})
					if !ok || len(pair) < 2 {
						continue
					}
					x, xok := pair[0].(float64)
					y, yok := pair[1].(float64)
					if xok && yok {
						ring = append(ring, Point{X: x, Y: y})
					}
				}
				rings = append(rings, ring)
				return
			}
		}
		for _, child := range arr {
			visit(child)
		}
	}

	for _, ft := range fc.Features {
		if ft == nil || ft.Geometry == nil {
			continue
		}
		if ft.Geometry.Type == GeometryPoint {
			continue
		}
		var tree interface{}
		if err := json.Unmarshal(ft.Geometry.Coordinates, &tree); err != nil {
			continue
		}
		visit(tree)
	}
	return rings
}

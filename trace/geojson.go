package trace

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// GeometryType represents the GeoJSON geometry type
type GeometryType string

const (
	GeometryPoint           GeometryType = "Point"
	GeometryLineString      GeometryType = "LineString"
	GeometryPolygon         GeometryType = "Polygon"
	GeometryMultiPoint      GeometryType = "MultiPoint"
	GeometryMultiLineString GeometryType = "MultiLineString"
	GeometryMultiPolygon    GeometryType = "MultiPolygon"
)

// Geometry represents a GeoJSON geometry object. Coordinates stay raw so
// the transform can recurse over any nesting depth without committing to a
// geometry-specific shape.
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a GeoJSON feature with geometry and properties
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	ID         interface{}            `json:"id,omitempty"`
}

// FeatureCollection represents a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// ParseFeatureCollection parses GeoJSON FeatureCollection data.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}
	return &fc, nil
}

// Transform returns a structurally identical collection with every
// coordinate leaf mapped through the floor's pixel mapper. Properties and
// feature identity are carried over untouched; features whose coordinates
// fail to decode keep their original geometry.
func (fc *FeatureCollection) Transform(pm PixelMapper) *FeatureCollection {
	out := &FeatureCollection{Type: fc.Type, Features: make([]*Feature, 0, len(fc.Features))}
	for _, ft := range fc.Features {
		if ft == nil {
			continue
		}
		nf := &Feature{
			Type:       ft.Type,
			Properties: ft.Properties,
			ID:         ft.ID,
			Geometry:   ft.Geometry,
		}
		if ft.Geometry != nil {
			if coords, err := transformCoordinates(ft.Geometry.Coordinates, pm); err == nil {
				nf.Geometry = &Geometry{Type: ft.Geometry.Type, Coordinates: coords}
			}
		}
		out.Features = append(out.Features, nf)
	}
	return out
}

// transformCoordinates recursively maps every [x, y, ...] leaf of a GeoJSON
// coordinate tree to pixel space. Point, LineString, Polygon and the Multi*
// types all bottom out at coordinate pairs, so the recursion handles any of
// them without a per-type case.
func transformCoordinates(raw json.RawMessage, pm PixelMapper) (json.RawMessage, error) {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decoding coordinates: %w", err)
	}
	mapped, err := transformCoordTree(tree, pm)
	if err != nil {
		return nil, err
	}
	return json.Marshal(mapped)
}

func transformCoordTree(node interface{}, pm PixelMapper) (interface{}, error) {
	arr, ok := node.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("coordinates: unexpected node %T", node)
	}

	// A leaf is a numeric pair (possibly with extra dimensions, which are
	// dropped: the pixel frame is strictly 2D).
	if x, isNum := arr[0].(float64); isNum {
		if len(arr) < 2 {
			return nil, fmt.Errorf("coordinates: position with %d values", len(arr))
		}
		y, isNum := arr[1].(float64)
		if !isNum {
			return nil, fmt.Errorf("coordinates: non-numeric position")
		}
		px, py := pm.Map(x, y)
		return []interface{}{px, py}, nil
	}

	out := make([]interface{}, len(arr))
	for i, child := range arr {
		mapped, err := transformCoordTree(child, pm)
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

// Bound computes the bounding box of every coordinate leaf in the
// collection. The second return value is false when no coordinates exist.
func (fc *FeatureCollection) Bound() (orb.Bound, bool) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 0}}
	found := false

	var visit func(node interface{})
	visit = func(node interface{}) {
		arr, ok := node.([]interface{})
		if !ok || len(arr) == 0 {
			return
		}
		if x, isNum := arr[0].(float64); isNum && len(arr) >= 2 {
			if y, isNum := arr[1].(float64); isNum {
				p := orb.Point{x, y}
				if !found {
					b = p.Bound()
					found = true
				} else {
					b = b.Extend(p)
				}
			}
			return
		}
		for _, child := range arr {
			visit(child)
		}
	}

	for _, ft := range fc.Features {
		if ft == nil || ft.Geometry == nil {
			continue
		}
		var tree interface{}
		if err := json.Unmarshal(ft.Geometry.Coordinates, &tree); err != nil {
			continue
		}
		visit(tree)
	}
	return b, found
}

// SimplifyTrack reduces a dense pixel polyline with Douglas-Peucker while
// keeping its shape within tolerance (pixels). A tolerance of 0 disables
// simplification; endpoints are always preserved.
func SimplifyTrack(track []Point, tolerance float64) []Point {
	if tolerance <= 0 || len(track) < 3 {
		return track
	}

	ls := make(orb.LineString, len(track))
	for i, p := range track {
		ls[i] = orb.Point{p.X, p.Y}
	}

	simplified := simplify.DouglasPeucker(tolerance).Simplify(ls)
	result, ok := simplified.(orb.LineString)
	if !ok {
		return track
	}

	out := make([]Point, len(result))
	for i, p := range result {
		out[i] = Point{X: p[0], Y: p[1]}
	}
	return out
}

package trace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MapInfo holds the floor image dimensions and the optional scale hints some
// floors express instead of a full affine.
type MapInfo struct {
	Width          float64   `json:"width"`
	Height         float64   `json:"height"`
	PixelPerMeter  *float64  `json:"pixel_per_meter,omitempty"`
	MetersPerPixel *float64  `json:"meters_per_pixel,omitempty"`
	Origin         []float64 `json:"origin,omitempty"`
	ThetaDeg       float64   `json:"theta_deg,omitempty"`
}

// FloorInfo is the parsed floor metadata JSON. The transform block's shape
// varies across floors, so its fields stay raw until resolution.
type FloorInfo struct {
	MapInfo   MapInfo         `json:"map_info"`
	Transform json.RawMessage `json:"transform,omitempty"`

	// transform decoded as an object; nil when absent or not an object.
	transformFields map[string]json.RawMessage
}

// ParseFloorInfo parses floor metadata. Some floors wrap the object in a
// single-element array; both forms are accepted. Missing map dimensions are
// fatal for the floor: nothing downstream can be placed without them.
func ParseFloorInfo(data []byte) (*FloorInfo, error) {
	var fi FloorInfo
	if err := json.Unmarshal(data, &fi); err != nil {
		var list []FloorInfo
		if err2 := json.Unmarshal(data, &list); err2 != nil || len(list) == 0 {
			return nil, fmt.Errorf("parsing floor info: %w", err)
		}
		fi = list[0]
	}
	if fi.MapInfo.Width <= 0 || fi.MapInfo.Height <= 0 {
		return nil, fmt.Errorf("floor info: map_info.width/height missing or non-positive")
	}
	// A transform block that is not an object is simply unusable for the
	// keyed strategies; resolution then falls through to map_info or the
	// default flip.
	if len(fi.Transform) > 0 {
		_ = json.Unmarshal(fi.Transform, &fi.transformFields)
	}
	return &fi, nil
}

// ParseAffineString parses an explicit "a,b,c,d,e,f" override.
func ParseAffineString(s string) (AffineMatrix, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return AffineMatrix{}, false
	}
	vals := make([]float64, 6)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return AffineMatrix{}, false
		}
		vals[i] = f
	}
	return AffineMatrix{
		A: vals[0], B: vals[1], C: vals[2], D: vals[3], Tx: vals[4], Ty: vals[5],
	}, true
}

// ResolveTransform resolves exactly one meter-to-pixel transform for the
// floor, trying in order:
//
//  1. the explicit override string
//  2. transform.{a..f}
//  3. transform.affine / transform.matrix (flat 6-tuple or [[a,b,e],[c,d,f]])
//  4. transform.scale + translate + theta_deg
//  5. map_info.pixel_per_meter / meters_per_pixel + origin + theta_deg
//  6. the default vertical flip (1, 0, 0, -1, 0, height)
//
// Resolution is total: a candidate malformed for one strategy is skipped in
// favor of the next, and the default flip always applies.
func (fi *FloorInfo) ResolveTransform(override string) AffineMatrix {
	if override != "" {
		if m, ok := ParseAffineString(override); ok {
			return m
		}
	}
	if m, ok := fi.transformFromFields(); ok {
		return m
	}
	if m, ok := fi.transformFromMatrix(); ok {
		return m
	}
	if m, ok := fi.transformFromScaleTranslate(); ok {
		return m
	}
	if m, ok := fi.transformFromMapInfo(); ok {
		return m
	}
	return DefaultFlip(fi.MapInfo.Height)
}

func (fi *FloorInfo) transformFromFields() (AffineMatrix, bool) {
	keys := [6]string{"a", "b", "c", "d", "e", "f"}
	var vals [6]float64
	for i, k := range keys {
		raw, ok := fi.transformFields[k]
		if !ok {
			return AffineMatrix{}, false
		}
		if err := json.Unmarshal(raw, &vals[i]); err != nil {
			return AffineMatrix{}, false
		}
	}
	return AffineMatrix{
		A: vals[0], B: vals[1], C: vals[2], D: vals[3], Tx: vals[4], Ty: vals[5],
	}, true
}

func (fi *FloorInfo) transformFromMatrix() (AffineMatrix, bool) {
	for _, key := range []string{"affine", "matrix"} {
		raw, ok := fi.transformFields[key]
		if !ok {
			continue
		}
		if m, ok := normalizeSix(raw); ok {
			return m, true
		}
	}
	return AffineMatrix{}, false
}

// normalizeSix accepts either a flat [a,b,c,d,e,f] 6-tuple or the row pair
// [[a,b,e],[c,d,f]].
func normalizeSix(raw json.RawMessage) (AffineMatrix, bool) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) == 6 {
		return AffineMatrix{
			A: flat[0], B: flat[1], C: flat[2], D: flat[3], Tx: flat[4], Ty: flat[5],
		}, true
	}
	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err == nil &&
		len(rows) == 2 && len(rows[0]) == 3 && len(rows[1]) == 3 {
		return AffineMatrix{
			A: rows[0][0], B: rows[0][1], Tx: rows[0][2],
			C: rows[1][0], D: rows[1][1], Ty: rows[1][2],
		}, true
	}
	return AffineMatrix{}, false
}

func (fi *FloorInfo) transformFromScaleTranslate() (AffineMatrix, bool) {
	scaleRaw, hasScale := fi.transformFields["scale"]
	translateRaw, hasTranslate := fi.transformFields["translate"]
	if !hasScale || !hasTranslate {
		return AffineMatrix{}, false
	}

	var scale, translate []float64
	if err := json.Unmarshal(scaleRaw, &scale); err != nil || len(scale) < 2 {
		return AffineMatrix{}, false
	}
	if err := json.Unmarshal(translateRaw, &translate); err != nil || len(translate) < 2 {
		return AffineMatrix{}, false
	}

	theta := 0.0
	if raw, ok := fi.transformFields["theta_deg"]; ok {
		// A malformed angle falls back to 0, not to the next strategy.
		_ = json.Unmarshal(raw, &theta)
	}

	return ComposeScaleRotateTranslate(scale[0], scale[1], theta, translate[0], translate[1]), true
}

func (fi *FloorInfo) transformFromMapInfo() (AffineMatrix, bool) {
	mi := fi.MapInfo

	var ppm float64
	switch {
	case mi.PixelPerMeter != nil:
		ppm = *mi.PixelPerMeter
	case mi.MetersPerPixel != nil && *mi.MetersPerPixel != 0:
		ppm = 1.0 / *mi.MetersPerPixel
	default:
		return AffineMatrix{}, false
	}

	var ox, oy float64
	if len(mi.Origin) >= 2 {
		ox, oy = mi.Origin[0], mi.Origin[1]
	}
	return ComposeScaleRotateTranslate(ppm, ppm, mi.ThetaDeg, ox, oy), true
}

// NewPixelMapper builds the floor's immutable mapper: resolved base affine,
// optional isotropic correction, and the post-affine flips.
func NewPixelMapper(fi *FloorInfo, opts Options) PixelMapper {
	m := fi.ResolveTransform(opts.AffineOverride)
	if opts.ForceIsotropic {
		m = Isotropize(m)
	}
	return PixelMapper{
		Matrix: m,
		Width:  fi.MapInfo.Width,
		Height: fi.MapInfo.Height,
		FlipX:  opts.FlipX,
		FlipY:  opts.FlipY,
	}
}

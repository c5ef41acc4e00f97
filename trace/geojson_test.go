package trace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [1, 2]},
			"properties": {"name": "door"}
		},
		{
			"type": "Feature",
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[0, 0], [4, 0], [4, 4], [0, 0]]]
			},
			"properties": {"name": "room"},
			"id": "r1"
		}
	]
}`

func TestTransformFeatureCollection(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(sampleGeoJSON))
	require.NoError(t, err)

	pm := PixelMapper{Matrix: DefaultFlip(10), Width: 10, Height: 10}
	out := fc.Transform(pm)

	require.Len(t, out.Features, 2)
	assert.Equal(t, "FeatureCollection", out.Type)

	// Point (1,2) under y-flip with height 10 -> (1, 8).
	var pt []float64
	require.NoError(t, json.Unmarshal(out.Features[0].Geometry.Coordinates, &pt))
	assert.InDelta(t, 1.0, pt[0], 1e-9)
	assert.InDelta(t, 8.0, pt[1], 1e-9)

	// Polygon nesting depth is preserved.
	var rings [][][]float64
	require.NoError(t, json.Unmarshal(out.Features[1].Geometry.Coordinates, &rings))
	require.Len(t, rings, 1)
	require.Len(t, rings[0], 4)
	assert.InDelta(t, 10.0, rings[0][0][1], 1e-9)

	// Properties and IDs carry over untouched.
	assert.Equal(t, "room", out.Features[1].Properties["name"])
	assert.Equal(t, "r1", out.Features[1].ID)
}

func TestTransformDropsExtraDimensions(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [3, 4, 99]},
			"properties": {}
		}]
	}`)
	fc, err := ParseFeatureCollection(data)
	require.NoError(t, err)

	out := fc.Transform(PixelMapper{Matrix: Identity()})
	var pt []float64
	require.NoError(t, json.Unmarshal(out.Features[0].Geometry.Coordinates, &pt))
	assert.Len(t, pt, 2)
}

func TestTransformKeepsUndecodableGeometry(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": ["bad"]},
			"properties": {}
		}]
	}`)
	fc, err := ParseFeatureCollection(data)
	require.NoError(t, err)

	out := fc.Transform(PixelMapper{Matrix: Identity()})
	require.Len(t, out.Features, 1)
	assert.JSONEq(t, `["bad"]`, string(out.Features[0].Geometry.Coordinates))
}

func TestBound(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(sampleGeoJSON))
	require.NoError(t, err)

	b, ok := fc.Bound()
	require.True(t, ok)
	assert.Equal(t, 0.0, b.Min[0])
	assert.Equal(t, 0.0, b.Min[1])
	assert.Equal(t, 4.0, b.Max[0])
	assert.Equal(t, 4.0, b.Max[1])

	empty := &FeatureCollection{Type: "FeatureCollection"}
	_, ok = empty.Bound()
	assert.False(t, ok)
}

func TestSimplifyTrack(t *testing.T) {
	// Collinear middle points vanish at any positive tolerance.
	track := []Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}
	out := SimplifyTrack(track, 0.5)
	assert.Len(t, out, 2)
	assert.Equal(t, Point{0, 0}, out[0])
	assert.Equal(t, Point{4, 0}, out[1])

	// A significant detour survives.
	bend := []Point{{0, 0}, {2, 5}, {4, 0}}
	assert.Len(t, SimplifyTrack(bend, 0.5), 3)

	// Tolerance 0 disables simplification.
	assert.Len(t, SimplifyTrack(track, 0), 5)
}

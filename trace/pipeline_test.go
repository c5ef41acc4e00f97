package trace

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLog produces a minimal trajectory file with two waypoints and evenly
// spaced calibrated samples between them.
func buildLog(samples int) []byte {
	var b strings.Builder
	b.WriteString("# test trajectory\n")
	b.WriteString("1000\tTYPE_WAYPOINT\t0.0\t0.0\n")
	for i := 0; i < samples; i++ {
		ts := 1000 + int64(i+1)*1000/int64(samples+1)
		fmt.Fprintf(&b, "%d\tTYPE_MAGNETIC_FIELD\t%d.0\t0.0\t0.0\t3\n", ts, 10+i)
	}
	b.WriteString("2000\tTYPE_WAYPOINT\t10.0\t0.0\n")
	return []byte(b.String())
}

var testFloorInfo = []byte(`{"map_info": {"width": 100, "height": 200}}`)

func TestProcessFloor(t *testing.T) {
	assets := FloorAssets{
		FloorInfo: testFloorInfo,
		GeoJSON:   []byte(sampleGeoJSON),
		Files: []TrajectoryFile{
			{Name: "walk1.txt", Data: buildLog(4)},
			{Name: "walk2.txt", Data: buildLog(2)},
		},
	}

	result, err := ProcessFloor(assets, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 100.0, result.Width)
	assert.Equal(t, 200.0, result.Height)
	assert.True(t, result.HasHeat())
	assert.Len(t, result.Heat, 6)
	assert.Len(t, result.Tracks, 2)
	assert.Equal(t, []string{"walk1.txt", "walk2.txt"}, result.TrackNames)
	assert.NotNil(t, result.GeoJSON)

	require.Len(t, result.Stats, 2)
	assert.Equal(t, "walk1.txt", result.Stats[0].Name)
	assert.Equal(t, 2, result.Stats[0].Waypoints)
	assert.Equal(t, 4, result.Stats[0].Fused)
	assert.Equal(t, MagCalibrated, result.Stats[0].Variant)
	assert.False(t, result.Stats[0].UsedFallback)

	// Waypoints live in meters; the default flip puts pixel y = height - y.
	// Waypoint (0,0) maps to (0, 200).
	assert.InDelta(t, 0.0, result.Tracks[0][0].X, 1e-9)
	assert.InDelta(t, 200.0, result.Tracks[0][0].Y, 1e-9)

	// Heat weights all inside [0,1].
	for _, h := range result.Heat {
		assert.GreaterOrEqual(t, h.Weight, 0.0)
		assert.LessOrEqual(t, h.Weight, 1.0)
	}
}

func TestProcessFloorBadMetadataIsFatal(t *testing.T) {
	assets := FloorAssets{FloorInfo: []byte(`{}`)}
	result, err := ProcessFloor(assets, DefaultOptions())
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestProcessFloorNoHeatSamples(t *testing.T) {
	// Files without magnetic samples still yield tracks, plus the explicit
	// nothing-to-render condition.
	waypointOnly := []byte("1000\tTYPE_WAYPOINT\t0\t0\n2000\tTYPE_WAYPOINT\t1\t1\n")
	assets := FloorAssets{
		FloorInfo: testFloorInfo,
		Files:     []TrajectoryFile{{Name: "gt_only.txt", Data: waypointOnly}},
	}

	result, err := ProcessFloor(assets, DefaultOptions())
	require.True(t, errors.Is(err, ErrNoHeatSamples))
	require.NotNil(t, result)
	assert.False(t, result.HasHeat())
	assert.Len(t, result.Tracks, 1)
}

func TestProcessFloorBadGeoJSONIsNotFatal(t *testing.T) {
	assets := FloorAssets{
		FloorInfo: testFloorInfo,
		GeoJSON:   []byte(`{broken`),
		Files:     []TrajectoryFile{{Name: "walk.txt", Data: buildLog(2)}},
	}

	result, err := ProcessFloor(assets, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, result.GeoJSON)
	assert.True(t, result.HasHeat())
}

func TestProcessFloorNameFilter(t *testing.T) {
	assets := FloorAssets{
		FloorInfo: testFloorInfo,
		Files: []TrajectoryFile{
			{Name: "keep_a.txt", Data: buildLog(2)},
			{Name: "drop.txt", Data: buildLog(2)},
			{Name: "keep_b.txt", Data: buildLog(2)},
		},
	}

	opts := DefaultOptions()
	opts.NameFilter = "keep"
	result, err := ProcessFloor(assets, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep_a.txt", "keep_b.txt"}, result.TrackNames)

	opts.MaxFilesPerFloor = 1
	result, err = ProcessFloor(assets, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep_a.txt"}, result.TrackNames)
}

func TestProcessFloorSubsampleCap(t *testing.T) {
	assets := FloorAssets{
		FloorInfo: testFloorInfo,
		Files:     []TrajectoryFile{{Name: "dense.txt", Data: buildLog(50)}},
	}

	opts := DefaultOptions()
	opts.MaxHeatPoints = 10
	result, err := ProcessFloor(assets, opts)
	require.NoError(t, err)
	assert.Len(t, result.Heat, 10)
}

func TestProcessFloorHeatCoordinateOrder(t *testing.T) {
	// One sample at the exact midpoint: meters (5, 0), pixel (5, 200),
	// stored as Lat=pixel_y, Lon=pixel_x.
	assets := FloorAssets{
		FloorInfo: testFloorInfo,
		Files:     []TrajectoryFile{{Name: "mid.txt", Data: buildLog(1)}},
	}

	result, err := ProcessFloor(assets, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, result.Heat, 1)
	assert.InDelta(t, 200.0, result.Heat[0].Lat, 1e-9)
	assert.InDelta(t, 5.0, result.Heat[0].Lon, 1e-9)
}

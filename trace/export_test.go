package trace

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeatCSV(t *testing.T) {
	heat := []HeatPoint{
		{Lat: 180, Lon: 10, Weight: 0.5},
		{Lat: 20.25, Lon: 1, Weight: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHeatCSV(&buf, heat))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"pixel_y", "pixel_x", "weight"}, rows[0])
	assert.Equal(t, []string{"180", "10", "0.5"}, rows[1])
	assert.Equal(t, []string{"20.25", "1", "1"}, rows[2])
}

func TestWriteTracksCSV(t *testing.T) {
	tracks := [][]Point{
		{{X: 0, Y: 0}, {X: 1, Y: 2}},
		{{X: 5, Y: 5}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTracksCSV(&buf, tracks, []string{"walk1.txt"}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"walk1.txt", "0", "0", "0"}, rows[1])
	assert.Equal(t, []string{"walk1.txt", "1", "1", "2"}, rows[2])
	// Unnamed track falls back to its index.
	assert.Equal(t, "track_1", rows[3][0])
}

func TestWriteStatsCSV(t *testing.T) {
	stats := []FileStats{
		{Name: "a.txt", Waypoints: 3, Samples: 10, Fused: 8, Variant: MagCalibrated},
		{Name: "b.txt", Variant: MagNone, UsedFallback: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatsCSV(&buf, stats))

	out := buf.String()
	assert.True(t, strings.Contains(out, "a.txt,3,10,8,calibrated,false"))
	assert.True(t, strings.Contains(out, "b.txt,0,0,0,none,true"))
}

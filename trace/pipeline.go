package trace

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrNoHeatSamples reports that aggregation across every trajectory file on
// a floor produced zero interpolated samples. It is the explicit
// "nothing to render" condition: callers skip the heat layer and still
// render the base map and GeoJSON.
var ErrNoHeatSamples = errors.New("no heat samples to render")

// TrajectoryFile is one sensor-log file's name and raw content.
type TrajectoryFile struct {
	Name string
	Data []byte
}

// FloorAssets bundles the raw inputs for one floor. GeoJSON is optional.
type FloorAssets struct {
	FloorInfo []byte
	GeoJSON   []byte
	Files     []TrajectoryFile
}

// FileStats records what one trajectory file contributed.
type FileStats struct {
	Name         string
	Waypoints    int
	Samples      int
	Fused        int
	Variant      MagVariant
	UsedFallback bool
}

// FloorResult is the renderer-ready output of one floor pass.
type FloorResult struct {
	Width  float64
	Height float64
	Mapper PixelMapper

	// Tracks are pixel-space polylines, one per trajectory file that had at
	// least two waypoints, in file order. TrackNames aligns with Tracks.
	Tracks     [][]Point
	TrackNames []string

	// Heat is the weighted heat sample set, empty when the floor had no
	// usable samples (see ErrNoHeatSamples).
	Heat []HeatPoint

	// GeoJSON is the pixel-space feature collection, nil when the floor has
	// no (or unreadable) GeoJSON.
	GeoJSON *FeatureCollection

	Stats []FileStats
}

// HasHeat reports whether the floor produced any heat samples.
func (r *FloorResult) HasHeat() bool { return len(r.Heat) > 0 }

// ProcessFloor runs the full fusion pipeline for one floor: resolve the
// coordinate transform from metadata, then per file parse, select a
// magnetometer stream, interpolate sample positions, and finally aggregate,
// normalize and map everything to pixel space.
//
// Missing or unreadable floor metadata is fatal for the floor. Everything
// below that recovers locally: malformed lines are dropped by the parser,
// files without waypoints or samples contribute nothing, and a floor with
// zero aggregated samples returns a usable result alongside
// ErrNoHeatSamples.
func ProcessFloor(assets FloorAssets, opts Options) (*FloorResult, error) {
	fi, err := ParseFloorInfo(assets.FloorInfo)
	if err != nil {
		return nil, fmt.Errorf("floor metadata: %w", err)
	}

	pm := NewPixelMapper(fi, opts)
	log.Printf("resolved transform: %s", pm.Matrix.Diagnose())

	result := &FloorResult{
		Width:  fi.MapInfo.Width,
		Height: fi.MapInfo.Height,
		Mapper: pm,
	}

	if len(assets.GeoJSON) > 0 {
		fc, err := ParseFeatureCollection(assets.GeoJSON)
		if err != nil {
			log.Printf("skipping geojson: %v", err)
		} else {
			result.GeoJSON = fc.Transform(pm)
		}
	}

	var fused []PositionedSample
	for _, file := range selectFiles(assets.Files, opts) {
		stats, samples := processFile(file, opts)
		result.Stats = append(result.Stats, stats)
		fused = append(fused, samples...)

		if track := buildTrack(file, pm, opts); len(track) >= 2 {
			result.Tracks = append(result.Tracks, track)
			result.TrackNames = append(result.TrackNames, file.Name)
		}
	}

	heat, err := buildHeat(fused, pm, opts)
	if err != nil {
		return result, err
	}
	result.Heat = heat
	return result, nil
}

// selectFiles applies the name filter and per-floor cap, preserving order.
func selectFiles(files []TrajectoryFile, opts Options) []TrajectoryFile {
	selected := files
	if opts.NameFilter != "" {
		selected = nil
		for _, f := range files {
			if strings.Contains(f.Name, opts.NameFilter) {
				selected = append(selected, f)
			}
		}
	}
	if opts.MaxFilesPerFloor > 0 && len(selected) > opts.MaxFilesPerFloor {
		selected = selected[:opts.MaxFilesPerFloor]
	}
	return selected
}

// processFile parses one trajectory file and interpolates its samples.
// Failures are file-local: the file simply contributes zero samples.
func processFile(file TrajectoryFile, opts Options) (FileStats, []PositionedSample) {
	stats := FileStats{Name: file.Name, Variant: MagNone}

	recs, err := ParseLog(bytes.NewReader(file.Data), opts)
	if err != nil {
		log.Printf("  %s: %v", file.Name, err)
		return stats, nil
	}

	samples, variant := recs.SelectMagnetic(opts)
	stats.Waypoints = len(recs.Waypoints)
	stats.Samples = len(samples)
	stats.Variant = variant

	if len(recs.Waypoints) == 0 || len(samples) == 0 {
		log.Printf("  %s: not interpolable (waypoints=%d, mag=%d)",
			file.Name, len(recs.Waypoints), len(samples))
		return stats, nil
	}

	fused, usedFallback := FuseSamples(recs.Waypoints, samples, opts)
	stats.Fused = len(fused)
	stats.UsedFallback = usedFallback
	if usedFallback {
		log.Printf("  %s: nearest-waypoint fallback (+/-%dms) matched %d points",
			file.Name, opts.NearestTolMS, len(fused))
	}
	return stats, fused
}

// buildTrack converts a file's waypoint sequence into a pixel polyline.
func buildTrack(file TrajectoryFile, pm PixelMapper, opts Options) []Point {
	recs, err := ParseLog(bytes.NewReader(file.Data), opts)
	if err != nil || len(recs.Waypoints) < 2 {
		return nil
	}
	track := make([]Point, len(recs.Waypoints))
	for i, wp := range recs.Waypoints {
		track[i] = pm.MapPoint(Point{X: wp.X, Y: wp.Y})
	}
	return SimplifyTrack(track, opts.SimplifyTolerance)
}

// buildHeat normalizes the aggregated scalar values into weights, caps the
// point count, and maps positions to (lat=pixel_y, lon=pixel_x) order.
func buildHeat(fused []PositionedSample, pm PixelMapper, opts Options) ([]HeatPoint, error) {
	if len(fused) == 0 {
		return nil, ErrNoHeatSamples
	}

	values := make([]float64, len(fused))
	for i, s := range fused {
		values[i] = s.Value
	}
	weights := NormalizeWeights(values, opts.ClipLowPct, opts.ClipHighPct)

	heat := make([]HeatPoint, len(fused))
	for i, s := range fused {
		px, py := pm.Map(s.X, s.Y)
		heat[i] = HeatPoint{Lat: py, Lon: px, Weight: weights[i]}
	}
	return SubsampleHeat(heat, opts.MaxHeatPoints), nil
}

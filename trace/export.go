package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteHeatCSV writes the floor's heat samples as pixel_y,pixel_x,weight rows.
func WriteHeatCSV(w io.Writer, heat []HeatPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pixel_y", "pixel_x", "weight"}); err != nil {
		return fmt.Errorf("writing heat CSV header: %w", err)
	}
	for _, h := range heat {
		row := []string{
			strconv.FormatFloat(h.Lat, 'f', -1, 64),
			strconv.FormatFloat(h.Lon, 'f', -1, 64),
			strconv.FormatFloat(h.Weight, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing heat CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTracksCSV writes every track's pixel vertices as track,seq,pixel_x,pixel_y
// rows, one block per trajectory file in file order.
func WriteTracksCSV(w io.Writer, tracks [][]Point, names []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"track", "seq", "pixel_x", "pixel_y"}); err != nil {
		return fmt.Errorf("writing tracks CSV header: %w", err)
	}
	for i, track := range tracks {
		name := fmt.Sprintf("track_%d", i)
		if i < len(names) {
			name = names[i]
		}
		for j, p := range track {
			row := []string{
				name,
				strconv.Itoa(j),
				strconv.FormatFloat(p.X, 'f', -1, 64),
				strconv.FormatFloat(p.Y, 'f', -1, 64),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing tracks CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatsCSV writes the per-file contribution summary.
func WriteStatsCSV(w io.Writer, stats []FileStats) error {
	cw := csv.NewWriter(w)
	header := []string{"file", "waypoints", "samples", "fused", "variant", "used_fallback"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing stats CSV header: %w", err)
	}
	for _, s := range stats {
		row := []string{
			s.Name,
			strconv.Itoa(s.Waypoints),
			strconv.Itoa(s.Samples),
			strconv.Itoa(s.Fused),
			s.Variant.String(),
			strconv.FormatBool(s.UsedFallback),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing stats CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

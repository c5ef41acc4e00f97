package trace

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// recordKind is the closed set of sensor-log record types this pipeline
// consumes. Unknown type tags map to recordUnknown and are always skipped,
// so new sensor types in the source dataset never break parsing.
type recordKind int

const (
	recordUnknown recordKind = iota
	recordWaypoint
	recordCalibrated
	recordUncalibrated
)

var recordKinds = map[string]recordKind{
	"TYPE_WAYPOINT":                    recordWaypoint,
	"TYPE_MAGNETIC_FIELD":              recordCalibrated,
	"TYPE_MAGNETIC_FIELD_UNCALIBRATED": recordUncalibrated,
}

// lineRecord is the parsed form of a single data line. hasBias is set for
// the six-float uncalibrated form, where the log reports a bias estimate
// alongside the raw vector.
type lineRecord struct {
	kind    recordKind
	wp      Waypoint
	mag     MagneticSample
	bias    [3]float64
	hasBias bool
}

// parseLine parses one sensor-log line. The second return value is false
// for comments, blanks, unknown types, and lines whose numeric fields fail
// to parse; a malformed one-off line never aborts the file scan.
func parseLine(s string) (lineRecord, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return lineRecord{}, false
	}
	// Coordinate lists may be comma- or space-delimited.
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) < 2 {
		return lineRecord{}, false
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return lineRecord{}, false
	}
	kind := recordKinds[fields[1]]
	vals := fields[2:]

	switch kind {
	case recordWaypoint:
		if len(vals) < 2 {
			return lineRecord{}, false
		}
		x, err1 := strconv.ParseFloat(vals[0], 64)
		y, err2 := strconv.ParseFloat(vals[1], 64)
		if err1 != nil || err2 != nil {
			return lineRecord{}, false
		}
		return lineRecord{kind: kind, wp: Waypoint{TS: ts, X: x, Y: y}}, true

	case recordCalibrated:
		mag, ok := parseVector(ts, vals)
		if !ok {
			return lineRecord{}, false
		}
		if len(vals) >= 4 {
			mag.Accuracy = parseAccuracy(vals[3])
		}
		return lineRecord{kind: kind, mag: mag}, true

	case recordUncalibrated:
		mag, ok := parseVector(ts, vals)
		if !ok {
			return lineRecord{}, false
		}
		rec := lineRecord{kind: kind, mag: mag}
		// Six floats mean raw vector + bias vector; fewer mean a pure
		// vector with an optional trailing accuracy.
		if len(vals) >= 6 {
			bx, err1 := strconv.ParseFloat(vals[3], 64)
			by, err2 := strconv.ParseFloat(vals[4], 64)
			bz, err3 := strconv.ParseFloat(vals[5], 64)
			if err1 == nil && err2 == nil && err3 == nil {
				rec.bias = [3]float64{bx, by, bz}
				rec.hasBias = true
			}
			if len(vals) >= 7 {
				rec.mag.Accuracy = parseAccuracy(vals[6])
			}
		} else if len(vals) >= 4 {
			rec.mag.Accuracy = parseAccuracy(vals[3])
		}
		return rec, true
	}

	return lineRecord{}, false
}

// parseVector parses the leading three floats of a magnetic-field line.
func parseVector(ts int64, vals []string) (MagneticSample, bool) {
	if len(vals) < 3 {
		return MagneticSample{}, false
	}
	mx, err1 := strconv.ParseFloat(vals[0], 64)
	my, err2 := strconv.ParseFloat(vals[1], 64)
	mz, err3 := strconv.ParseFloat(vals[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return MagneticSample{}, false
	}
	return MagneticSample{TS: ts, MX: mx, MY: my, MZ: mz}, true
}

// parseAccuracy reads a trailing accuracy token. Non-integer tokens yield 0,
// matching the dataset's "accuracy absent" convention.
func parseAccuracy(tok string) int {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// ParseLog scans one sensor-log file and extracts waypoints plus calibrated
// and uncalibrated magnetic samples. Comment lines may appear anywhere.
// Both waypoint and sample sequences are returned sorted ascending by
// timestamp (stable, ties keep original order); waypoints are deduplicated
// on the opts.SnapMeters grid. An empty waypoint collection is a normal
// result, not an error.
func ParseLog(r io.Reader, opts Options) (*LogRecords, error) {
	recs := &LogRecords{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rec, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		switch rec.kind {
		case recordWaypoint:
			recs.Waypoints = append(recs.Waypoints, rec.wp)
		case recordCalibrated:
			recs.Calibrated = append(recs.Calibrated, rec.mag)
		case recordUncalibrated:
			mag := rec.mag
			if opts.Debias && rec.hasBias {
				mag.MX -= rec.bias[0]
				mag.MY -= rec.bias[1]
				mag.MZ -= rec.bias[2]
			}
			recs.Uncalibrated = append(recs.Uncalibrated, mag)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}

	sortWaypoints(recs.Waypoints)
	sortSamples(recs.Calibrated)
	sortSamples(recs.Uncalibrated)

	recs.Waypoints = SnapWaypoints(recs.Waypoints, opts.SnapMeters)

	if opts.AccuracyMin > 0 {
		recs.Calibrated = filterByAccuracy(recs.Calibrated, opts.AccuracyMin)
		recs.Uncalibrated = filterByAccuracy(recs.Uncalibrated, opts.AccuracyMin)
	}

	return recs, nil
}

func sortWaypoints(wps []Waypoint) {
	sort.SliceStable(wps, func(i, j int) bool { return wps[i].TS < wps[j].TS })
}

func sortSamples(samples []MagneticSample) {
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].TS < samples[j].TS })
}

// SnapWaypoints removes near-duplicate fixes by snapping each waypoint onto
// a square grid of the given cell size (meters) and keeping only the first
// waypoint per cell. Survivors keep their original order. A size of 0
// disables snapping.
func SnapWaypoints(wps []Waypoint, snapMeters float64) []Waypoint {
	if snapMeters <= 0 || len(wps) == 0 {
		return wps
	}
	type cell struct{ ix, iy int64 }
	seen := make(map[cell]struct{}, len(wps))
	out := wps[:0]
	for _, wp := range wps {
		c := cell{
			ix: int64(math.Round(wp.X / snapMeters)),
			iy: int64(math.Round(wp.Y / snapMeters)),
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, wp)
	}
	return out
}

func filterByAccuracy(samples []MagneticSample, minAcc int) []MagneticSample {
	out := samples[:0]
	for _, s := range samples {
		if s.Accuracy >= minAcc {
			out = append(out, s)
		}
	}
	return out
}

// SelectMagnetic picks the magnetometer stream to use for a file: the
// calibrated stream unless opts.PreferUncalibrated is set or calibrated is
// absent, falling back to whichever stream is non-empty.
func (lr *LogRecords) SelectMagnetic(opts Options) ([]MagneticSample, MagVariant) {
	uncalVariant := MagUncalibrated
	if opts.Debias {
		uncalVariant = MagUncalibratedDebiased
	}

	switch {
	case opts.PreferUncalibrated && len(lr.Uncalibrated) > 0:
		return lr.Uncalibrated, uncalVariant
	case !opts.PreferUncalibrated && len(lr.Calibrated) > 0:
		return lr.Calibrated, MagCalibrated
	case len(lr.Uncalibrated) > 0:
		return lr.Uncalibrated, uncalVariant
	case len(lr.Calibrated) > 0:
		return lr.Calibrated, MagCalibrated
	}
	return nil, MagNone
}

// FieldValue derives the heat-weighting scalar from a sample: the full
// field magnitude or a single raw component.
func FieldValue(s MagneticSample, c FieldComponent) float64 {
	switch c {
	case ComponentX:
		return s.MX
	case ComponentY:
		return s.MY
	case ComponentZ:
		return s.MZ
	}
	return math.Sqrt(s.MX*s.MX + s.MY*s.MY + s.MZ*s.MZ)
}

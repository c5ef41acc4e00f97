package trace

// Position is an optional interpolated position. OK is false when no usable
// position exists for a sample; the interpolator never returns an error.
type Position struct {
	X  float64
	Y  float64
	OK bool
}

// InterpolatePositions computes one position (or no position) per sample
// timestamp. Both inputs must be sorted ascending; the sweep keeps a
// monotonically advancing waypoint index so the whole pass is O(n+m).
//
// For a timestamp t bracketed by waypoints (t0,x0,y0) and (t1,x1,y1):
//   - linear: r = (t-t0)/max(1, t1-t0), position = lerp(r)
//   - hold:   position = (x0,y0)
//   - skip:   no position
//
// Timestamps before the first or after the last waypoint clamp to the
// nearest endpoint under hold mode and yield no position otherwise. A
// zero-duration interval degenerates to the earlier waypoint; the max(1, dt)
// denominator guard makes that branch division-safe.
func InterpolatePositions(wps []Waypoint, timestamps []int64, mode InterpolationMode) []Position {
	out := make([]Position, len(timestamps))
	if len(wps) < 2 {
		return out
	}

	j := 0
	for i, t := range timestamps {
		for j+1 < len(wps) && wps[j+1].TS < t {
			j++
		}

		switch {
		case t < wps[0].TS:
			if mode == ModeHold {
				out[i] = Position{X: wps[0].X, Y: wps[0].Y, OK: true}
			}
		case j+1 >= len(wps):
			if mode == ModeHold {
				last := wps[len(wps)-1]
				out[i] = Position{X: last.X, Y: last.Y, OK: true}
			}
		default:
			w0, w1 := wps[j], wps[j+1]
			switch mode {
			case ModeHold:
				out[i] = Position{X: w0.X, Y: w0.Y, OK: true}
			case ModeSkip:
				// bracketed but intentionally unplaced
			default:
				r := float64(t-w0.TS) / float64(max(1, w1.TS-w0.TS))
				out[i] = Position{
					X:  w0.X + r*(w1.X-w0.X),
					Y:  w0.Y + r*(w1.Y-w0.Y),
					OK: true,
				}
			}
		}
	}
	return out
}

// NearestPositions matches each sample timestamp to its temporally nearest
// waypoint, provided the gap is within tolMS milliseconds. This is the
// best-effort fallback for sparse-waypoint files; it is never applied
// implicitly (see FuseSamples).
func NearestPositions(wps []Waypoint, timestamps []int64, tolMS int64) []Position {
	out := make([]Position, len(timestamps))
	if len(wps) == 0 || tolMS <= 0 {
		return out
	}

	j := 0
	for i, t := range timestamps {
		for j+1 < len(wps) && wps[j+1].TS < t {
			j++
		}
		best := wps[j]
		if j+1 < len(wps) && abs64(wps[j+1].TS-t) < abs64(best.TS-t) {
			best = wps[j+1]
		}
		if abs64(best.TS-t) <= tolMS {
			out[i] = Position{X: best.X, Y: best.Y, OK: true}
		}
	}
	return out
}

// FuseSamples runs strict interpolation over a file's samples and returns
// the positioned subset, each carrying the derived scalar per
// opts.Component. When strict interpolation yields zero positions for the
// entire file and opts.NearestTolMS is set, the nearest-waypoint fallback is
// tried once for the whole file. The second return value reports whether the
// fallback produced the result.
func FuseSamples(wps []Waypoint, samples []MagneticSample, opts Options) ([]PositionedSample, bool) {
	if len(samples) == 0 || len(wps) < 2 {
		return nil, false
	}

	timestamps := make([]int64, len(samples))
	for i, s := range samples {
		timestamps[i] = s.TS
	}

	fused := collectPositioned(samples, InterpolatePositions(wps, timestamps, opts.Mode), opts.Component)
	if len(fused) > 0 || opts.NearestTolMS <= 0 {
		return fused, false
	}

	fused = collectPositioned(samples, NearestPositions(wps, timestamps, opts.NearestTolMS), opts.Component)
	return fused, len(fused) > 0
}

func collectPositioned(samples []MagneticSample, positions []Position, c FieldComponent) []PositionedSample {
	var out []PositionedSample
	for i, pos := range positions {
		if !pos.OK {
			continue
		}
		out = append(out, PositionedSample{
			TS:    samples[i].TS,
			X:     pos.X,
			Y:     pos.Y,
			Value: FieldValue(samples[i], c),
		})
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

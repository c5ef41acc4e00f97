package trace

// Point represents a 2D coordinate, in meters or pixels depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Waypoint is a ground-truth position fix: device timestamp in milliseconds,
// position in meters in the floor's local frame.
type Waypoint struct {
	TS int64
	X  float64
	Y  float64
}

// MagneticSample is one magnetometer reading in microtesla. Accuracy is the
// Android sensor accuracy level (0..3); 0 when the log line carried none.
type MagneticSample struct {
	TS       int64
	MX       float64
	MY       float64
	MZ       float64
	Accuracy int
}

// MagVariant identifies which magnetometer stream a file contributed.
type MagVariant int

const (
	MagCalibrated MagVariant = iota
	MagUncalibrated
	MagUncalibratedDebiased
	MagNone
)

func (v MagVariant) String() string {
	switch v {
	case MagCalibrated:
		return "calibrated"
	case MagUncalibrated:
		return "uncalibrated"
	case MagUncalibratedDebiased:
		return "uncalibrated-debiased"
	}
	return "none"
}

// LogRecords holds the typed records extracted from one sensor-log file.
// An empty Waypoints slice means the file carries no ground truth; callers
// skip interpolation for such files rather than treating it as an error.
type LogRecords struct {
	Waypoints    []Waypoint
	Calibrated   []MagneticSample
	Uncalibrated []MagneticSample
}

// PositionedSample is a sensor sample enriched with an interpolated position
// (meters) and the derived scalar used for heat weighting. It exists only
// during per-floor aggregation and is never persisted.
type PositionedSample struct {
	TS    int64
	X     float64
	Y     float64
	Value float64
}

// HeatPoint is one renderer-ready heat sample in pixel space, ordered
// (lat, lon, weight) the way Leaflet's heat layer consumes it: Lat is the
// pixel y coordinate, Lon the pixel x coordinate.
type HeatPoint struct {
	Lat    float64
	Lon    float64
	Weight float64
}

// InterpolationMode selects how sample positions are derived from the
// bracketing waypoint pair.
type InterpolationMode string

const (
	ModeLinear InterpolationMode = "linear"
	ModeHold   InterpolationMode = "hold"
	ModeSkip   InterpolationMode = "skip"
)

// FieldComponent selects the scalar derived from a magnetic sample.
type FieldComponent string

const (
	ComponentMagnitude FieldComponent = "magnitude"
	ComponentX         FieldComponent = "x"
	ComponentY         FieldComponent = "y"
	ComponentZ         FieldComponent = "z"
)

// Options is the immutable per-run configuration passed into each pipeline
// entry point. There is no package-level tunable state.
type Options struct {
	// Parsing
	SnapMeters         float64 // waypoint dedup grid size; 0 disables
	AccuracyMin        int     // discard magnetic samples below this accuracy; 0 disables
	PreferUncalibrated bool    // prefer the uncalibrated stream when both exist
	Debias             bool    // subtract the reported bias from uncalibrated samples

	// Interpolation
	Mode         InterpolationMode
	NearestTolMS int64 // nearest-waypoint fallback tolerance; 0 disables

	// Weighting
	Component     FieldComponent
	ClipLowPct    float64
	ClipHighPct   float64
	MaxHeatPoints int // subsample cap on aggregated heat points; 0 disables

	// Coordinate mapping
	AffineOverride string // "a,b,c,d,e,f"; empty means resolve from metadata
	FlipX          bool
	FlipY          bool
	ForceIsotropic bool

	// File selection and presentation
	NameFilter        string
	MaxFilesPerFloor  int
	SimplifyTolerance float64 // Douglas-Peucker tolerance for pixel tracks; 0 disables
	PointSampleEvery  int     // draw every Nth track vertex as a marker; 0 disables
}

// DefaultOptions mirrors the dataset's conventional tunables.
func DefaultOptions() Options {
	return Options{
		SnapMeters:    0.05,
		Mode:          ModeLinear,
		Component:     ComponentMagnitude,
		ClipLowPct:    5,
		ClipHighPct:   95,
		MaxHeatPoints: 20000,
	}
}

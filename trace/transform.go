package trace

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// AffineMatrix is a 2D affine transform from the floor's meter frame to
// image pixel space:
// x' = A*x + B*y + Tx
// y' = C*x + D*y + Ty
type AffineMatrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	Tx float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Ty float64 `json:"ty"`
}

// Identity returns an identity matrix (no transformation)
func Identity() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: 1, Ty: 0}
}

// Translation creates a translation-only transform
func Translation(tx, ty float64) AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: tx, C: 0, D: 1, Ty: ty}
}

// Rotation creates a rotation transform (angle in radians, around origin)
func Rotation(angle float64) AffineMatrix {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return AffineMatrix{A: cos, B: -sin, Tx: 0, C: sin, D: cos, Ty: 0}
}

// RotationDeg creates a rotation transform (angle in degrees, around origin)
func RotationDeg(degrees float64) AffineMatrix {
	return Rotation(degrees * math.Pi / 180.0)
}

// Scale creates a scaling transform
func Scale(sx, sy float64) AffineMatrix {
	return AffineMatrix{A: sx, B: 0, Tx: 0, C: 0, D: sy, Ty: 0}
}

// ComposeScaleRotateTranslate builds scale -> rotate -> translate, the
// composition floor metadata expresses via scale/theta_deg/translate fields.
func ComposeScaleRotateTranslate(sx, sy, thetaDeg, tx, ty float64) AffineMatrix {
	th := thetaDeg * math.Pi / 180.0
	ct, st := math.Cos(th), math.Sin(th)
	return AffineMatrix{
		A: ct * sx, B: -st * sy, Tx: tx,
		C: st * sx, D: ct * sy, Ty: ty,
	}
}

// DefaultFlip is the fallback transform for floors whose metadata carries no
// usable affine: a vertical flip converting the bottom-left-origin meter
// frame to a top-left-origin pixel frame of the given image height.
func DefaultFlip(height float64) AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: -1, Ty: height}
}

// TransformPoint applies an affine transform to a point
func TransformPoint(p Point, m AffineMatrix) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.Tx,
		Y: m.C*p.X + m.D*p.Y + m.Ty,
	}
}

// TransformPoints applies an affine transform to multiple points
func TransformPoints(points []Point, m AffineMatrix) []Point {
	result := make([]Point, len(points))
	for i, p := range points {
		result[i] = TransformPoint(p, m)
	}
	return result
}

// MultiplyMatrices composes two affine transforms: result = m1 * m2
// Applying result is equivalent to applying m2 first, then m1
func MultiplyMatrices(m1, m2 AffineMatrix) AffineMatrix {
	return AffineMatrix{
		A:  m1.A*m2.A + m1.B*m2.C,
		B:  m1.A*m2.B + m1.B*m2.D,
		Tx: m1.A*m2.Tx + m1.B*m2.Ty + m1.Tx,
		C:  m1.C*m2.A + m1.D*m2.C,
		D:  m1.C*m2.B + m1.D*m2.D,
		Ty: m1.C*m2.Tx + m1.D*m2.Ty + m1.Ty,
	}
}

// InvertMatrix computes the inverse of an affine transform
// Returns identity if matrix is singular (determinant ~= 0)
func InvertMatrix(m AffineMatrix) AffineMatrix {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-10 {
		return Identity()
	}

	invDet := 1.0 / det
	return AffineMatrix{
		A:  m.D * invDet,
		B:  -m.B * invDet,
		Tx: (m.B*m.Ty - m.D*m.Tx) * invDet,
		C:  -m.C * invDet,
		D:  m.A * invDet,
		Ty: (m.C*m.Tx - m.A*m.Ty) * invDet,
	}
}

// Diagnostics summarizes the geometric character of a transform's linear
// part. Orthogonality is the dot product of the two columns (0 for
// shear-free transforms); a negative determinant indicates mirroring.
type Diagnostics struct {
	ScaleX        float64
	ScaleY        float64
	Orthogonality float64
	Determinant   float64
}

// Diagnose reports column norms, column dot product and determinant.
func (m AffineMatrix) Diagnose() Diagnostics {
	return Diagnostics{
		ScaleX:        math.Hypot(m.A, m.C),
		ScaleY:        math.Hypot(m.B, m.D),
		Orthogonality: m.A*m.B + m.C*m.D,
		Determinant:   m.A*m.D - m.B*m.C,
	}
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("scale_x=%.5f scale_y=%.5f orth=%.3e det=%.5f",
		d.ScaleX, d.ScaleY, d.Orthogonality, d.Determinant)
}

// Isotropize removes shear and anisotropic scaling from the transform's 2x2
// linear part while preserving rotation and any mirroring. The linear part
// is decomposed via SVD into U*S*Vt, S is replaced by the mean of its two
// singular values, and the part is recomposed as U*Vt scaled by that mean.
// The translation is untouched. Used when source metadata is suspected to
// carry non-uniform scale noise.
func Isotropize(m AffineMatrix) AffineMatrix {
	lin := mat.NewDense(2, 2, []float64{m.A, m.B, m.C, m.D})

	var svd mat.SVD
	if !svd.Factorize(lin, mat.SVDFull) {
		return m
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)
	iso := (sv[0] + sv[1]) / 2

	// Q = U * Vt is orthogonal, det = +/-1 depending on mirroring.
	var q mat.Dense
	q.Mul(&u, v.T())

	return AffineMatrix{
		A: q.At(0, 0) * iso, B: q.At(0, 1) * iso, Tx: m.Tx,
		C: q.At(1, 0) * iso, D: q.At(1, 1) * iso, Ty: m.Ty,
	}
}

// PixelMapper applies a floor's resolved transform plus the optional
// post-affine pixel flips. It is immutable once built for a floor and is
// applied identically to waypoints, interpolated sensor positions, and
// GeoJSON coordinate leaves.
type PixelMapper struct {
	Matrix AffineMatrix
	Width  float64
	Height float64
	FlipX  bool
	FlipY  bool
}

// Map converts a meter-frame coordinate to pixel space. The flips are
// independent toggles applied after the base affine, never before.
func (pm PixelMapper) Map(x, y float64) (float64, float64) {
	p := TransformPoint(Point{X: x, Y: y}, pm.Matrix)
	if pm.FlipX {
		p.X = pm.Width - p.X
	}
	if pm.FlipY {
		p.Y = pm.Height - p.Y
	}
	return p.X, p.Y
}

// MapPoint is Map over a Point value.
func (pm PixelMapper) MapPoint(p Point) Point {
	x, y := pm.Map(p.X, p.Y)
	return Point{X: x, Y: y}
}

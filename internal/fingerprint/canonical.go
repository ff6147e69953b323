// Package fingerprint turns a held palm pose into a one-way credential.
//
// Canonicalize removes translation and scale from a landmark set and rounds
// the result so that repeated captures of the same pose are byte-identical.
// Generate serializes the canonical form and digests it.
package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/palmprint/internal/detector"
)

// DefaultDecimals is the rounding precision applied to canonical coordinates.
const DefaultDecimals = 4

// Canonical is a landmark set relative to the wrist and divided by the
// bounding box's largest dimension. Rotation is not normalized.
type Canonical [detector.NumLandmarks]detector.Point3D

// Canonicalize maps raw landmarks to their canonical form.
//
// The bounding box is taken over x and y only; z is divided by the same size.
// A degenerate box (all points share x and y) uses a divisor of 1.
func Canonicalize(points [detector.NumLandmarks]detector.Point3D, decimals int) Canonical {
	xs := make([]float64, detector.NumLandmarks)
	ys := make([]float64, detector.NumLandmarks)
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}

	size := math.Max(floats.Max(xs)-floats.Min(xs), floats.Max(ys)-floats.Min(ys))
	if size == 0 {
		size = 1
	}

	base := points[detector.Wrist]
	var c Canonical
	for i, p := range points {
		c[i] = detector.Point3D{
			X: round((p.X-base.X)/size, decimals),
			Y: round((p.Y-base.Y)/size, decimals),
			Z: round((p.Z-base.Z)/size, decimals),
		}
	}
	return c
}

// round rounds v to the given number of decimals with halves going toward
// +Inf, so -0.00005 becomes 0 rather than -0.0001. The result is never
// negative zero.
//
// The explicit float64 conversion keeps the compiler from fusing the
// multiply-add, which would change results on FMA-capable architectures.
func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	r := math.Floor(float64(v*scale)+0.5) / scale
	if r == 0 {
		return 0
	}
	return r
}

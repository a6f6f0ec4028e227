// Package transform converts SGP4 output into an Earth-fixed subpoint.
//
// SGP4 produces positions in TEME (True Equator Mean Equinox). They are rotated
// into ECEF by GMST alone, ignoring polar motion and the equation of the
// equinoxes (tens of metres at LEO), and then converted to WGS-84 geodetic
// coordinates.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// PositionTEME is a position in the TEME frame, in kilometres.
type PositionTEME struct {
	X, Y, Z float64
}

// PositionECEF is a position in the ECEF frame, in metres.
type PositionECEF struct {
	X, Y, Z float64
}

// Magnitude returns the distance from the Earth's centre in metres.
func (p PositionECEF) Magnitude() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// TEMEToECEF rotates a TEME position about Z by GMST at t: r_ECEF = R3(θ) r_TEME.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST is TEMEToECEF with a precomputed GMST angle in radians.
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	return PositionECEF{
		X: (teme.X*cosG + teme.Y*sinG) * 1000.0,
		Y: (-teme.X*sinG + teme.Y*cosG) * 1000.0,
		Z: teme.Z * 1000.0,
	}
}

// ValidateECEF reports whether pos is finite and between 6200 km and
// 50000 km from the Earth's centre.
func ValidateECEF(pos PositionECEF) bool {
	for _, v := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	const (
		minRadius = 6200.0 * 1000.0
		maxRadius = 50000.0 * 1000.0
	)
	mag := pos.Magnitude()
	return mag >= minRadius && mag <= maxRadius
}

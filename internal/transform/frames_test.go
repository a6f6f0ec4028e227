package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// TestTEMEToECEF compares against go-satellite's ECIToECEF for the same GMST.
func TestTEMEToECEF(t *testing.T) {
	tests := []struct {
		name string
		teme PositionTEME
		time time.Time
	}{
		{
			name: "Vallado example 3-15",
			teme: PositionTEME{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			teme: PositionTEME{X: 6778.0},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			teme: PositionTEME{Z: 6978.0},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			got := TEMEToECEFWithGMST(tt.teme, gmst)
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.teme.X, Y: tt.teme.Y, Z: tt.teme.Z}, gmst)

			const tolerance = 1.0 // metre
			if math.Abs(got.X-ref.X*1000) > tolerance ||
				math.Abs(got.Y-ref.Y*1000) > tolerance ||
				math.Abs(got.Z-ref.Z*1000) > tolerance {
				t.Errorf("ours [%.3f, %.3f, %.3f] m, ref [%.3f, %.3f, %.3f] m",
					got.X, got.Y, got.Z, ref.X*1000, ref.Y*1000, ref.Z*1000)
			}
			if !ValidateECEF(got) {
				t.Errorf("ECEF position failed validation: %+v", got)
			}
		})
	}
}

func TestTEMEToECEFPreservesMagnitude(t *testing.T) {
	teme := PositionTEME{X: 4000, Y: -3000, Z: 4200}
	want := math.Sqrt(teme.X*teme.X+teme.Y*teme.Y+teme.Z*teme.Z) * 1000

	got := TEMEToECEF(teme, time.Date(2025, 6, 12, 16, 12, 8, 0, time.UTC)).Magnitude()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("magnitude = %.6f m, want %.6f m", got, want)
	}
}

func TestValidateECEF(t *testing.T) {
	tests := []struct {
		name  string
		pos   PositionECEF
		valid bool
	}{
		{"LEO", PositionECEF{X: 6778000}, true},
		{"GEO", PositionECEF{X: 42164000}, true},
		{"too low", PositionECEF{X: 5000000}, false},
		{"too high", PositionECEF{X: 60000000}, false},
		{"NaN", PositionECEF{X: math.NaN()}, false},
		{"Inf", PositionECEF{Y: math.Inf(-1)}, false},
		{"zero", PositionECEF{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateECEF(tt.pos); got != tt.valid {
				t.Errorf("ValidateECEF(%+v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}
